package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/pathmap/pkg/schema"
)

// LibSQLStore implements Store using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/pathmap.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so QueryRow is used for all of them.
	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	} {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Datasets ---

// SaveDataset stores rec as the next version under rec.Name. ID, Version,
// Checksum and CreatedAt are filled in on rec.
func (s *LibSQLStore) SaveDataset(ctx context.Context, rec *DatasetRecord) error {
	if rec.Name == "" {
		return schema.NewError(schema.ErrCodeValidation, "dataset name is required")
	}
	if len(rec.Document) == 0 || !json.Valid(rec.Document) {
		return schema.NewErrorf(schema.ErrCodeValidation, "dataset %q document is not valid JSON", rec.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save dataset: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM datasets WHERE name = ?`, rec.Name,
	).Scan(&next); err != nil {
		return fmt.Errorf("next dataset version: %w", err)
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Version = next
	rec.Checksum = Checksum(rec.Document)
	rec.CreatedAt = timeOrNow(rec.CreatedAt)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (id, name, version, title, document, checksum, node_count, edge_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Version, nullStr(rec.Title), string(rec.Document), rec.Checksum,
		rec.NodeCount, rec.EdgeCount, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	return tx.Commit()
}

// GetDataset returns the given version of a dataset; version 0 means latest.
func (s *LibSQLStore) GetDataset(ctx context.Context, name string, version int) (*DatasetRecord, error) {
	query := `SELECT id, name, version, title, document, checksum, node_count, edge_count, created_at
		 FROM datasets WHERE name = ?`
	args := []any{name}
	if version > 0 {
		query += " AND version = ?"
		args = append(args, version)
	} else {
		query += " ORDER BY version DESC LIMIT 1"
	}

	rec, err := scanDataset(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		if version > 0 {
			return nil, storeNotFound("dataset", fmt.Sprintf("%s@%d", name, version))
		}
		return nil, storeNotFound("dataset", name)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListDatasets returns stored versions, newest first.
func (s *LibSQLStore) ListDatasets(ctx context.Context, filter DatasetFilter) ([]*DatasetRecord, error) {
	query := `SELECT id, name, version, title, document, checksum, node_count, edge_count, created_at FROM datasets`
	var args []any
	if filter.Name != "" {
		query += " WHERE name = ?"
		args = append(args, filter.Name)
	}
	query += " ORDER BY created_at DESC, version DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DatasetRecord
	for rows.Next() {
		rec, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (*DatasetRecord, error) {
	rec := &DatasetRecord{}
	var title sql.NullString
	var doc string
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Version, &title, &doc, &rec.Checksum,
		&rec.NodeCount, &rec.EdgeCount, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Title = title.String
	rec.Document = json.RawMessage(doc)
	return rec, nil
}

// --- Events ---

// AppendEvent appends an event with a monotonically increasing per-session
// sequence number, assigned inside the insert transaction.
func (s *LibSQLStore) AppendEvent(ctx context.Context, event *Event) error {
	if event.SessionID == "" {
		return schema.NewError(schema.ErrCodeValidation, "event session_id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append event: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE session_id = ?`, event.SessionID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq
	event.Timestamp = timeOrNow(event.Timestamp)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (session_id, node_id, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.SessionID, nullStr(event.NodeID), event.Type, nullRaw(event.Payload), event.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		event.ID = id
	}
	return tx.Commit()
}

// GetEvents returns a session's events with sequence > since, in sequence order.
func (s *LibSQLStore) GetEvents(ctx context.Context, sessionID string, since int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, node_id, event_type, payload, timestamp, sequence
		 FROM events WHERE session_id = ? AND sequence > ? ORDER BY sequence ASC`,
		sessionID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetEventsByType returns events of one type matching filter, newest first.
// An empty eventType matches every type.
func (s *LibSQLStore) GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*Event, error) {
	var where []string
	var args []any
	if eventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, eventType)
	}

	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.NodeID != "" {
		where = append(where, "node_id = ?")
		args = append(args, filter.NodeID)
	}
	if filter.Since != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, session_id, node_id, event_type, payload, timestamp, sequence FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e := &Event{}
		var nodeID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &nodeID, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.NodeID = nodeID.String
		e.Payload = rawOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- helpers ---

// Checksum returns the hex SHA-256 of a dataset document.
func Checksum(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

func storeNotFound(resource, id string) *schema.PathmapError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

package store

import "context"

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Datasets (versioned by name)
	SaveDataset(ctx context.Context, rec *DatasetRecord) error
	GetDataset(ctx context.Context, name string, version int) (*DatasetRecord, error)
	ListDatasets(ctx context.Context, filter DatasetFilter) ([]*DatasetRecord, error)

	// Interaction log (append-only)
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, sessionID string, since int64) ([]*Event, error)
	GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*Event, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error
	Close() error
}

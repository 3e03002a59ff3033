package store

import (
	"encoding/json"
	"time"
)

// DatasetRecord is one stored version of a dataset document.
type DatasetRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Version   int             `json:"version"`
	Title     string          `json:"title,omitempty"`
	Document  json.RawMessage `json:"document,omitempty"`
	Checksum  string          `json:"checksum"`
	NodeCount int             `json:"node_count"`
	EdgeCount int             `json:"edge_count"`
	CreatedAt time.Time       `json:"created_at"`
}

// Event is an immutable entry in the interaction log.
type Event struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	NodeID    string          `json:"node_id,omitempty"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// DatasetFilter specifies criteria for listing stored datasets.
type DatasetFilter struct {
	Name  string `json:"name,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// EventFilter specifies criteria for querying events.
type EventFilter struct {
	SessionID string     `json:"session_id,omitempty"`
	NodeID    string     `json:"node_id,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// Package content provides read-only lookup of the detail records shown when
// a stage is selected.
package content

import "github.com/rendis/pathmap/pkg/schema"

// DetailRecord is the descriptive content associated with a node.
type DetailRecord struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Duration     string   `json:"duration,omitempty"`
	Requirements string   `json:"requirements,omitempty"`
	NextSteps    string   `json:"next_steps,omitempty"`
	Pros         []string `json:"pros,omitempty"`
	Cons         []string `json:"cons,omitempty"`
}

// Lookup resolves a node ID to its detail record. A miss is not an error.
type Lookup interface {
	Detail(nodeID string) (DetailRecord, bool)
}

// Table is an immutable in-memory Lookup.
type Table struct {
	records map[string]DetailRecord
}

// NewTable copies records into a new Table.
func NewTable(records map[string]DetailRecord) *Table {
	t := &Table{records: make(map[string]DetailRecord, len(records))}
	for id, r := range records {
		t.records[id] = r.clone()
	}
	return t
}

// FromDataset builds a Table from the details section of a dataset.
func FromDataset(ds *schema.Dataset) *Table {
	if ds == nil {
		return NewTable(nil)
	}
	records := make(map[string]DetailRecord, len(ds.Details))
	for id, d := range ds.Details {
		records[id] = DetailRecord{
			Title:        d.Title,
			Description:  d.Description,
			Duration:     d.Duration,
			Requirements: d.Requirements,
			NextSteps:    d.NextSteps,
			Pros:         d.Pros,
			Cons:         d.Cons,
		}
	}
	return NewTable(records)
}

// Detail returns a copy of the record for nodeID.
func (t *Table) Detail(nodeID string) (DetailRecord, bool) {
	r, ok := t.records[nodeID]
	if !ok {
		return DetailRecord{}, false
	}
	return r.clone(), true
}

// Has reports whether a record exists for nodeID.
func (t *Table) Has(nodeID string) bool {
	_, ok := t.records[nodeID]
	return ok
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.records) }

func (r DetailRecord) clone() DetailRecord {
	r.Pros = append([]string(nil), r.Pros...)
	r.Cons = append([]string(nil), r.Cons...)
	return r
}

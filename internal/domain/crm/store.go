package crm

import (
	"context"
	"errors"
)

// ErrEntryNotFound is returned when no entry carries the requested id.
var ErrEntryNotFound = errors.New("crm entry not found")

// EntryStore owns row storage and identity. Ids are strictly increasing
// in insertion order and never reused. AppendBatch is atomic: either all
// rows of a batch become visible, or none do. Mutations and
// full-collection reads are serialized against each other.
type EntryStore interface {
	// AppendBatch stores the rows under one source tag, assigning ids in
	// input order, and returns the stored entries.
	AppendBatch(ctx context.Context, source string, rows []Row) ([]Entry, error)

	// ListAll returns a snapshot of every stored entry in id order.
	ListAll(ctx context.Context) ([]Entry, error)

	// UpdateByID merges the patch into the entry's row data. The id is
	// never changed. Returns ErrEntryNotFound for an unknown id.
	UpdateByID(ctx context.Context, id int64, patch Row) (Entry, error)

	// Count reports how many entries the store holds.
	Count(ctx context.Context) (int, error)
}

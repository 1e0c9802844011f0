package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no item exists at the requested key, or
	// when a conditional update targets a missing item.
	ErrNotFound = errors.New("not found")
)

// Index identifies one of the two secondary indexes.
type Index string

const (
	// IndexFlightStatus orders flights by scheduled departure within a status.
	IndexFlightStatus Index = "flight_status"
	// IndexBookingStatus orders bookings by creation time within a status.
	IndexBookingStatus Index = "booking_status"
)

// Item is a single row of the single-table store.
type Item struct {
	PK    string
	SK    string
	Attrs map[string]any

	// Secondary index keys. Empty means not projected into that index.
	IndexAKey  string
	IndexASort string
	IndexBKey  string
	IndexBSort string
}

// Update describes an atomic multi-attribute mutation of one item. Set
// entries are merged over the existing attributes; nil index pointers leave
// the corresponding index key untouched. The whole update applies in one
// conditional write so a status value and its index key can never diverge.
type Update struct {
	Set map[string]any

	IndexAKey  *string
	IndexASort *string
	IndexBKey  *string
	IndexBSort *string
}

// Store is the single-table key-value contract the workflows run against.
type Store interface {
	// Get returns the item at (pk, sk), or ErrNotFound.
	Get(ctx context.Context, pk, sk string) (*Item, error)
	// Query returns all items under pk whose sort key starts with skPrefix,
	// ordered by sort key.
	Query(ctx context.Context, pk, skPrefix string) ([]*Item, error)
	// QueryIndex returns all items whose index key equals key, ordered by
	// the index sort value.
	QueryIndex(ctx context.Context, index Index, key string) ([]*Item, error)
	// ConditionalUpdate atomically applies upd to an existing item. It
	// returns ErrNotFound if the item does not exist.
	ConditionalUpdate(ctx context.Context, pk, sk string, upd Update) error
	// Put creates or replaces an item. Used by the seeding path, not by
	// workflow steps.
	Put(ctx context.Context, item *Item) error
}

// StrPtr is a small helper for Update index fields.
func StrPtr(s string) *string { return &s }

// Package store persists the results of the neighbors and diffusion map
// computations under named slots of an annotation store. Values are
// msgpack-encoded; the package includes a BadgerDB-backed implementation for
// production use and an in-memory implementation for testing.
package store

import (
	"context"
	"errors"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a slot does not exist in the store.
	ErrNotFound = errors.New("store: not found")
)

// Slot names.
const (
	SlotDistances    = "neighbors_distances"
	SlotSimilarities = "neighbors_similarities"
	SlotEvals        = "diffmap_evals"
	SlotDiffmap      = "X_diffmap"
	// SlotDiffmap0 holds the first diffusion component in files written by
	// versions that stored it apart from X_diffmap.
	SlotDiffmap0   = "X_diffmap0"
	SlotPseudotime = "dpt_pseudotime"
	SlotIRoot      = "iroot"
	SlotXRoot      = "xroot"
)

// Store is the interface for a slot-keyed annotation store.
type Store interface {
	// Get retrieves the value of a slot. Returns ErrNotFound if not present.
	Get(ctx context.Context, slot string) ([]byte, error)

	// Set stores a slot value. Overwrites any existing value.
	Set(ctx context.Context, slot string, value []byte) error

	// Delete removes a slot. No error if the slot does not exist.
	Delete(ctx context.Context, slot string) error

	// Slots returns the names of all stored slots in lexicographic order.
	Slots(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Has reports whether slot is present.
func Has(ctx context.Context, s Store, slot string) (bool, error) {
	_, err := s.Get(ctx, slot)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	}
	return false, err
}

// key prefixes the slot with the dataset namespace.
func key(prefix, slot string) string {
	if prefix == "" {
		return slot
	}
	return prefix + ":" + slot
}

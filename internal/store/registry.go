package store

import "fmt"

// Registry pairs a live Store[L] and a deleted Store[D] for one record
// kind, implementing the soft-delete registry of §4.H. Moves are
// single-direction: MoveToDeleted writes the deleted record before
// removing the live one; Restore writes the live record before removing
// the deleted one. A crash between the two writes leaves the id present
// in both stores; Get resolves that by preferring the live copy.
type Registry[L any, D any] struct {
	Live    *Store[L]
	Deleted *Store[D]
}

// NewRegistry pairs an already-open live and deleted Store for one kind.
func NewRegistry[L any, D any](live *Store[L], deleted *Store[D]) *Registry[L, D] {
	return &Registry[L, D]{Live: live, Deleted: deleted}
}

// Get resolves id against both stores, live winning on the rare duplicate
// left by a crash between the two MoveToDeleted/Restore writes.
func (r *Registry[L, D]) Get(id string) (live L, deleted D, state RecordState) {
	if v, ok := r.Live.Get(id); ok {
		return v, deleted, StateLive
	}
	if v, ok := r.Deleted.Get(id); ok {
		return live, v, StateDeleted
	}
	return live, deleted, StateAbsent
}

// RecordState reports which store (if either) held the id Get resolved.
type RecordState int

const (
	StateAbsent RecordState = iota
	StateLive
	StateDeleted
)

// MoveToDeleted performs the live -> deleted transition: write the
// (already cascade-processed) deleted record, then remove the live one.
// Cascading the object-store side effects (§4.D) is the caller's
// responsibility before calling this — Registry only moves the record.
func (r *Registry[L, D]) MoveToDeleted(id string, deletedRecord D) error {
	if err := r.Deleted.Put(id, deletedRecord); err != nil {
		return fmt.Errorf("registry: writing deleted record %s: %w", id, err)
	}
	if err := r.Live.Delete(id); err != nil {
		return fmt.Errorf("registry: removing live record %s: %w", id, err)
	}
	return nil
}

// Restore performs the deleted -> live transition: write the
// (already cascade-processed) live record, then remove the deleted one.
func (r *Registry[L, D]) Restore(id string, liveRecord L) error {
	if err := r.Live.Put(id, liveRecord); err != nil {
		return fmt.Errorf("registry: writing restored record %s: %w", id, err)
	}
	if err := r.Deleted.Delete(id); err != nil {
		return fmt.Errorf("registry: removing deleted record %s: %w", id, err)
	}
	return nil
}

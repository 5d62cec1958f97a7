// Package store persists one collection aggregate per scope.
//
// A collection is stored as a single document holding the ordered list of
// held entries. Entry-level operations are translated here into whatever
// atomic update the backend offers: a lock for the memory store, a
// transaction for SQLite.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/youruser/cardvault/internal/cards"
)

// ErrUnavailable marks failures reaching or talking to the backend.
var ErrUnavailable = errors.New("store unavailable")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("store closed")

// Store is durable keyed storage for collections.
type Store interface {
	// GetOrCreate returns the collection, creating an empty one if absent.
	GetOrCreate(ctx context.Context, scope string) (cards.Collection, error)
	// AppendEntry appends {card, 1} without deduplicating.
	AppendEntry(ctx context.Context, scope string, card cards.CardRef) (cards.Collection, error)
	// RemoveMatching drops every entry whose id equals cardID.
	RemoveMatching(ctx context.Context, scope, cardID string) (cards.Collection, error)
	// ReplaceAll overwrites the stored entries.
	ReplaceAll(ctx context.Context, scope string, entries cards.Collection) (cards.Collection, error)
	// UpsertIncrementBatch applies merge operations in slice order.
	UpsertIncrementBatch(ctx context.Context, scope string, ops []cards.Op) error
	Close() error
}

// StoreError carries the failing operation and scope.
type StoreError struct {
	Op    string
	Scope string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s (scope %q): %v", e.Op, e.Scope, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports every StoreError as ErrUnavailable so callers can classify
// without knowing the backend.
func (e *StoreError) Is(target error) bool { return target == ErrUnavailable }

func wrap(op, scope string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Scope: scope, Err: err}
}

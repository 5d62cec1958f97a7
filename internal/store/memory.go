package store

import (
	"context"
	"sync"

	"github.com/youruser/cardvault/internal/cards"
)

// MemoryStore keeps collections in process memory.
//
// Every method holds the lock for its whole read-modify-write, which makes
// each operation atomic. Values handed in or out are deep copies.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]cards.Collection
	closed bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]cards.Collection)}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, scope string) (cards.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("get", scope, err)
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, wrap("get", scope, ErrClosed)
	}
	if cur, ok := s.docs[scope]; ok {
		out := cur.Clone()
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	var out cards.Collection
	err := s.update(ctx, "get", scope, func(cur cards.Collection) (cards.Collection, error) {
		out = cur.Clone()
		return cur, nil
	})
	return out, err
}

func (s *MemoryStore) AppendEntry(ctx context.Context, scope string, card cards.CardRef) (cards.Collection, error) {
	var out cards.Collection
	err := s.update(ctx, "append", scope, func(cur cards.Collection) (cards.Collection, error) {
		if err := card.Validate(); err != nil {
			return nil, err
		}
		next := append(cur, cards.HeldEntry{Card: card.Clone(), Count: 1})
		out = next.Clone()
		return next, nil
	})
	return out, err
}

func (s *MemoryStore) RemoveMatching(ctx context.Context, scope, cardID string) (cards.Collection, error) {
	var out cards.Collection
	err := s.update(ctx, "remove", scope, func(cur cards.Collection) (cards.Collection, error) {
		next := removeMatching(cur, cardID)
		out = next.Clone()
		return next, nil
	})
	return out, err
}

func (s *MemoryStore) ReplaceAll(ctx context.Context, scope string, entries cards.Collection) (cards.Collection, error) {
	var out cards.Collection
	err := s.update(ctx, "replace", scope, func(cards.Collection) (cards.Collection, error) {
		if err := validateEntries(entries); err != nil {
			return nil, err
		}
		next := entries.Clone()
		out = next.Clone()
		return next, nil
	})
	return out, err
}

func (s *MemoryStore) UpsertIncrementBatch(ctx context.Context, scope string, ops []cards.Op) error {
	return s.update(ctx, "upsert", scope, func(cur cards.Collection) (cards.Collection, error) {
		return applyOps(cur.Clone(), ops)
	})
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// update runs fn on the current entries under the write lock and stores its
// result. On error nothing is written, though the collection is still created.
func (s *MemoryStore) update(ctx context.Context, op, scope string, fn func(cards.Collection) (cards.Collection, error)) error {
	if err := ctx.Err(); err != nil {
		return wrap(op, scope, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return wrap(op, scope, ErrClosed)
	}
	cur, ok := s.docs[scope]
	if !ok {
		cur = cards.Collection{}
		s.docs[scope] = cur
	}
	next, err := fn(cur)
	if err != nil {
		return wrap(op, scope, err)
	}
	s.docs[scope] = next
	return nil
}

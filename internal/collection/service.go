// Package collection orchestrates the card store and the merge engine.
package collection

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/youruser/cardvault/internal/cards"
	"github.com/youruser/cardvault/internal/decklist"
	"github.com/youruser/cardvault/internal/merge"
	"github.com/youruser/cardvault/internal/store"
)

const DefaultTimeout = 5 * time.Second

// Options tunes a Service.
type Options struct {
	// Timeout bounds every service call, including all store round trips.
	Timeout time.Duration
	// RefreshAfterWrite makes AddMany answer with a fresh read of the store
	// instead of the merge result.
	RefreshAfterWrite bool
}

// Service exposes the collection operations for one store. It keeps no
// collection state between calls.
type Service struct {
	store   store.Store
	logger  *zap.Logger
	opts    Options
	locks   *scopeLocks
	fetches singleflight.Group
}

func NewService(st store.Store, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Service{
		store:  st,
		logger: logger.With(zap.String("component", "collection")),
		opts:   opts,
		locks:  newScopeLocks(),
	}
}

// Fetch returns the scope's collection, creating it empty if needed.
// Concurrent fetches of one scope share a single store read.
func (s *Service) Fetch(ctx context.Context, scope string) (cards.Collection, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	ch := s.fetches.DoChan(scope, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
		defer cancel()
		return s.store.GetOrCreate(fctx, scope)
	})
	select {
	case <-ctx.Done():
		return nil, unavailable("fetch", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			s.logger.Warn("fetch failed", zap.String("scope", scope), zap.Error(res.Err))
			return nil, unavailable("fetch", res.Err)
		}
		// the value is shared between callers of one flight
		return res.Val.(cards.Collection).Clone(), nil
	}
}

// AddOne appends the card as a new entry with count 1. It does not look for
// an existing entry with the same id.
func (s *Service) AddOne(ctx context.Context, scope string, card cards.CardRef) (cards.Collection, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if err := card.Validate(); err != nil {
		return nil, invalid("card", "%v", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	unlock, err := s.locks.lock(ctx, scope)
	if err != nil {
		return nil, unavailable("add-one", err)
	}
	defer unlock()

	out, err := s.store.AppendEntry(ctx, scope, card)
	if err != nil {
		s.logger.Warn("add failed", zap.String("scope", scope), zap.String("card_id", card.ID), zap.Error(err))
		return nil, unavailable("add-one", err)
	}
	s.logger.Debug("card added", zap.String("scope", scope), zap.String("card_id", card.ID))
	return out, nil
}

// RemoveOne drops every entry with the given id. Removing an id that is not
// held is not an error.
func (s *Service) RemoveOne(ctx context.Context, scope, cardID string) (cards.Collection, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cardID) == "" {
		return nil, invalid("cardId", "card id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	unlock, err := s.locks.lock(ctx, scope)
	if err != nil {
		return nil, unavailable("remove-one", err)
	}
	defer unlock()

	out, err := s.store.RemoveMatching(ctx, scope, cardID)
	if err != nil {
		s.logger.Warn("remove failed", zap.String("scope", scope), zap.String("card_id", cardID), zap.Error(err))
		return nil, unavailable("remove-one", err)
	}
	s.logger.Debug("card removed", zap.String("scope", scope), zap.String("card_id", cardID))
	return out, nil
}

// AddMany merges a batch into the collection: held ids gain one copy per
// occurrence, new ids are appended in first-seen order.
//
// The read-merge-write sequence is serialized per scope within this Service.
// A store failure part way through fails the whole call; whatever the store
// already committed stays committed.
func (s *Service) AddMany(ctx context.Context, scope string, batch []cards.CardRef) (cards.Collection, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	for i, card := range batch {
		if err := card.Validate(); err != nil {
			return nil, invalid("cards", "card %d: %v", i, err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	unlock, err := s.locks.lock(ctx, scope)
	if err != nil {
		return nil, unavailable("add-many", err)
	}
	defer unlock()

	current, err := s.store.GetOrCreate(ctx, scope)
	if err != nil {
		return nil, unavailable("add-many", err)
	}
	if len(batch) == 0 {
		return current, nil
	}

	res := merge.Merge(current, batch)
	ops := merge.Compact(res.Ops)
	if err := s.store.UpsertIncrementBatch(ctx, scope, ops); err != nil {
		s.logger.Warn("batch persist failed",
			zap.String("scope", scope),
			zap.Int("ops", len(ops)),
			zap.Error(err))
		return nil, unavailable("add-many", err)
	}

	stats := res.Stats()
	s.logger.Info("batch merged",
		zap.String("scope", scope),
		zap.Int("cards", len(batch)),
		zap.Int("inserted", stats.Inserted),
		zap.Int("incremented", stats.Incremented),
		zap.Int("ops_persisted", len(ops)))

	if s.opts.RefreshAfterWrite {
		fresh, err := s.store.GetOrCreate(ctx, scope)
		if err != nil {
			return nil, unavailable("add-many", err)
		}
		return fresh, nil
	}
	return res.Collection, nil
}

// Clear empties the collection.
func (s *Service) Clear(ctx context.Context, scope string) (cards.Collection, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	unlock, err := s.locks.lock(ctx, scope)
	if err != nil {
		return nil, unavailable("clear", err)
	}
	defer unlock()

	out, err := s.store.ReplaceAll(ctx, scope, cards.Collection{})
	if err != nil {
		s.logger.Warn("clear failed", zap.String("scope", scope), zap.Error(err))
		return nil, unavailable("clear", err)
	}
	s.logger.Info("collection cleared", zap.String("scope", scope))
	return out, nil
}

// ImportText adds every card of a decklist, honoring the per-line quantity.
func (s *Service) ImportText(ctx context.Context, scope, text string) (cards.Collection, error) {
	lines, err := decklist.Parse(text)
	if err != nil {
		return nil, invalid("decklist", "%v", err)
	}
	return s.AddMany(ctx, scope, decklist.Expand(lines))
}

// ExportText renders the collection as a decklist.
func (s *Service) ExportText(ctx context.Context, scope, title string) (string, error) {
	coll, err := s.Fetch(ctx, scope)
	if err != nil {
		return "", err
	}
	return decklist.Format(title, coll), nil
}

func checkScope(scope string) error {
	if strings.TrimSpace(scope) == "" {
		return invalid("scope", "scope is required")
	}
	return nil
}

// scopeLocks hands out one lock per scope and forgets it once nobody holds
// or waits for it.
type scopeLocks struct {
	mu    sync.Mutex
	locks map[string]*scopeLock
}

type scopeLock struct {
	sem  chan struct{}
	refs int
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{locks: make(map[string]*scopeLock)}
}

// lock blocks until the scope is free or ctx is done.
func (l *scopeLocks) lock(ctx context.Context, scope string) (unlock func(), err error) {
	l.mu.Lock()
	sl, ok := l.locks[scope]
	if !ok {
		sl = &scopeLock{sem: make(chan struct{}, 1)}
		l.locks[scope] = sl
	}
	sl.refs++
	l.mu.Unlock()

	release := func() {
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, scope)
		}
		l.mu.Unlock()
	}

	select {
	case sl.sem <- struct{}{}:
		return func() {
			<-sl.sem
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}

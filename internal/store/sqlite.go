package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/youruser/cardvault/internal/cards"
	"github.com/youruser/cardvault/internal/util"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS collections (
	scope      TEXT PRIMARY KEY,
	cards      TEXT NOT NULL DEFAULT '[]',
	updated_at TEXT NOT NULL
);`

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

const (
	DefaultMaxOpenConns    = 4
	DefaultMaxIdleConns    = 2
	DefaultConnMaxLifetime = time.Hour
	DefaultBusyTimeout     = 5 * time.Second
	maxOpenConnsLimit      = 64
)

// DefaultSQLiteConfig returns settings suitable for a single service process.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:            path,
		MaxOpenConns:    DefaultMaxOpenConns,
		MaxIdleConns:    DefaultMaxIdleConns,
		ConnMaxLifetime: DefaultConnMaxLifetime,
		BusyTimeout:     DefaultBusyTimeout,
	}
}

func (c SQLiteConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("sqlite config: path is required")
	}
	if c.MaxOpenConns < 1 || c.MaxOpenConns > maxOpenConnsLimit {
		return fmt.Errorf("sqlite config: MaxOpenConns must be between 1 and %d, got %d", maxOpenConnsLimit, c.MaxOpenConns)
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("sqlite config: MaxIdleConns (%d) must be between 0 and MaxOpenConns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite config: BusyTimeout must not be negative")
	}
	return nil
}

// SQLiteStore keeps each collection as one JSON document in a row keyed by
// scope. Mutations are read-modify-write inside an immediate transaction.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
	mu     sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (and if needed creates) the database at cfg.Path.
func OpenSQLite(cfg SQLiteConfig, logger *zap.Logger) (*SQLiteStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path != ":memory:" {
		if err := util.EnsureDir(filepath.Dir(cfg.Path)); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", cfg.Path, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", cfg.Path, err)
	}
	if cfg.Path == ":memory:" {
		// every connection would get its own private database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database at %s: %w", cfg.Path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema on %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite store opened",
		zap.String("path", cfg.Path),
		zap.Int("max_open_conns", cfg.MaxOpenConns))
	return &SQLiteStore{db: db, path: cfg.Path, logger: logger}, nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// GetOrCreate reads outside a write transaction; only a missing row takes
// the write lock to create it.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, scope string) (cards.Collection, error) {
	out, found, err := s.read(ctx, scope)
	if err != nil {
		return nil, err
	}
	if found {
		return out, nil
	}
	err = s.update(ctx, "get", scope, func(cur cards.Collection) (cards.Collection, bool, error) {
		out = cur
		return nil, false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) AppendEntry(ctx context.Context, scope string, card cards.CardRef) (cards.Collection, error) {
	var out cards.Collection
	err := s.update(ctx, "append", scope, func(cur cards.Collection) (cards.Collection, bool, error) {
		if err := card.Validate(); err != nil {
			return nil, false, err
		}
		out = append(cur, cards.HeldEntry{Card: card.Clone(), Count: 1})
		return out, true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) RemoveMatching(ctx context.Context, scope, cardID string) (cards.Collection, error) {
	var out cards.Collection
	err := s.update(ctx, "remove", scope, func(cur cards.Collection) (cards.Collection, bool, error) {
		out = removeMatching(cur, cardID)
		return out, len(out) != len(cur), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) ReplaceAll(ctx context.Context, scope string, entries cards.Collection) (cards.Collection, error) {
	var out cards.Collection
	err := s.update(ctx, "replace", scope, func(cards.Collection) (cards.Collection, bool, error) {
		if err := validateEntries(entries); err != nil {
			return nil, false, err
		}
		out = entries.Clone()
		return out, true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) UpsertIncrementBatch(ctx context.Context, scope string, ops []cards.Op) error {
	if len(ops) == 0 {
		return nil
	}
	return s.update(ctx, "upsert", scope, func(cur cards.Collection) (cards.Collection, bool, error) {
		next, err := applyOps(cur, ops)
		return next, err == nil, err
	})
}

func (s *SQLiteStore) read(ctx context.Context, scope string) (cards.Collection, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, false, wrap("get", scope, ErrClosed)
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT cards FROM collections WHERE scope = ?`, scope).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("get", scope, fmt.Errorf("load: %w", err))
	}
	cur := cards.Collection{}
	if err := json.Unmarshal([]byte(raw), &cur); err != nil {
		return nil, false, wrap("get", scope, fmt.Errorf("decode cards: %w", err))
	}
	return cur, true, nil
}

// update loads the scope's document inside a transaction, creating it when
// absent, and writes back fn's result when fn reports a change.
func (s *SQLiteStore) update(ctx context.Context, op, scope string, fn func(cards.Collection) (cards.Collection, bool, error)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return wrap(op, scope, ErrClosed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(op, scope, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (scope, cards, updated_at) VALUES (?, '[]', ?) ON CONFLICT(scope) DO NOTHING`,
		scope, now); err != nil {
		return wrap(op, scope, fmt.Errorf("create: %w", err))
	}

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT cards FROM collections WHERE scope = ?`, scope).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("collection vanished after create")
		}
		return wrap(op, scope, fmt.Errorf("load: %w", err))
	}
	cur := cards.Collection{}
	if err := json.Unmarshal([]byte(raw), &cur); err != nil {
		return wrap(op, scope, fmt.Errorf("decode cards: %w", err))
	}

	next, changed, err := fn(cur)
	if err != nil {
		return wrap(op, scope, err)
	}
	if changed {
		b, err := json.Marshal(next)
		if err != nil {
			return wrap(op, scope, fmt.Errorf("encode cards: %w", err))
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE collections SET cards = ?, updated_at = ? WHERE scope = ?`,
			string(b), now, scope); err != nil {
			return wrap(op, scope, fmt.Errorf("write: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return wrap(op, scope, fmt.Errorf("commit: %w", err))
	}
	s.logger.Debug("collection updated",
		zap.String("op", op),
		zap.String("scope", scope),
		zap.Bool("changed", changed))
	return nil
}

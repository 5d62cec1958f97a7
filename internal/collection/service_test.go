package collection_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/youruser/cardvault/internal/cards"
	"github.com/youruser/cardvault/internal/collection"
	"github.com/youruser/cardvault/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const scope = "alice"

func ref(id string) cards.CardRef { return cards.CardRef{ID: id} }

func entry(id string, n int) cards.HeldEntry {
	return cards.HeldEntry{Card: ref(id), Count: n}
}

func newService(t *testing.T, opts collection.Options) (*collection.Service, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })
	return collection.NewService(st, zap.NewNop(), opts), st
}

func assertCollection(t *testing.T, want, got cards.Collection) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("collection mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchCreatesEmptyCollection(t *testing.T) {
	svc, _ := newService(t, collection.Options{})
	ctx := context.Background()

	got, err := svc.Fetch(ctx, scope)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	again, err := svc.Fetch(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestAddOneDoesNotDedupe(t *testing.T) {
	svc, _ := newService(t, collection.Options{})
	ctx := context.Background()

	_, err := svc.AddOne(ctx, scope, ref("a"))
	require.NoError(t, err)
	got, err := svc.AddOne(ctx, scope, ref("a"))
	require.NoError(t, err)
	assertCollection(t, cards.Collection{entry("a", 1), entry("a", 1)}, got)
}

func TestAddMany(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		batch    []string
		want     cards.Collection
	}{
		{"single into empty", nil, []string{"a"}, cards.Collection{entry("a", 1)}},
		{"duplicate in batch", nil, []string{"a", "a"}, cards.Collection{entry("a", 2)}},
		{"increment and append", []string{"a"}, []string{"a", "b"}, cards.Collection{entry("a", 2), entry("b", 1)}},
		{"empty batch", []string{"a"}, nil, cards.Collection{entry("a", 1)}},
	}
	for _, refresh := range []bool{false, true} {
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/refresh=%v", tt.name, refresh), func(t *testing.T) {
				svc, _ := newService(t, collection.Options{RefreshAfterWrite: refresh})
				ctx := context.Background()
				for _, id := range tt.existing {
					_, err := svc.AddOne(ctx, scope, ref(id))
					require.NoError(t, err)
				}
				var batch []cards.CardRef
				for _, id := range tt.batch {
					batch = append(batch, ref(id))
				}

				got, err := svc.AddMany(ctx, scope, batch)
				require.NoError(t, err)
				assertCollection(t, tt.want, got)

				stored, err := svc.Fetch(ctx, scope)
				require.NoError(t, err)
				assertCollection(t, tt.want, stored)
			})
		}
	}
}

func TestAddManyRejectsInvalidBatch(t *testing.T) {
	svc, _ := newService(t, collection.Options{})
	ctx := context.Background()

	_, err := svc.AddMany(ctx, scope, []cards.CardRef{ref("a"), ref("")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, collection.ErrValidation))

	var ve *collection.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "cards", ve.Field)

	got, err := svc.Fetch(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, got, "nothing persisted from a rejected batch")
}

func TestRemoveOne(t *testing.T) {
	svc, _ := newService(t, collection.Options{})
	ctx := context.Background()
	_, err := svc.AddMany(ctx, scope, []cards.CardRef{ref("a"), ref("b")})
	require.NoError(t, err)

	got, err := svc.RemoveOne(ctx, scope, "a")
	require.NoError(t, err)
	assertCollection(t, cards.Collection{entry("b", 1)}, got)

	got, err = svc.RemoveOne(ctx, scope, "missing")
	require.NoError(t, err)
	assertCollection(t, cards.Collection{entry("b", 1)}, got)

	_, err = svc.RemoveOne(ctx, scope, "  ")
	assert.True(t, errors.Is(err, collection.ErrValidation))
}

func TestClear(t *testing.T) {
	svc, _ := newService(t, collection.Options{})
	ctx := context.Background()

	got, err := svc.Clear(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = svc.AddMany(ctx, scope, []cards.CardRef{ref("a"), ref("b"), ref("a")})
	require.NoError(t, err)
	got, err = svc.Clear(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScopeRequired(t *testing.T) {
	svc, _ := newService(t, collection.Options{})
	_, err := svc.Fetch(context.Background(), "")
	assert.True(t, errors.Is(err, collection.ErrValidation))
	_, err = svc.AddOne(context.Background(), " ", ref("a"))
	assert.True(t, errors.Is(err, collection.ErrValidation))
}

func TestConcurrentAddManyLosesNoIncrements(t *testing.T) {
	st, err := store.OpenSQLite(store.DefaultSQLiteConfig(filepath.Join(t.TempDir(), "cards.db")), nil)
	require.NoError(t, err)
	defer st.Close()
	svc := collection.NewService(st, zap.NewNop(), collection.Options{Timeout: 30 * time.Second})
	ctx := context.Background()

	const workers = 8
	const perWorker = 5
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := svc.AddMany(ctx, scope, []cards.CardRef{ref("shared"), ref(fmt.Sprintf("own-%d", w))})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	got, err := svc.Fetch(ctx, scope)
	require.NoError(t, err)
	require.Len(t, got, workers+1)
	shared, ok := got.Find("shared")
	require.True(t, ok)
	assert.Equal(t, workers*perWorker, shared.Count)
	for w := 0; w < workers; w++ {
		own, ok := got.Find(fmt.Sprintf("own-%d", w))
		require.True(t, ok)
		assert.Equal(t, perWorker, own.Count)
	}
}

func TestImportExportText(t *testing.T) {
	svc, _ := newService(t, collection.Options{})
	ctx := context.Background()

	got, err := svc.ImportText(ctx, scope, "# binder\n3xOP01-016\nST01-012\n")
	require.NoError(t, err)
	assertCollection(t, cards.Collection{entry("OP01-016", 3), entry("ST01-012", 1)}, got)

	_, err = svc.ImportText(ctx, scope, "1xOP01-016")
	require.NoError(t, err)

	text, err := svc.ExportText(ctx, scope, "binder")
	require.NoError(t, err)
	assert.Equal(t, "# binder\n4xOP01-016\n1xST01-012", text)

	_, err = svc.ImportText(ctx, scope, "0xOP01-016")
	assert.True(t, errors.Is(err, collection.ErrValidation))
}

func TestImportTextTooManyCopies(t *testing.T) {
	svc, st := newService(t, collection.Options{})
	ctx := context.Background()

	_, err := svc.ImportText(ctx, scope, strings.Repeat("999xOP01-016\n", 1<<20/13))
	require.Error(t, err)
	assert.True(t, errors.Is(err, collection.ErrValidation))

	got, err := st.GetOrCreate(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// failingStore fails every call after the first `okCalls`.
type failingStore struct {
	store.Store
	mu      sync.Mutex
	okCalls int
}

func (f *failingStore) allow() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.okCalls > 0 {
		f.okCalls--
		return true
	}
	return false
}

func (f *failingStore) GetOrCreate(ctx context.Context, scope string) (cards.Collection, error) {
	if !f.allow() {
		return nil, &store.StoreError{Op: "get", Scope: scope, Err: errors.New("connection refused")}
	}
	return f.Store.GetOrCreate(ctx, scope)
}

func (f *failingStore) UpsertIncrementBatch(ctx context.Context, scope string, ops []cards.Op) error {
	if !f.allow() {
		return &store.StoreError{Op: "upsert", Scope: scope, Err: errors.New("connection reset")}
	}
	return f.Store.UpsertIncrementBatch(ctx, scope, ops)
}

func TestStoreFailuresSurfaceAsUnavailable(t *testing.T) {
	fs := &failingStore{Store: store.NewMemoryStore()}
	defer fs.Close()
	svc := collection.NewService(fs, zap.NewNop(), collection.Options{})
	ctx := context.Background()

	got, err := svc.Fetch(ctx, scope)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, collection.ErrStoreUnavailable))
	var se *store.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "get", se.Op)
	assert.Contains(t, err.Error(), "connection refused")

	// read succeeds, persist fails: the whole call fails with no collection
	fs.okCalls = 1
	got, err = svc.AddMany(ctx, scope, []cards.CardRef{ref("a")})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, collection.ErrStoreUnavailable))
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "upsert", se.Op)
}

// slowStore blocks reads until the context is done.
type slowStore struct {
	store.Store
}

func (s slowStore) GetOrCreate(ctx context.Context, scope string) (cards.Collection, error) {
	<-ctx.Done()
	return nil, &store.StoreError{Op: "get", Scope: scope, Err: ctx.Err()}
}

func TestTimeout(t *testing.T) {
	st := slowStore{Store: store.NewMemoryStore()}
	defer st.Close()
	svc := collection.NewService(st, zap.NewNop(), collection.Options{Timeout: 20 * time.Millisecond})

	got, err := svc.AddMany(context.Background(), scope, []cards.CardRef{ref("a")})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, collection.IsTimeout(err))

	_, err = svc.Fetch(context.Background(), scope)
	require.Error(t, err)
	assert.True(t, collection.IsTimeout(err))
}

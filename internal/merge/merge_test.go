package merge_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youruser/cardvault/internal/cards"
	"github.com/youruser/cardvault/internal/merge"
)

func ref(id string) cards.CardRef { return cards.CardRef{ID: id} }

func entry(id string, n int) cards.HeldEntry {
	return cards.HeldEntry{Card: ref(id), Count: n}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		existing cards.Collection
		incoming []cards.CardRef
		want     cards.Collection
		wantOps  []cards.Op
	}{
		{
			name:     "single card into empty",
			incoming: []cards.CardRef{ref("a")},
			want:     cards.Collection{entry("a", 1)},
			wantOps:  []cards.Op{cards.Insert(ref("a"), 1)},
		},
		{
			name:     "duplicate within batch compounds",
			incoming: []cards.CardRef{ref("a"), ref("a")},
			want:     cards.Collection{entry("a", 2)},
			wantOps:  []cards.Op{cards.Insert(ref("a"), 1), cards.Increment(ref("a"), 2)},
		},
		{
			name:     "existing incremented and new appended",
			existing: cards.Collection{entry("a", 1)},
			incoming: []cards.CardRef{ref("a"), ref("b")},
			want:     cards.Collection{entry("a", 2), entry("b", 1)},
			wantOps:  []cards.Op{cards.Increment(ref("a"), 2), cards.Insert(ref("b"), 1)},
		},
		{
			name:     "order of existing entries is kept",
			existing: cards.Collection{entry("c", 3), entry("a", 1)},
			incoming: []cards.CardRef{ref("b"), ref("a"), ref("c"), ref("b")},
			want:     cards.Collection{entry("c", 4), entry("a", 2), entry("b", 2)},
			wantOps: []cards.Op{
				cards.Insert(ref("b"), 1),
				cards.Increment(ref("a"), 2),
				cards.Increment(ref("c"), 4),
				cards.Increment(ref("b"), 2),
			},
		},
		{
			name:     "empty batch",
			existing: cards.Collection{entry("a", 1)},
			want:     cards.Collection{entry("a", 1)},
			wantOps:  []cards.Op{},
		},
		{
			name:     "first duplicate of existing is incremented",
			existing: cards.Collection{entry("a", 1), entry("a", 1)},
			incoming: []cards.CardRef{ref("a")},
			want:     cards.Collection{entry("a", 2), entry("a", 1)},
			wantOps:  []cards.Op{cards.Increment(ref("a"), 2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := merge.Merge(tt.existing, tt.incoming)
			if diff := cmp.Diff(tt.want, got.Collection); diff != "" {
				t.Errorf("collection mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantOps, got.Ops); diff != "" {
				t.Errorf("ops mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeDoesNotMutateSnapshot(t *testing.T) {
	existing := cards.Collection{
		{Card: cards.CardRef{ID: "a", Attributes: map[string]any{"name": "Luffy"}}, Count: 1},
	}
	res := merge.Merge(existing, []cards.CardRef{ref("a"), ref("b")})

	assert.Equal(t, 1, existing[0].Count)
	assert.Len(t, existing, 1)
	res.Collection[0].Card.Attributes["name"] = "changed"
	assert.Equal(t, "Luffy", existing[0].Card.Attributes["name"])
}

func TestMergeKeepsStoredAttributesOnIncrement(t *testing.T) {
	existing := cards.Collection{
		{Card: cards.CardRef{ID: "a", Attributes: map[string]any{"name": "Luffy"}}, Count: 1},
	}
	incoming := []cards.CardRef{{ID: "a", Attributes: map[string]any{"name": "other"}}}

	res := merge.Merge(existing, incoming)
	require.Len(t, res.Collection, 1)
	assert.Equal(t, "Luffy", res.Collection[0].Card.Attr("name"))
	assert.Equal(t, "Luffy", res.Ops[0].Card.Attr("name"))
}

func TestMergeInvariants(t *testing.T) {
	existing := cards.Collection{entry("x", 2), entry("y", 1)}
	var incoming []cards.CardRef
	for i := 0; i < 200; i++ {
		incoming = append(incoming, ref(fmt.Sprintf("id-%d", i%17)))
		if i%5 == 0 {
			incoming = append(incoming, ref("x"))
		}
	}

	res := merge.Merge(existing, incoming)

	seen := map[string]bool{}
	total := 0
	for _, e := range res.Collection {
		assert.GreaterOrEqual(t, e.Count, 1, "count of %s", e.Card.ID)
		assert.False(t, seen[e.Card.ID], "duplicate id %s", e.Card.ID)
		seen[e.Card.ID] = true
		total += e.Count
	}
	assert.Equal(t, 3+len(incoming), total)
	assert.Equal(t, []string{"x", "y"}, res.Collection.IDs()[:2])
	assert.Len(t, res.Ops, len(incoming))
}

func TestResultStats(t *testing.T) {
	res := merge.Merge(cards.Collection{entry("a", 1)}, []cards.CardRef{ref("a"), ref("b"), ref("b")})
	assert.Equal(t, merge.Stats{Inserted: 1, Incremented: 2}, res.Stats())
}

func TestCompact(t *testing.T) {
	res := merge.Merge(cards.Collection{entry("c", 1)}, []cards.CardRef{ref("a"), ref("c"), ref("a"), ref("b"), ref("a"), ref("c")})

	got := merge.Compact(res.Ops)
	want := []cards.Op{
		cards.Insert(ref("a"), 3),
		cards.Increment(ref("c"), 3),
		cards.Insert(ref("b"), 1),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("compact mismatch (-want +got):\n%s", diff)
	}
}

package decklist

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youruser/cardvault/internal/cards"
)

func TestFormat(t *testing.T) {
	coll := cards.Collection{
		{Card: cards.CardRef{ID: "OP01-016"}, Count: 4},
		{Card: cards.CardRef{ID: "ST01-012"}, Count: 1},
		{Card: cards.CardRef{ID: "OP01-016"}, Count: 1},
	}
	assert.Equal(t, "# Binder\n5xOP01-016\n1xST01-012", Format("Binder", coll))
	assert.Equal(t, "", Format("", nil))
}

func TestParse(t *testing.T) {
	text := `# Red Zoro
4xOP01-016

// leader
1 x OP01-001
ST01-012
2XOP01-025
`
	got, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{ID: "OP01-016", Count: 4},
		{ID: "OP01-001", Count: 1},
		{ID: "ST01-012", Count: 1},
		{ID: "OP01-025", Count: 2},
	}, got)
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		"0xOP01-016",
		"1000xOP01-016",
		"3x",
		"two words",
	} {
		_, err := Parse(text)
		assert.Error(t, err, text)
	}
}

func TestParseRejectsTooManyCopies(t *testing.T) {
	_, err := Parse(strings.Repeat("999xa\n", 1<<20/6))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyCopies))

	lines, err := Parse(strings.Repeat("500xa\n", MaxTotalCopies/500))
	require.NoError(t, err)
	assert.Len(t, Expand(lines), MaxTotalCopies)

	_, err = Parse(strings.Repeat("500xa\n", MaxTotalCopies/500) + "b")
	assert.True(t, errors.Is(err, ErrTooManyCopies))
}

func TestParseIDContainingX(t *testing.T) {
	got, err := Parse("EB01-X01\n2xEB01-X01")
	require.NoError(t, err)
	assert.Equal(t, []Line{{ID: "EB01-X01", Count: 1}, {ID: "EB01-X01", Count: 2}}, got)
}

func TestRoundTrip(t *testing.T) {
	coll := cards.Collection{
		{Card: cards.CardRef{ID: "a"}, Count: 2},
		{Card: cards.CardRef{ID: "b"}, Count: 1},
	}
	lines, err := Parse(Format("t", coll))
	require.NoError(t, err)
	refs := Expand(lines)
	assert.Equal(t, []cards.CardRef{{ID: "a"}, {ID: "a"}, {ID: "b"}}, refs)
}

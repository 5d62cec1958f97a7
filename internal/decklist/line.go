package decklist

import "github.com/youruser/cardvault/internal/cards"

// Line is one "NxID" row of a decklist.
type Line struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// Expand turns lines into the card references a batch add expects: one
// reference per copy.
func Expand(lines []Line) []cards.CardRef {
	var out []cards.CardRef
	for _, l := range lines {
		for i := 0; i < l.Count; i++ {
			out = append(out, cards.CardRef{ID: l.ID})
		}
	}
	return out
}

package store

import (
	"fmt"

	"github.com/youruser/cardvault/internal/cards"
)

func removeMatching(entries cards.Collection, cardID string) cards.Collection {
	out := make(cards.Collection, 0, len(entries))
	for _, e := range entries {
		if e.Card.ID != cardID {
			out = append(out, e)
		}
	}
	return out
}

// applyOps mutates entries in place where possible and returns the result.
// An increment whose entry disappeared is re-appended with its target count.
func applyOps(entries cards.Collection, ops []cards.Op) (cards.Collection, error) {
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		if _, ok := index[e.Card.ID]; !ok {
			index[e.Card.ID] = i
		}
	}
	push := func(op cards.Op) {
		if _, ok := index[op.Card.ID]; !ok {
			index[op.Card.ID] = len(entries)
		}
		entries = append(entries, cards.HeldEntry{Card: op.Card.Clone(), Count: op.Count})
	}

	for _, op := range ops {
		if op.Count < 1 {
			return nil, fmt.Errorf("%s %q: count %d below 1", op.Kind, op.Card.ID, op.Count)
		}
		switch op.Kind {
		case cards.OpInsert:
			push(op)
		case cards.OpIncrement:
			if i, ok := index[op.Card.ID]; ok {
				entries[i].Count = op.Count
			} else {
				push(op)
			}
		default:
			return nil, fmt.Errorf("unknown op kind %d", op.Kind)
		}
	}
	return entries, nil
}

func validateEntries(entries cards.Collection) error {
	for _, e := range entries {
		if err := e.Card.Validate(); err != nil {
			return err
		}
		if e.Count < 1 {
			return fmt.Errorf("entry %q: count %d below 1", e.Card.ID, e.Count)
		}
	}
	return nil
}

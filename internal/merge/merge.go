// Package merge reconciles a batch of incoming cards with a collection.
//
// The engine is pure: it never touches storage. It returns the operations a
// store must apply together with the collection those operations produce, so
// callers can answer without reading the store back.
package merge

import "github.com/youruser/cardvault/internal/cards"

// Result is the outcome of a merge.
type Result struct {
	// Ops lists one operation per incoming card, in input order.
	Ops []cards.Op
	// Collection is the state after applying Ops to the input snapshot.
	Collection cards.Collection
}

// Stats summarizes a merge for logging.
type Stats struct {
	Inserted    int
	Incremented int
}

// Stats counts the operations in r by kind.
func (r Result) Stats() Stats {
	var s Stats
	for _, op := range r.Ops {
		switch op.Kind {
		case cards.OpInsert:
			s.Inserted++
		case cards.OpIncrement:
			s.Incremented++
		}
	}
	return s
}

// Merge folds incoming into existing.
//
// Each card is checked against a working index that already reflects the
// earlier cards of the same batch, so an id repeated within one batch is
// inserted once and then incremented. When existing holds several entries
// with one id, the first of them is the one incremented. existing is not
// modified.
func Merge(existing cards.Collection, incoming []cards.CardRef) Result {
	out := existing.Clone()
	index := make(map[string]int, len(out)+len(incoming))
	for i, e := range out {
		if _, seen := index[e.Card.ID]; !seen {
			index[e.Card.ID] = i
		}
	}

	ops := make([]cards.Op, 0, len(incoming))
	for _, card := range incoming {
		if pos, ok := index[card.ID]; ok {
			out[pos].Count++
			ops = append(ops, cards.Increment(out[pos].Card, out[pos].Count))
			continue
		}
		entry := cards.HeldEntry{Card: card.Clone(), Count: 1}
		index[card.ID] = len(out)
		out = append(out, entry)
		ops = append(ops, cards.Insert(entry.Card, 1))
	}
	return Result{Ops: ops, Collection: out}
}

// Compact collapses the operations for each id into one operation carrying
// the final count. An insert followed by increments stays an insert. The
// first-seen order of ids is preserved, so applying the compacted list yields
// the same collection as applying ops.
func Compact(ops []cards.Op) []cards.Op {
	out := make([]cards.Op, 0, len(ops))
	pos := make(map[string]int, len(ops))
	for _, op := range ops {
		if i, ok := pos[op.Card.ID]; ok {
			out[i].Count = op.Count
			continue
		}
		pos[op.Card.ID] = len(out)
		out = append(out, op)
	}
	return out
}

package cards

// OpKind says how an Op changes a collection.
type OpKind int

const (
	// OpInsert appends a new entry.
	OpInsert OpKind = iota
	// OpIncrement sets the count of an existing entry.
	OpIncrement
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpIncrement:
		return "increment"
	}
	return "unknown"
}

// Op is a single per-card change computed by a merge.
// For OpIncrement, Count is the new absolute count, not a delta.
type Op struct {
	Kind  OpKind
	Card  CardRef
	Count int
}

// Insert builds an OpInsert.
func Insert(card CardRef, count int) Op {
	return Op{Kind: OpInsert, Card: card, Count: count}
}

// Increment builds an OpIncrement. The card travels with the op so a store
// can re-append it if the entry was removed underneath the batch.
func Increment(card CardRef, newCount int) Op {
	return Op{Kind: OpIncrement, Card: card, Count: newCount}
}

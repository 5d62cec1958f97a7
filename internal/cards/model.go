package cards

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Reserved keys in the flat JSON form of a card.
const (
	keyID    = "id"
	keyCount = "count"
)

// CardRef identifies a card. Attributes ride along untouched.
type CardRef struct {
	ID         string
	Attributes map[string]any
}

// HeldEntry is a card plus the number of copies owned.
type HeldEntry struct {
	Card  CardRef
	Count int
}

// Collection is the ordered list of held entries for one scope.
type Collection []HeldEntry

// Validate checks that the card can be stored.
func (c CardRef) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("card id is required")
	}
	return nil
}

// Clone returns a copy whose attribute map is not shared with c.
func (c CardRef) Clone() CardRef {
	out := CardRef{ID: c.ID}
	if c.Attributes != nil {
		out.Attributes = make(map[string]any, len(c.Attributes))
		for k, v := range c.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// Attr returns a string attribute, or "" when missing or not a string.
func (c CardRef) Attr(name string) string {
	if s, ok := c.Attributes[name].(string); ok {
		return s
	}
	return ""
}

func (c CardRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(flatten(c, 0))
}

func (c *CardRef) UnmarshalJSON(b []byte) error {
	ref, _, err := unflatten(b)
	if err != nil {
		return err
	}
	*c = ref
	return nil
}

func (e HeldEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(flatten(e.Card, e.Count))
}

func (e *HeldEntry) UnmarshalJSON(b []byte) error {
	ref, count, err := unflatten(b)
	if err != nil {
		return err
	}
	*e = HeldEntry{Card: ref, Count: count}
	return nil
}

// MarshalJSON keeps a nil collection encoding as [] rather than null.
func (c Collection) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]HeldEntry(c))
}

// Clone deep-copies the collection.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for i, e := range c {
		out[i] = HeldEntry{Card: e.Card.Clone(), Count: e.Count}
	}
	return out
}

// IDs lists entry ids in collection order.
func (c Collection) IDs() []string {
	ids := make([]string, len(c))
	for i, e := range c {
		ids[i] = e.Card.ID
	}
	return ids
}

// Find returns the first entry with the given id.
func (c Collection) Find(id string) (HeldEntry, bool) {
	for _, e := range c {
		if e.Card.ID == id {
			return e, true
		}
	}
	return HeldEntry{}, false
}

func flatten(c CardRef, count int) map[string]any {
	m := make(map[string]any, len(c.Attributes)+2)
	for k, v := range c.Attributes {
		if k == keyID || k == keyCount {
			continue
		}
		m[k] = v
	}
	m[keyID] = c.ID
	if count > 0 {
		m[keyCount] = count
	}
	return m
}

func unflatten(b []byte) (CardRef, int, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return CardRef{}, 0, err
	}
	var ref CardRef
	if v, ok := raw[keyID]; ok {
		if err := json.Unmarshal(v, &ref.ID); err != nil {
			return CardRef{}, 0, fmt.Errorf("card id must be a string: %w", err)
		}
	}
	var count int
	if v, ok := raw[keyCount]; ok {
		if err := json.Unmarshal(v, &count); err != nil {
			return CardRef{}, 0, fmt.Errorf("card count must be an integer: %w", err)
		}
	}
	for k, v := range raw {
		if k == keyID || k == keyCount {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return CardRef{}, 0, err
		}
		if ref.Attributes == nil {
			ref.Attributes = make(map[string]any, len(raw))
		}
		ref.Attributes[k] = val
	}
	return ref, count, nil
}

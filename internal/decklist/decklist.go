// Package decklist reads and writes the plain-text card list format
// ("4xOP01-016" per line) that players paste between tools.
package decklist

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/youruser/cardvault/internal/cards"
)

// maxCopies guards against typos like "4000xOP01-016".
const maxCopies = 999

// MaxTotalCopies bounds the copies one decklist may add, so a short text
// cannot expand into millions of card references.
const MaxTotalCopies = 10000

// ErrTooManyCopies is returned when a decklist adds more than MaxTotalCopies.
var ErrTooManyCopies = errors.New("decklist has too many copies")

// Format renders a collection in collection order. Entries that share an id
// are summed into the first one.
func Format(title string, coll cards.Collection) string {
	lines := []string{}
	if title != "" {
		lines = append(lines, "# "+title)
	}
	totals := map[string]int{}
	order := []string{}
	for _, e := range coll {
		if _, ok := totals[e.Card.ID]; !ok {
			order = append(order, e.Card.ID)
		}
		totals[e.Card.ID] += e.Count
	}
	for _, id := range order {
		lines = append(lines, strconv.Itoa(totals[id])+"x"+id)
	}
	return strings.Join(lines, "\n")
}

// Parse reads a decklist. Blank lines and lines starting with "#" or "//"
// are skipped; a line without a "Nx" prefix counts one copy.
func Parse(text string) ([]Line, error) {
	var out []Line
	sc := bufio.NewScanner(strings.NewReader(text))
	n, total := 0, 0
	for sc.Scan() {
		n++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "//") {
			continue
		}
		l, err := parseLine(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		total += l.Count
		if total > MaxTotalCopies {
			return nil, fmt.Errorf("line %d: %w (limit %d)", n, ErrTooManyCopies, MaxTotalCopies)
		}
		out = append(out, l)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseLine(raw string) (Line, error) {
	i := strings.IndexAny(raw, "xX")
	if i > 0 {
		if cnt, err := strconv.Atoi(strings.TrimSpace(raw[:i])); err == nil {
			id := strings.TrimSpace(raw[i+1:])
			if id == "" {
				return Line{}, fmt.Errorf("missing card id in %q", raw)
			}
			if cnt < 1 || cnt > maxCopies {
				return Line{}, fmt.Errorf("count %d out of range 1..%d", cnt, maxCopies)
			}
			return Line{ID: id, Count: cnt}, nil
		}
	}
	if strings.ContainsAny(raw, " \t") {
		return Line{}, fmt.Errorf("cannot parse %q", raw)
	}
	return Line{ID: raw, Count: 1}, nil
}

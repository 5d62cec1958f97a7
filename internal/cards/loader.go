package cards

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Header names accepted for the id column, in priority order.
var idColumns = []string{"id", "card_id", "カードID"}

// Columns holding "/"-separated lists.
var listColumns = map[string]bool{
	"features":   true,
	"attributes": true,
	"特徴":         true,
	"属性":         true,
}

func parseListCell(s string) []string {
	s = strings.ReplaceAll(s, "／", "/")
	parts := strings.Split(s, "/")
	out := []string{}
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" && t != "-" {
			out = append(out, t)
		}
	}
	return out
}

// LoadCardRefsCSV reads card references from a CSV file with a header row.
// Each row becomes one CardRef; a card listed twice is returned twice.
func LoadCardRefsCSV(path string) ([]CardRef, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	refs, err := ReadCardRefsCSV(fp)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return refs, nil
}

// ReadCardRefsCSV is LoadCardRefsCSV over an arbitrary reader.
func ReadCardRefsCSV(r io.Reader) ([]CardRef, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("csv has no header")
	}
	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idIdx := -1
	for _, name := range idColumns {
		for i, h := range header {
			if strings.TrimSpace(h) == name {
				idIdx = i
				break
			}
		}
		if idIdx >= 0 {
			break
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("csv header has no id column (want one of %s)", strings.Join(idColumns, ", "))
	}

	out := []CardRef{}
	for n, row := range rows[1:] {
		if idIdx >= len(row) || strings.TrimSpace(row[idIdx]) == "" {
			return nil, fmt.Errorf("row %d: missing card id", n+2)
		}
		ref := CardRef{ID: strings.TrimSpace(row[idIdx])}
		for i, h := range header {
			h = strings.TrimSpace(h)
			if i == idIdx || i >= len(row) || h == "" || h == keyID || h == keyCount {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			if ref.Attributes == nil {
				ref.Attributes = map[string]any{}
			}
			if listColumns[h] {
				ref.Attributes[h] = parseListCell(cell)
			} else {
				ref.Attributes[h] = cell
			}
		}
		out = append(out, ref)
	}
	return out, nil
}

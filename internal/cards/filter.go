package cards

import "strings"

type FilterOptions struct {
	FreeWords string
	MinCount  int
}

func containsAny(hay []string, needle string) bool {
	for _, h := range hay {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

// searchable collects the id and every string-ish attribute value.
func searchable(c CardRef) []string {
	out := []string{c.ID}
	for _, v := range c.Attributes {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case []string:
			out = append(out, t...)
		case []any:
			for _, x := range t {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// Filter returns the entries matching every keyword in FreeWords and holding
// at least MinCount copies. Order is preserved.
func Filter(entries Collection, opt FilterOptions) Collection {
	out := Collection{}
	kw := strings.Fields(strings.ToLower(opt.FreeWords))
	for _, e := range entries {
		if opt.MinCount > 0 && e.Count < opt.MinCount {
			continue
		}
		if len(kw) > 0 {
			hay := searchable(e.Card)
			ok := true
			for _, k := range kw {
				if !containsAny(hay, k) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

package scanner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Detector reports whether text contains a codepoint from the forbidden ranges.
type Detector struct {
	table *unicode.RangeTable
}

// NewDetector builds a detector from inclusive hex ranges like "0600-06FF"
// or single codepoints like "061F".
func NewDetector(specs []string) (*Detector, error) {
	table, err := ParseRanges(specs)
	if err != nil {
		return nil, err
	}
	return &Detector{table: table}, nil
}

func (d *Detector) Match(text string) bool {
	return d.index(text) >= 0
}

// Excerpt returns up to max runes around the first match, or "".
func (d *Detector) Excerpt(text string, max int) string {
	i := d.index(text)
	if i < 0 {
		return ""
	}
	runes := []rune(text[i:])
	if len(runes) > max {
		runes = runes[:max]
	}
	return strings.TrimSpace(string(runes))
}

func (d *Detector) index(text string) int {
	for i, r := range text {
		if unicode.Is(d.table, r) {
			return i
		}
	}
	return -1
}

type span struct{ lo, hi rune }

func ParseRanges(specs []string) (*unicode.RangeTable, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no codepoint ranges configured")
	}

	spans := make([]span, 0, len(specs))
	for _, spec := range specs {
		lo, hi, found := strings.Cut(strings.TrimSpace(spec), "-")
		if !found {
			hi = lo
		}
		l, err := parseCodepoint(lo)
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", spec, err)
		}
		h, err := parseCodepoint(hi)
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", spec, err)
		}
		if h < l {
			return nil, fmt.Errorf("range %q: end before start", spec)
		}
		spans = append(spans, span{l, h})
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.lo <= last.hi+1 {
			if s.hi > last.hi {
				last.hi = s.hi
			}
			continue
		}
		merged = append(merged, s)
	}

	table := &unicode.RangeTable{}
	for _, s := range merged {
		if s.lo <= 0xFFFF {
			hi16 := s.hi
			if hi16 > 0xFFFF {
				hi16 = 0xFFFF
			}
			table.R16 = append(table.R16, unicode.Range16{Lo: uint16(s.lo), Hi: uint16(hi16), Stride: 1})
			if hi16 <= 0xFF {
				table.LatinOffset++
			}
		}
		if s.hi > 0xFFFF {
			lo32 := s.lo
			if lo32 <= 0xFFFF {
				lo32 = 0x10000
			}
			table.R32 = append(table.R32, unicode.Range32{Lo: uint32(lo32), Hi: uint32(s.hi), Stride: 1})
		}
	}
	return table, nil
}

func parseCodepoint(s string) (rune, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "U+"), "u+")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad codepoint %q", s)
	}
	if v > unicode.MaxRune {
		return 0, fmt.Errorf("codepoint %q out of range", s)
	}
	return rune(v), nil
}

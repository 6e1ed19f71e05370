package core

// headers.go maps arbitrary source headers onto canonical field names.
//
// Curated spreadsheets arrive with headers like "Company URL", "companyUrl"
// or "HQ Country". Every header is reduced to a snake_case canonical form
// so the same schema matches all of them.

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CanonicalName converts a header to lower snake_case.
//
// Word boundaries are separators, lower-to-upper transitions, the last
// capital of an acronym followed by lower case ("HQCountry" -> "hq_country"),
// and letter/digit transitions ("Scope1" -> "scope_1"). Apostrophes are
// dropped so "Company's" becomes "companys".
func CanonicalName(s string) string {
	s = norm.NFKC.String(s)
	s = strings.NewReplacer("'", "", "’", "").Replace(s)

	runes := []rune(s)
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			switch {
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				flush()
			case unicode.IsUpper(r) && !unicode.IsUpper(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) &&
				i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	return strings.Join(words, "_")
}

// Header is the parsed header line of a source, shared by every row read
// from it.
type Header struct {
	names []string       // Original header text
	index map[string]int // Canonical name -> column position
}

// NewHeader indexes raw header names by canonical form. When two headers
// canonicalize to the same name the first one wins.
func NewHeader(names []string) *Header {
	h := &Header{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		n = strings.TrimSpace(n)
		h.names[i] = n
		key := CanonicalName(n)
		if key == "" {
			continue
		}
		if _, dup := h.index[key]; !dup {
			h.index[key] = i
		}
	}
	return h
}

// Names returns the original header names.
func (h *Header) Names() []string {
	return append([]string(nil), h.names...)
}

// Canonical returns the canonical names present in the header.
func (h *Header) Canonical() []string {
	out := make([]string, 0, len(h.index))
	for k := range h.index {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether a canonical field name is present.
func (h *Header) Has(field string) bool {
	_, ok := h.index[field]
	return ok
}

// Row binds a record's cells to this header.
func (h *Header) Row(line int, cells []string) RawRow {
	return RawRow{Line: line, header: h, cells: cells}
}

// RawRow is one source line: original header -> raw string. Cells beyond the
// header are ignored and missing trailing cells read as absent.
type RawRow struct {
	Line   int
	header *Header
	cells  []string
}

// NewRawRow builds a row from a header/value mapping.
func NewRawRow(line int, values map[string]string) RawRow {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	cells := make([]string, len(names))
	for i, n := range names {
		cells[i] = values[n]
	}
	return NewHeader(names).Row(line, cells)
}

// Lookup returns the raw value for a canonical field name.
func (r RawRow) Lookup(field string) (string, bool) {
	if r.header == nil {
		return "", false
	}
	pos, ok := r.header.index[field]
	if !ok || pos >= len(r.cells) {
		return "", false
	}
	return r.cells[pos], true
}

// Value returns the trimmed raw value for a canonical field name, or "".
func (r RawRow) Value(field string) string {
	v, _ := r.Lookup(field)
	return strings.TrimSpace(v)
}

// Map returns the row keyed by original header names.
func (r RawRow) Map() map[string]string {
	if r.header == nil {
		return nil
	}
	m := make(map[string]string, len(r.header.names))
	for i, n := range r.header.names {
		if i < len(r.cells) {
			m[n] = r.cells[i]
		}
	}
	return m
}

// IsEmpty reports whether every cell is blank.
func (r RawRow) IsEmpty() bool {
	for _, c := range r.cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

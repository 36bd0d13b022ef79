package isisgo

import "strings"

// Field is a single tag-keyed unit of record content. Its Data may
// contain subfields introduced by Delimiter followed by a single
// alphanumeric key; the portion before the first delimiter is the
// implicit subfield '*'.
//
// Grounded on pyisis/fields.py's MasterField.
type Field struct {
	Tag       int
	Data      string
	Delimiter byte
}

// NewField builds a Field with the database's configured delimiter.
func NewField(tag int, data string, cfg Config) Field {
	delim := cfg.SubfieldDelimiter
	if delim == 0 {
		delim = DefaultSubfieldDelimiter
	}
	return Field{Tag: tag, Data: data, Delimiter: delim}
}

// Subfields splits Data into an ordered map of subfield key -> values,
// preserving first-appearance order. Every key maps to a slice of its
// values in order of appearance; Subfield returns the first. The '*' key always
// aliases the first subfield in appearance order, matching pyisis.
type Subfields struct {
	Order  []byte
	Values map[byte][]string
}

// ParseSubfields extracts subfields from data using delim, mirroring
// MasterField._get_subfields: if data does not start with the delimiter,
// an implicit "<delim> " prefix is assumed (single anonymous subfield).
func ParseSubfields(data string, delim byte) Subfields {
	sf := Subfields{Values: map[byte][]string{}}
	if data == "" {
		return sf
	}
	if data[0] != delim {
		data = string(delim) + " " + data
	}
	parts := strings.Split(data, string(delim))
	seen := map[byte]bool{}
	for _, p := range parts {
		if p == "" {
			continue
		}
		key := normalizeSubfieldKey(p[0])
		val := p[1:]
		if !seen[key] {
			seen[key] = true
			sf.Order = append(sf.Order, key)
		}
		sf.Values[key] = append(sf.Values[key], val)
	}
	if len(sf.Order) > 0 {
		sf.Values['*'] = sf.Values[sf.Order[0]]
	}
	return sf
}

func normalizeSubfieldKey(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

// Subfield returns the subfield named key. ok is false when the
// subfield is absent (spec §7: a Bounds condition, recovered locally
// by formatting callers).
func (f Field) Subfield(key byte) (value string, ok bool) {
	sf := ParseSubfields(f.Data, f.delimiterOrDefault())
	values, present := sf.Values[normalizeSubfieldKey(key)]
	if !present || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// SubfieldAll returns every occurrence of subfield key in appearance order.
func (f Field) SubfieldAll(key byte) []string {
	sf := ParseSubfields(f.Data, f.delimiterOrDefault())
	return sf.Values[normalizeSubfieldKey(key)]
}

func (f Field) delimiterOrDefault() byte {
	if f.Delimiter == 0 {
		return DefaultSubfieldDelimiter
	}
	return f.Delimiter
}

// RepeatableField is an ordered sequence of Fields sharing the same tag.
// Indexing at the language surface is 1-based: index 0 yields the empty
// field, a slice [0:0] yields empty, and [0:n] coerces to [1:n].
//
// Grounded on pyisis/fields.py's MasterContainerField.
type RepeatableField struct {
	Tag      int
	Elements []Field
}

// At returns the 1-based occurrence occ. occ==0 yields an empty field,
// matching pyisis's __getitem__(0).
func (r RepeatableField) At(occ int) Field {
	if occ <= 0 {
		return Field{Tag: 0}
	}
	if occ > len(r.Elements) {
		return Field{Tag: r.Tag}
	}
	return r.Elements[occ-1]
}

// Slice returns occurrences begin through end inclusive (1-based), with
// [0:0]-empty and [0:n]-coerces-to-[1:n] semantics.
func (r RepeatableField) Slice(begin, end int) []Field {
	if begin == 0 && end == 0 {
		return nil
	}
	if begin == 0 {
		begin = 1
	}
	if begin < 1 {
		begin = 1
	}
	if end > len(r.Elements) {
		end = len(r.Elements)
	}
	if begin-1 >= end || begin-1 >= len(r.Elements) {
		return nil
	}
	return r.Elements[begin-1 : end]
}

// Len reports the occurrence count.
func (r RepeatableField) Len() int { return len(r.Elements) }

// Data concatenates every element's Data with sep, matching
// MasterContainerField.data (default separator "").
func (r RepeatableField) Data(sep string) string {
	parts := make([]string, len(r.Elements))
	for i, f := range r.Elements {
		parts[i] = f.Data
	}
	return strings.Join(parts, sep)
}

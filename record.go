package isisgo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Status is the lifecycle state of a record, mirroring
// pyisis/records.py's status2str mapping.
type Status int

const (
	StatusActive Status = iota
	StatusLogicallyDeleted
	StatusPhysicallyDeleted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusLogicallyDeleted:
		return "logically deleted"
	case StatusPhysicallyDeleted:
		return "physically deleted"
	default:
		return "unknown"
	}
}

// value is stored per tag: either a single Field or a RepeatableField.
// At most one of the two is meaningful at a time; repeatable containers
// never nest, matching spec §4.3's invariant.
type tagValue struct {
	field      Field
	repeatable RepeatableField
	isRepeat   bool
}

// Record is a tag -> (Field | RepeatableField) mapping with preserved
// insertion order of first appearance per tag, plus ISIS lifecycle
// metadata.
//
// Grounded on pyisis/records.py's MasterRecord.
type Record struct {
	MFN    int // assigned at save if zero
	Status Status
	MFBWB  int32 // backward-pointer block (previous version)
	MFBWP  int32 // backward-pointer offset

	cfg    Config
	order  []int
	values map[int]tagValue

	// mst is a transient back-reference to the owning master file; not
	// persisted, used by Previous()/context-dependent formatting.
	mst *MasterFile
}

// NewRecord returns an empty record bound to cfg.
func NewRecord(cfg Config) *Record {
	return &Record{cfg: cfg, values: map[int]tagValue{}}
}

// Config returns the record's bound configuration.
func (r *Record) Config() Config { return r.cfg }

// Set assigns tag's value. data may be a string (single field), a
// Field, or a []Field/[]string (coerced into a repeatable container).
func (r *Record) Set(tag int, data any) error {
	switch v := data.(type) {
	case string:
		r.setSingle(tag, NewField(tag, v, r.cfg))
	case Field:
		v.Tag = tag
		r.setSingle(tag, v)
	case []string:
		fields := make([]Field, len(v))
		for i, s := range v {
			fields[i] = NewField(tag, s, r.cfg)
		}
		r.setRepeatable(tag, fields)
	case []Field:
		fields := make([]Field, len(v))
		for i, f := range v {
			f.Tag = tag
			fields[i] = f
		}
		r.setRepeatable(tag, fields)
	default:
		return fmt.Errorf("isisgo: unsupported field value type %T", data)
	}
	return nil
}

// SetV is sugar for Set(tag, data), mirroring "assigning v<N> is
// equivalent to assigning tag N" from spec §3.
func (r *Record) SetV(n int, data any) error { return r.Set(n, data) }

func (r *Record) setSingle(tag int, f Field) {
	if _, exists := r.values[tag]; !exists {
		r.order = append(r.order, tag)
	}
	r.values[tag] = tagValue{field: f}
}

func (r *Record) setRepeatable(tag int, fields []Field) {
	if _, exists := r.values[tag]; !exists {
		r.order = append(r.order, tag)
	}
	r.values[tag] = tagValue{repeatable: RepeatableField{Tag: tag, Elements: fields}, isRepeat: true}
}

// Has reports whether tag is present in the record.
func (r *Record) Has(tag int) bool {
	_, ok := r.values[tag]
	return ok
}

// Field returns tag's field value. For a repeatable tag it returns the
// first occurrence. Missing tags yield an empty field and false; per
// spec §4.3, formatting contexts should treat this as empty text, not
// an error.
func (r *Record) Field(tag int) (Field, bool) {
	tv, ok := r.values[tag]
	if !ok {
		return Field{Tag: tag}, false
	}
	if tv.isRepeat {
		return tv.repeatable.At(1), true
	}
	return tv.field, true
}

// Repeatable returns tag's repeatable container. If tag holds a single
// field, a one-element container is synthesized.
func (r *Record) Repeatable(tag int) (RepeatableField, bool) {
	tv, ok := r.values[tag]
	if !ok {
		return RepeatableField{Tag: tag}, false
	}
	if tv.isRepeat {
		return tv.repeatable, true
	}
	return RepeatableField{Tag: tag, Elements: []Field{tv.field}}, true
}

// NVF returns the flattened directory-entry count: repeatable
// containers count every occurrence, singles count one.
func (r *Record) NVF() int {
	n := 0
	for _, tag := range r.order {
		tv := r.values[tag]
		if tv.isRepeat {
			n += len(tv.repeatable.Elements)
		} else {
			n++
		}
	}
	return n
}

// Fields yields the flattened (tag, Field) sequence in insertion then
// occurrence order, the form used for directory/data I/O.
func (r *Record) Fields() []Field {
	out := make([]Field, 0, r.NVF())
	for _, tag := range r.order {
		tv := r.values[tag]
		if tv.isRepeat {
			out = append(out, tv.repeatable.Elements...)
		} else {
			out = append(out, tv.field)
		}
	}
	return out
}

// Tags returns the set of tags present, in first-appearance order.
func (r *Record) Tags() []int {
	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}

// Delete removes tag entirely.
func (r *Record) Delete(tag int) {
	if _, ok := r.values[tag]; !ok {
		return
	}
	delete(r.values, tag)
	for i, t := range r.order {
		if t == tag {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// DeleteOccurrence removes the occ'th (1-based) occurrence of a
// repeatable tag. Swallows out-of-range occurrences, matching proc's
// delete-missing-tag recovery policy (spec §7).
func (r *Record) DeleteOccurrence(tag, occ int) {
	tv, ok := r.values[tag]
	if !ok || !tv.isRepeat {
		return
	}
	if occ < 1 || occ > len(tv.repeatable.Elements) {
		return
	}
	elems := tv.repeatable.Elements
	elems = append(elems[:occ-1], elems[occ:]...)
	if len(elems) == 0 {
		r.Delete(tag)
		return
	}
	tv.repeatable.Elements = elems
	r.values[tag] = tv
}

// Clear removes every tag, matching proc's `d*`.
func (r *Record) Clear() {
	r.order = nil
	r.values = map[int]tagValue{}
}

// Append adds one more occurrence to tag, creating a repeatable
// container if tag already held a single field, matching proc's `a<tag>`.
func (r *Record) Append(tag int, data string) {
	f := NewField(tag, data, r.cfg)
	tv, ok := r.values[tag]
	if !ok {
		r.setSingle(tag, f)
		return
	}
	if tv.isRepeat {
		tv.repeatable.Elements = append(tv.repeatable.Elements, f)
		r.values[tag] = tv
		return
	}
	r.setRepeatable(tag, []Field{tv.field, f})
}

// ToXML renders the record in the inverted-file XML-like format: one
// <record> element per record, one <field> per tag (a repeatable tag's
// occurrences each become a nested <occ>), and one <subfield> per
// subfield, its value wrapped in CDATA. The synthesized '*' alias is
// skipped since it duplicates the first real subfield key.
//
// Grounded on pyisis/records.py's MasterRecord.to_xml and
// pyisis/fields.py's MasterField.to_xml / MasterContainerField.to_xml.
func (r *Record) ToXML() string {
	var body strings.Builder
	for _, tag := range r.order {
		tv := r.values[tag]
		if tv.isRepeat {
			body.WriteString(fieldToXML(tag, tv.repeatable.Elements))
		} else {
			body.WriteString(fieldToXML(tag, []Field{tv.field}))
		}
	}
	return fmt.Sprintf(`<record mfn="%d" status="%s">%s</record>`, r.MFN, r.Status, body.String())
}

func fieldToXML(tag int, occs []Field) string {
	if len(occs) == 1 {
		return fmt.Sprintf(`<field tag="%d"><occ>%s</occ></field>`, tag, occXML(occs[0]))
	}
	var occBody strings.Builder
	for _, f := range occs {
		occBody.WriteString(fmt.Sprintf(`<occ>%s</occ>`, occXML(f)))
	}
	return fmt.Sprintf(`<field tag="%d">%s</field>`, tag, occBody.String())
}

func occXML(f Field) string {
	sf := ParseSubfields(f.Data, f.delimiterOrDefault())
	var out strings.Builder
	for _, key := range sf.Order {
		// ParseSubfields keys an implicit anonymous subfield (data with
		// no leading delimiter) as a literal space; pyisis's
		// _get_subfields strips that same space to "" before emitting,
		// so the XML tag attribute matches it here.
		tag := strings.TrimSpace(string(key))
		for _, val := range sf.Values[key] {
			out.WriteString(fmt.Sprintf(`<subfield tag="%s"><![CDATA[%s]]></subfield>`, tag, val))
		}
	}
	return out.String()
}

// String renders a debugging representation: sorted tag -> data lines.
func (r *Record) String() string {
	tags := make([]int, len(r.order))
	copy(tags, r.order)
	sort.Ints(tags)
	out := "mfn=" + strconv.Itoa(r.MFN) + " status=" + r.Status.String() + "\n"
	for _, tag := range tags {
		tv := r.values[tag]
		if tv.isRepeat {
			for i, f := range tv.repeatable.Elements {
				out += fmt.Sprintf("  %d[%d]=%s\n", tag, i+1, f.Data)
			}
		} else {
			out += fmt.Sprintf("  %d=%s\n", tag, tv.field.Data)
		}
	}
	return out
}

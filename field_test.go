package isisgo

import "testing"

func TestParseSubfieldsImplicitAnonymous(t *testing.T) {
	sf := ParseSubfields("Smith, J.", '^')
	if got := sf.Values['*'][0]; got != "Smith, J." {
		t.Fatalf("anonymous subfield = %q", got)
	}
}

func TestParseSubfieldsOrderAndRepeat(t *testing.T) {
	sf := ParseSubfields("^aSmith^bEd.^aJones", '^')
	if len(sf.Order) != 2 || sf.Order[0] != 'a' || sf.Order[1] != 'b' {
		t.Fatalf("order = %v", sf.Order)
	}
	if got := sf.Values['a']; len(got) != 2 || got[0] != "Smith" || got[1] != "Jones" {
		t.Fatalf("subfield a = %v", got)
	}
	if got := sf.Values['b'][0]; got != "Ed." {
		t.Fatalf("subfield b = %q", got)
	}
	if sf.Values['*'][0] != "Smith" {
		t.Fatalf("* alias = %v", sf.Values['*'])
	}
}

func TestRepeatableFieldIndexZeroIsEmpty(t *testing.T) {
	r := RepeatableField{Tag: 90, Elements: []Field{{Tag: 90, Data: "alpha"}, {Tag: 90, Data: "beta"}}}
	if got := r.At(0).Data; got != "" {
		t.Fatalf("At(0) = %q, want empty", got)
	}
	if got := r.At(1).Data; got != "alpha" {
		t.Fatalf("At(1) = %q", got)
	}
	if got := r.Slice(0, 0); got != nil {
		t.Fatalf("Slice(0,0) = %v, want nil", got)
	}
	if got := r.Slice(0, 1); len(got) != 1 || got[0].Data != "alpha" {
		t.Fatalf("Slice(0,1) = %v", got)
	}
}

func TestRecordSetRepeatableAndFields(t *testing.T) {
	cfg := DefaultConfig()
	rec := NewRecord(cfg)
	if err := rec.Set(90, []string{"alpha", "beta", "gamma"}); err != nil {
		t.Fatal(err)
	}
	rf, ok := rec.Repeatable(90)
	if !ok || rf.Len() != 3 {
		t.Fatalf("repeatable = %+v", rf)
	}
	if got := rf.Data("; "); got != "alpha; beta; gamma" {
		t.Fatalf("joined data = %q", got)
	}
}

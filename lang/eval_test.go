package lang

import (
	"testing"

	isisgo "github.com/rsenra/isisgo"
)

func runFormat(t *testing.T, src string, rec *isisgo.Record) string {
	t.Helper()
	node, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	ctx := NewContext(rec, nil, isisgo.DefaultConfig())
	ctx.LineWidth = 200
	v, _, err := node.Eval(ctx)
	if err != nil {
		t.Fatalf("Eval(%q): %v", src, err)
	}
	_ = v
	return ctx.Result()
}

func TestFixedWidthNumberFormat(t *testing.T) {
	rec := isisgo.NewRecord(isisgo.DefaultConfig())
	got := runFormat(t, "f(42,6,0)", rec)
	want := "    42"
	if got != want {
		t.Fatalf("f(42,6,0) = %q, want %q", got, want)
	}
}

func TestMFNFixedWidth(t *testing.T) {
	rec := isisgo.NewRecord(isisgo.DefaultConfig())
	rec.MFN = 12
	got := runFormat(t, "mfn(5)", rec)
	want := "00012"
	if got != want {
		t.Fatalf("mfn(5) = %q, want %q", got, want)
	}
}

func TestModePunctuation(t *testing.T) {
	rec := isisgo.NewRecord(isisgo.DefaultConfig())
	if err := rec.Set(70, "Smith, J.^bEd."); err != nil {
		t.Fatal(err)
	}

	got := runFormat(t, "mpl,v70", rec)
	want := "Smith, J., Ed."
	if got != want {
		t.Fatalf("mpl,v70 = %q, want %q", got, want)
	}

	got = runFormat(t, "mdu,v70", rec)
	want = "SMITH, J., ED.  "
	if got != want {
		t.Fatalf("mdu,v70 = %q, want %q", got, want)
	}
}

func TestIfThenElse(t *testing.T) {
	rec := isisgo.NewRecord(isisgo.DefaultConfig())
	if err := rec.Set(10, "x"); err != nil {
		t.Fatal(err)
	}
	got := runFormat(t, `if p(v10) then 'present' else 'absent' fi`, rec)
	if got != "present" {
		t.Fatalf("if-present = %q, want %q", got, "present")
	}

	rec2 := isisgo.NewRecord(isisgo.DefaultConfig())
	got = runFormat(t, `if p(v10) then 'present' else 'absent' fi`, rec2)
	if got != "absent" {
		t.Fatalf("if-absent = %q, want %q", got, "absent")
	}
}

func TestRepeatableGroupSeparator(t *testing.T) {
	rec := isisgo.NewRecord(isisgo.DefaultConfig())
	if err := rec.Set(90, []string{"a", "b", "c"}); err != nil {
		t.Fatal(err)
	}
	got := runFormat(t, "(v90+|; |)", rec)
	want := "a; b; c"
	if got != want {
		t.Fatalf("(v90+|; |) = %q, want %q", got, want)
	}
}

func TestProcMutation(t *testing.T) {
	rec := isisgo.NewRecord(isisgo.DefaultConfig())
	if err := rec.Set(10, "hello"); err != nil {
		t.Fatal(err)
	}
	node, err := Parse(`proc('g10/l/L/')`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := NewContext(rec, nil, isisgo.DefaultConfig())
	if _, _, err := node.Eval(ctx); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	f, ok := rec.Field(10)
	if !ok || f.Data != "heLLo" {
		t.Fatalf("after proc gizmo, tag 10 = %q, ok=%v, want %q", f.Data, ok, "heLLo")
	}
}

func TestConditionalLiteralEmptyWhenFieldMissing(t *testing.T) {
	rec := isisgo.NewRecord(isisgo.DefaultConfig())
	got := runFormat(t, `'x:' "v10"`, rec)
	if got != "x:" {
		t.Fatalf(`'x:' "v10" with missing v10 = %q, want %q`, got, "x:")
	}

	if err := rec.Set(10, "y"); err != nil {
		t.Fatal(err)
	}
	got = runFormat(t, `'x:' "v10"`, rec)
	want := "x:y"
	if got != want {
		t.Fatalf(`'x:' "v10" with present v10 = %q, want %q`, got, want)
	}
}

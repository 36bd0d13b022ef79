package lang

import (
	"testing"

	isisgo "github.com/rsenra/isisgo"
)

func TestSessionLineWidthDoesNotLeakAcrossCalls(t *testing.T) {
	s := NewSession(isisgo.DefaultConfig())
	rec := isisgo.NewRecord(isisgo.DefaultConfig())

	if _, err := s.Format("lw(5)", rec, nil); err != nil {
		t.Fatalf("Format: %v", err)
	}

	const literal = "'hello world foo bar'"
	got, err := s.Format(literal, rec, nil)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got != "hello world foo bar" {
		t.Fatalf("second call saw a leaked line width, got %q", got)
	}
}

func TestSessionCompileCachesBySource(t *testing.T) {
	s := NewSession(isisgo.DefaultConfig())
	n1, err := s.Compile("'x'")
	if err != nil {
		t.Fatal(err)
	}
	n2, err := s.Compile("'x'")
	if err != nil {
		t.Fatal(err)
	}
	if n1 != n2 {
		t.Fatal("expected the same compiled node for identical source text")
	}
}

func TestTypeClassifiesNumericAlphaAndMixed(t *testing.T) {
	rec := isisgo.NewRecord(isisgo.DefaultConfig())
	cases := []struct {
		src  string
		want string
	}{
		{`type('12345')`, "N"},
		{`type('ABCxyz')`, "A"},
		{`type('AB-12')`, "X"},
	}
	for _, c := range cases {
		got := runFormat(t, c.src, rec)
		if got != c.want {
			t.Fatalf("%s = %q, want %q", c.src, got, c.want)
		}
	}
}

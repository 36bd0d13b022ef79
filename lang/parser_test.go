package lang

import (
	"testing"

	isisgo "github.com/rsenra/isisgo"
)

func TestParseArithmeticExpression(t *testing.T) {
	rec := isisgo.NewRecord(isisgo.DefaultConfig())
	got := runFormat(t, "f(2+3*4,0,0)", rec)
	if got != "14" {
		t.Fatalf("f(2+3*4,0,0) = %q, want %q", got, "14")
	}
}

func TestParseWhileLoop(t *testing.T) {
	rec := isisgo.NewRecord(isisgo.DefaultConfig())
	node, err := Parse(`e1:=0 while(e1<3) e1:=e1+1 fi`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := NewContext(rec, nil, isisgo.DefaultConfig())
	ctx.LineWidth = 200
	if _, _, err := node.Eval(ctx); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	got, ok := ctx.Variables["E1"]
	if !ok {
		t.Fatal("E1 was never set")
	}
	n, _ := got.Float()
	if n != 3 {
		t.Fatalf("E1 = %v, want 3", n)
	}
}

func TestParseSelect(t *testing.T) {
	rec := isisgo.NewRecord(isisgo.DefaultConfig())
	if err := rec.Set(10, "x"); err != nil {
		t.Fatal(err)
	}
	got := runFormat(t, `select case p(v10): 'yes' elsecase: 'no' endsel`, rec)
	if got != "yes" {
		t.Fatalf("select = %q, want %q", got, "yes")
	}
}

func TestParseVariableAssignAndRef(t *testing.T) {
	rec := isisgo.NewRecord(isisgo.DefaultConfig())
	got := runFormat(t, `myvar:='hi' myvar`, rec)
	if got != "hi" {
		t.Fatalf("var assign/ref = %q, want %q", got, "hi")
	}
}

func TestParseKnownFunctionSucceeds(t *testing.T) {
	_, err := Parse(`mid('a',1,1)`)
	if err != nil {
		t.Fatalf("mid() should be a known function, got error: %v", err)
	}
}

func TestParseSyntaxErrorOnBadCharacter(t *testing.T) {
	if _, err := Parse("@@@"); err == nil {
		t.Fatal("expected a syntax error for an unrecognized character")
	}
}

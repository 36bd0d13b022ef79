package lang

import "testing"

func TestLexerFieldTokenDecorations(t *testing.T) {
	l := NewLexer(`v70^b[1]*2.5(3,1)`)
	tok, err := l.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Kind != TokField {
		t.Fatalf("kind = %v, want TokField", tok.Kind)
	}
	ft := tok.Field
	if ft.Tag != 70 || ft.Type != 'v' {
		t.Fatalf("tag/type = %d/%c, want 70/v", ft.Tag, ft.Type)
	}
	if !ft.HasSub || ft.Subfield != 'b' {
		t.Fatalf("subfield = %v/%c, want true/b", ft.HasSub, ft.Subfield)
	}
	if !ft.HasOcc || ft.OccBegin != "1" {
		t.Fatalf("occ = %v/%q, want true/1", ft.HasOcc, ft.OccBegin)
	}
	if !ft.HasSlice || ft.SliceBegin != 2 || ft.SliceEnd != 5 {
		t.Fatalf("slice = %v %d.%d, want true 2.5", ft.HasSlice, ft.SliceBegin, ft.SliceEnd)
	}
	if !ft.HasAlign || ft.AlignFirst != 3 || ft.AlignNext != 1 {
		t.Fatalf("align = %v %d,%d, want true 3,1", ft.HasAlign, ft.AlignFirst, ft.AlignNext)
	}
}

func TestLexerReservedAndFuncNames(t *testing.T) {
	cases := []struct {
		src  string
		kind TokenKind
	}{
		{"if", TokIf},
		{"while", TokWhile},
		{"mpu", TokModeDirective},
		{"mid", TokFuncName},
		{"somevar", TokIdent},
	}
	for _, c := range cases {
		l := NewLexer(c.src)
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("Next(%q): %v", c.src, err)
		}
		if tok.Kind != c.kind {
			t.Fatalf("Next(%q).Kind = %v, want %v", c.src, tok.Kind, c.kind)
		}
	}
}

func TestLexerQuotedLiterals(t *testing.T) {
	l := NewLexer(`"cond" 'plain'`)
	tok1, err := l.Next()
	if err != nil || tok1.Kind != TokConditional || tok1.Text != "cond" {
		t.Fatalf("tok1 = %+v, err=%v", tok1, err)
	}
	tok2, err := l.Next()
	if err != nil || tok2.Kind != TokString || tok2.Text != "plain" {
		t.Fatalf("tok2 = %+v, err=%v", tok2, err)
	}
}

func TestLexerUnterminatedLiteralErrors(t *testing.T) {
	l := NewLexer(`"unterminated`)
	if _, err := l.Next(); err == nil {
		t.Fatal("expected an error for an unterminated conditional literal")
	}
}

func TestLexerRepeatableLiteralTrailingPlus(t *testing.T) {
	l := NewLexer(`|, |+`)
	tok, err := l.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Kind != TokRepeatable || tok.Text != ", " || !tok.Plus {
		t.Fatalf("tok = %+v, want repeatable ', ' with Plus", tok)
	}
}

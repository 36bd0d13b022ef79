// Package lang implements the CDS/ISIS formatting language: lexer,
// parser, AST, and evaluator. Grounded on original_source/pyisis's
// lexer.py/parser.py/ast.py, translated from a PLY grammar into a
// handwritten scanner and precedence-climbing parser in the idiom
// sampled from the reference pack's standalone parser files.
package lang

import "fmt"

// TokenKind identifies one lexical token class.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokField        // v<N>, d<N>, n<N> with optional subfield/occurrence/slicer/alignment
	TokNumber
	TokIdent
	TokString     // 'inconditional'
	TokConditional // "conditional"
	TokRepeatable  // |repeatable|
	TokVarString  // S<N>
	TokVarNumeric // E<N>
	TokMFN        // mfn / MFN(n)

	TokPlus
	TokMinus
	TokStar
	TokSlash
	TokPercent
	TokAssign // :=
	TokEq
	TokNE
	TokLT
	TokLE
	TokGT
	TokGE
	TokColon
	TokComma
	TokLParen
	TokRParen
	TokArrow // ->

	TokAnd
	TokOr
	TokXor
	TokNot

	TokIf
	TokThen
	TokElse
	TokFi
	TokWhile
	TokSelect
	TokCase
	TokElseCase
	TokEndSel
	TokBreak
	TokContinue

	TokModeDirective // mpu mpl mhu mhl mdu mdl
	TokSpacerHash    // #
	TokSpacerX       // Xn
	TokSpacerC       // Cn

	TokFuncName // mid, left, right, ..., proc, ref, etc.

	TokProcPattern // raw unparsed text inside proc(...)
)

// FieldToken carries a field reference's decorated parameters, built by
// the lexer's tagfield state (pyisis t_VFIELD/t_tagfield_*).
type FieldToken struct {
	Tag        int
	Type       byte // 'v', 'd', or 'n'
	Subfield   byte
	HasSub     bool
	OccBegin   string // numeric literal or variable name or "LAST"
	OccEnd     string
	HasOcc     bool
	SliceBegin int
	SliceEnd   int
	HasSlice   bool
	AlignFirst int
	AlignNext  int
	HasAlign   bool
}

// Token is one lexical token.
type Token struct {
	Kind  TokenKind
	Text  string
	Num   float64
	Field FieldToken
	Pos   int
	Plus  bool // trailing '+' on a repeatable literal
}

func (t Token) String() string {
	return fmt.Sprintf("Token{%d,%q,pos=%d}", t.Kind, t.Text, t.Pos)
}

// reserved maps lower-cased keyword spellings to token kinds, grounded
// on pyisis/lexer.py's reserved dictionaries.
var reserved = map[string]TokenKind{
	"if": TokIf, "then": TokThen, "else": TokElse, "fi": TokFi,
	"while": TokWhile,
	"select": TokSelect, "case": TokCase, "elsecase": TokElseCase, "endsel": TokEndSel,
	"break": TokBreak, "continue": TokContinue,
	"and": TokAnd, "or": TokOr, "xor": TokXor, "not": TokNot,
	"mpu": TokModeDirective, "mpl": TokModeDirective,
	"mhu": TokModeDirective, "mhl": TokModeDirective,
	"mdu": TokModeDirective, "mdl": TokModeDirective,
}

// funcNames is the set of recognized format-function identifiers,
// grounded on pyisis/parser.py's strfunc/numfunc dispatch tables and
// spec §4.5's function groups table.
var funcNames = map[string]bool{
	"mid": true, "s": true, "f": true, "left": true, "right": true,
	"replace": true, "datex": true, "cat": true, "type": true,
	"newline": true, "lw": true,
	"val": true, "rsum": true, "rmax": true, "rmin": true, "ravr": true,
	"size": true, "seconds": true, "npost": true, "nocc": true,
	"mstname": true, "mfn": true, "iocc": true, "date": true,
	"p": true, "a": true, "ref": true, "l": true, "proc": true,
}

package lang

import (
	"strconv"
	"strings"

	isisgo "github.com/rsenra/isisgo"
)

// Sequence evaluates a list of nodes in order, concatenating their
// text. Every "then"/"else"/case/repeatable-group body is also a
// Sequence, but only the outermost one (the Sequence Parse returns)
// actually writes to the context's workarea: nested Sequences just
// return their concatenated text for the enclosing construct
// (BranchNode, SelectNode, RepeatableGroupNode, ConditionalLiteralNode,
// ...) to use or discard. Without this distinction a bare field or
// literal inside an if/select/group arm would land in the workarea
// twice: once when the arm's own Sequence evaluates it, and again when
// the Sequence enclosing the if/select/group emits that construct's
// returned text.
//
// Grounded on pyisis/ast.py's Concat node.
type Sequence struct {
	Items []Node
	emit  bool
}

func (s *Sequence) MaxRepeat(rec *isisgo.Record) int {
	max := 1
	for _, it := range s.Items {
		if n := it.MaxRepeat(rec); n > max {
			max = n
		}
	}
	return max
}

func (s *Sequence) Eval(ctx *Context) (Value, Signal, error) {
	var b strings.Builder
	for _, it := range s.Items {
		v, sig, err := it.Eval(ctx)
		if err != nil {
			return Value{}, SigNone, err
		}
		if s.emit {
			ctx.Emit(v.Text())
		}
		b.WriteString(v.Text())
		if sig != SigNone {
			return Str(b.String()), sig, nil
		}
	}
	return Str(b.String()), SigNone, nil
}

// FieldNode resolves a field/variable reference (v/d/n<tag> with
// optional subfield, occurrence, slicer, alignment), per spec §4.5's
// "Field node resolution" contract.
//
// Grounded on pyisis/ast.py's Field class.
type FieldNode struct {
	Tok FieldToken
}

func (f *FieldNode) MaxRepeat(rec *isisgo.Record) int {
	if rec == nil {
		return 1
	}
	if f.Tok.HasOcc {
		return 1
	}
	rep, ok := rec.Repeatable(f.Tok.Tag)
	if !ok || rep.Len() <= 1 {
		return 1
	}
	return rep.Len()
}

func (f *FieldNode) Eval(ctx *Context) (Value, Signal, error) {
	text := f.resolve(ctx)
	return Str(text), SigNone, nil
}

func (f *FieldNode) resolve(ctx *Context) string {
	rec := ctx.Record
	tag := f.Tok.Tag

	if f.Tok.Type == 'n' {
		rep, _ := rec.Repeatable(tag)
		return strconv.Itoa(rep.Len())
	}

	occ := ctx.currentOcc
	if occ == 0 {
		occ = 1
	}
	if f.Tok.HasOcc {
		occ = f.resolveOcc(ctx, f.Tok.OccBegin)
	}

	var data string
	if f.Tok.HasSub {
		rep, ok := rec.Repeatable(tag)
		if !ok {
			return ""
		}
		field := rep.At(occ)
		val, present := field.Subfield(f.Tok.Subfield)
		if !present {
			return ""
		}
		data = val
	} else {
		rep, ok := rec.Repeatable(tag)
		if !ok {
			return ""
		}
		field := rep.At(occ)
		data = joinSubfields(field, ctx.Mode, ctx.Case)
	}

	if f.Tok.HasSlice {
		data = sliceText(data, f.Tok.SliceBegin, f.Tok.SliceEnd)
	}
	if f.Tok.Type == 'd' {
		data = strings.ToUpper(data)
	}
	return data
}

// joinSubfields renders a field's subfields joined per the active mode
// punctuation (spec §4.5 "Mode decoration"): P/D modes join with ", ",
// H mode with "; "; D mode additionally appends "." (unless the text is
// empty or already ends in '.', ',' or ';') followed by two spaces; case
// 'U' uppercases the joined result (the D-mode suffix is appended
// after casing, matching the worked example in spec §8).
func joinSubfields(field isisgo.Field, mode, caseMode byte) string {
	sf := isisgo.ParseSubfields(field.Data, field.Delimiter)
	sep := ", "
	if mode == 'H' {
		sep = "; "
	}
	var chunks []string
	for _, key := range sf.Order {
		chunks = append(chunks, sf.Values[key]...)
	}
	joined := strings.Join(chunks, sep)
	if caseMode == 'U' {
		joined = strings.ToUpper(joined)
	}
	if mode == 'D' {
		if joined != "" && !strings.HasSuffix(joined, ".") && !strings.HasSuffix(joined, ",") && !strings.HasSuffix(joined, ";") {
			joined += "."
		}
		joined += "  "
	}
	return joined
}

func (f *FieldNode) resolveOcc(ctx *Context, spec string) int {
	switch spec {
	case "", "LAST":
		rep, _ := ctx.Record.Repeatable(f.Tok.Tag)
		return rep.Len()
	default:
		if n, err := strconv.Atoi(spec); err == nil {
			return n
		}
		if v, ok := ctx.Variables[spec]; ok {
			n, _ := v.Float()
			return int(n)
		}
		return 1
	}
}

// sliceText applies ISIS's 1-based, inclusive-begin slicer. begin==0
// with end==0 yields the whole string (no slicer was present in
// practice, but callers only invoke this when HasSlice is true).
func sliceText(s string, begin, end int) string {
	if begin <= 0 {
		begin = 1
	}
	if begin > len(s) {
		return ""
	}
	if end <= 0 || end > len(s) {
		end = len(s)
	}
	if end < begin {
		return ""
	}
	return s[begin-1 : end]
}

// ValueNode wraps a constant Value (a parsed number, or a literal
// boolean produced by constant-folding), used as an expression primary.
type ValueNode struct{ V Value }

func (n *ValueNode) MaxRepeat(rec *isisgo.Record) int          { return 1 }
func (n *ValueNode) Eval(ctx *Context) (Value, Signal, error) { return n.V, SigNone, nil }

// LiteralNode emits fixed text unconditionally (an inconditional
// literal, 'text').
type LiteralNode struct {
	Text string
}

func (l *LiteralNode) MaxRepeat(rec *isisgo.Record) int { return 1 }
func (l *LiteralNode) Eval(ctx *Context) (Value, Signal, error) {
	return Str(l.Text), SigNone, nil
}

// ConditionalLiteralNode wraps Inner; it emits Inner's text only if
// Inner's underlying field(s) resolve to non-empty text ("text" form).
// Grounded on pyisis/ast.py's ConditionalLiteral / "Conditional literal
// laws" in spec §8.
type ConditionalLiteralNode struct {
	Inner Node
}

func (c *ConditionalLiteralNode) MaxRepeat(rec *isisgo.Record) int { return c.Inner.MaxRepeat(rec) }

func (c *ConditionalLiteralNode) Eval(ctx *Context) (Value, Signal, error) {
	v, sig, err := c.Inner.Eval(ctx)
	if err != nil {
		return Value{}, SigNone, err
	}
	if strings.TrimSpace(v.Text()) == "" {
		return Str(""), sig, nil
	}
	return v, sig, nil
}

// RepeatableGroupNode evaluates Body once per occurrence of the
// highest-cardinality repeatable field it references (spec §4.5
// "Repeatable group" contract), separated by Sep's evaluation (default
// "").
//
// Grounded on pyisis/ast.py's RepeatableGroup node.
type RepeatableGroupNode struct {
	Body Node
	Sep  Node // may be nil
}

func (g *RepeatableGroupNode) MaxRepeat(rec *isisgo.Record) int { return 1 }

func (g *RepeatableGroupNode) Eval(ctx *Context) (Value, Signal, error) {
	n := g.Body.MaxRepeat(ctx.Record)
	if n < 1 {
		n = 1
	}
	savedOcc := ctx.currentOcc
	defer func() { ctx.currentOcc = savedOcc }()

	var b strings.Builder
	for occ := 1; occ <= n; occ++ {
		ctx.currentOcc = occ
		v, sig, err := g.Body.Eval(ctx)
		if err != nil {
			return Value{}, SigNone, err
		}
		text := v.Text()
		if text == "" {
			continue
		}
		if occ > 1 && g.Sep != nil {
			sv, _, err := g.Sep.Eval(ctx)
			if err != nil {
				return Value{}, SigNone, err
			}
			b.WriteString(sv.Text())
		}
		b.WriteString(text)
		if sig != SigNone {
			return Str(b.String()), sig, nil
		}
	}
	return Str(b.String()), SigNone, nil
}

// ModeNode sets the output-decoration mode (P/H/D x upper/lower) for
// the remainder of the enclosing sequence's evaluation, per spec §4.5
// "Mode decoration".
type ModeNode struct {
	Mode byte // 'P','H','D'
	Case byte // 'U','L'
}

func (m *ModeNode) MaxRepeat(rec *isisgo.Record) int { return 1 }
func (m *ModeNode) Eval(ctx *Context) (Value, Signal, error) {
	ctx.Mode = m.Mode
	ctx.Case = m.Case
	return Str(""), SigNone, nil
}

// SpacerNode emits a fixed run of Count spaces whatever its Kind; it
// does no column tabbing and no line break. The parser builds only the
// '#' kind.
type SpacerNode struct {
	Kind  byte // '#','X','C'
	Count int
}

func (s *SpacerNode) MaxRepeat(rec *isisgo.Record) int { return 1 }
func (s *SpacerNode) Eval(ctx *Context) (Value, Signal, error) {
	return Str(strings.Repeat(" ", s.Count)), SigNone, nil
}

// BinOpNode evaluates a binary arithmetic, comparison, or logical
// operator over Left/Right, coercing operands to numbers for
// arithmetic and to booleans for and/or/xor. Comparisons are numeric
// when either operand is a number and both parse as numbers, and
// compare text otherwise; '+' concatenates two text operands.
type BinOpNode struct {
	Op          TokenKind
	Left, Right Node
}

func (b *BinOpNode) MaxRepeat(rec *isisgo.Record) int {
	l, r := b.Left.MaxRepeat(rec), b.Right.MaxRepeat(rec)
	if l > r {
		return l
	}
	return r
}

func (b *BinOpNode) Eval(ctx *Context) (Value, Signal, error) {
	lv, _, err := b.Left.Eval(ctx)
	if err != nil {
		return Value{}, SigNone, err
	}
	rv, _, err := b.Right.Eval(ctx)
	if err != nil {
		return Value{}, SigNone, err
	}

	switch b.Op {
	case TokAnd:
		return Bool(lv.Truthy() && rv.Truthy()), SigNone, nil
	case TokOr:
		return Bool(lv.Truthy() || rv.Truthy()), SigNone, nil
	case TokXor:
		return Bool(lv.Truthy() != rv.Truthy()), SigNone, nil
	case TokEq:
		return Bool(compareValues(lv, rv) == 0), SigNone, nil
	case TokNE:
		return Bool(compareValues(lv, rv) != 0), SigNone, nil
	case TokLT:
		return Bool(compareValues(lv, rv) < 0), SigNone, nil
	case TokLE:
		return Bool(compareValues(lv, rv) <= 0), SigNone, nil
	case TokGT:
		return Bool(compareValues(lv, rv) > 0), SigNone, nil
	case TokGE:
		return Bool(compareValues(lv, rv) >= 0), SigNone, nil
	}

	ln, err := lv.Float()
	if err != nil {
		return Value{}, SigNone, err
	}
	rn, err := rv.Float()
	if err != nil {
		return Value{}, SigNone, err
	}
	switch b.Op {
	case TokPlus:
		if lv.Kind == VStr && rv.Kind == VStr {
			return Str(lv.Str + rv.Str), SigNone, nil
		}
		return Num(ln + rn), SigNone, nil
	case TokMinus:
		return Num(ln - rn), SigNone, nil
	case TokStar:
		return Num(ln * rn), SigNone, nil
	case TokSlash:
		if rn == 0 {
			return Num(0), SigNone, nil
		}
		return Num(ln / rn), SigNone, nil
	case TokPercent:
		if rn == 0 {
			return Num(0), SigNone, nil
		}
		return Num(float64(int64(ln) % int64(rn))), SigNone, nil
	}
	return Value{}, SigNone, ErrSyntax
}

func compareValues(l, r Value) int {
	if l.Kind == VNum || r.Kind == VNum {
		ln, errl := l.Float()
		rn, errr := r.Float()
		if errl == nil && errr == nil {
			switch {
			case ln < rn:
				return -1
			case ln > rn:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(l.Text(), r.Text())
}

// NotNode negates a boolean operand.
type NotNode struct{ Inner Node }

func (n *NotNode) MaxRepeat(rec *isisgo.Record) int { return n.Inner.MaxRepeat(rec) }
func (n *NotNode) Eval(ctx *Context) (Value, Signal, error) {
	v, _, err := n.Inner.Eval(ctx)
	if err != nil {
		return Value{}, SigNone, err
	}
	return Bool(!v.Truthy()), SigNone, nil
}

// NegNode negates a numeric operand (unary minus).
type NegNode struct{ Inner Node }

func (n *NegNode) MaxRepeat(rec *isisgo.Record) int { return n.Inner.MaxRepeat(rec) }
func (n *NegNode) Eval(ctx *Context) (Value, Signal, error) {
	v, _, err := n.Inner.Eval(ctx)
	if err != nil {
		return Value{}, SigNone, err
	}
	f, err := v.Float()
	if err != nil {
		return Value{}, SigNone, err
	}
	return Num(-f), SigNone, nil
}

// BranchNode implements if/then/else/fi.
type BranchNode struct {
	Cond       Node
	Then, Else Node // Else may be nil
}

func (b *BranchNode) MaxRepeat(rec *isisgo.Record) int {
	n := b.Then.MaxRepeat(rec)
	if b.Else != nil {
		if e := b.Else.MaxRepeat(rec); e > n {
			n = e
		}
	}
	return n
}

func (b *BranchNode) Eval(ctx *Context) (Value, Signal, error) {
	cv, _, err := b.Cond.Eval(ctx)
	if err != nil {
		return Value{}, SigNone, err
	}
	if cv.Truthy() {
		return b.Then.Eval(ctx)
	}
	if b.Else != nil {
		return b.Else.Eval(ctx)
	}
	return Str(""), SigNone, nil
}

// WhileNode implements while(cond) body, honoring break/continue
// signals from Body per spec §9.
type WhileNode struct {
	Cond Node
	Body Node
}

func (w *WhileNode) MaxRepeat(rec *isisgo.Record) int { return 1 }

func (w *WhileNode) Eval(ctx *Context) (Value, Signal, error) {
	var b strings.Builder
	for {
		cv, _, err := w.Cond.Eval(ctx)
		if err != nil {
			return Value{}, SigNone, err
		}
		if !cv.Truthy() {
			break
		}
		v, sig, err := w.Body.Eval(ctx)
		if err != nil {
			return Value{}, SigNone, err
		}
		b.WriteString(v.Text())
		if sig == SigBreak {
			break
		}
		// SigContinue falls through to re-check Cond, matching a
		// standard while-loop continue.
	}
	return Str(b.String()), SigNone, nil
}

// SelectCase is one case/elsecase arm: Cond nil marks the final
// elsecase (unconditional) arm.
type SelectCase struct {
	Cond Node // nil for the trailing elsecase arm
	Body Node
}

// SelectNode implements select/case/elsecase/endsel: the first arm
// whose Cond is truthy runs; absent a match, a Cond==nil arm runs if
// present.
type SelectNode struct {
	Cases []SelectCase
}

func (s *SelectNode) MaxRepeat(rec *isisgo.Record) int {
	max := 1
	for _, c := range s.Cases {
		if n := c.Body.MaxRepeat(rec); n > max {
			max = n
		}
	}
	return max
}

func (s *SelectNode) Eval(ctx *Context) (Value, Signal, error) {
	for _, c := range s.Cases {
		if c.Cond == nil {
			return c.Body.Eval(ctx)
		}
		cv, _, err := c.Cond.Eval(ctx)
		if err != nil {
			return Value{}, SigNone, err
		}
		if cv.Truthy() {
			return c.Body.Eval(ctx)
		}
	}
	return Str(""), SigNone, nil
}

// BreakNode/ContinueNode emit no text; they only surface a Signal.
type BreakNode struct{}

func (BreakNode) MaxRepeat(rec *isisgo.Record) int { return 1 }
func (BreakNode) Eval(ctx *Context) (Value, Signal, error) { return Str(""), SigBreak, nil }

type ContinueNode struct{}

func (ContinueNode) MaxRepeat(rec *isisgo.Record) int          { return 1 }
func (ContinueNode) Eval(ctx *Context) (Value, Signal, error) { return Str(""), SigContinue, nil }

// VarRefNode reads a named S<n>/E<n> variable.
type VarRefNode struct {
	Name string
	Kind ValueKind // VStr or VNum, the declared type
}

func (v *VarRefNode) MaxRepeat(rec *isisgo.Record) int { return 1 }
func (v *VarRefNode) Eval(ctx *Context) (Value, Signal, error) {
	if val, ok := ctx.Variables[v.Name]; ok {
		return val, SigNone, nil
	}
	if v.Kind == VNum {
		return Num(0), SigNone, nil
	}
	return Str(""), SigNone, nil
}

// VarAssignNode implements "name := expr", storing into ctx.Variables.
// Like any statement, it emits no text of its own.
type VarAssignNode struct {
	Name  string
	Value Node
}

func (v *VarAssignNode) MaxRepeat(rec *isisgo.Record) int { return v.Value.MaxRepeat(rec) }
func (v *VarAssignNode) Eval(ctx *Context) (Value, Signal, error) {
	val, _, err := v.Value.Eval(ctx)
	if err != nil {
		return Value{}, SigNone, err
	}
	ctx.Variables[v.Name] = val
	return Str(""), SigNone, nil
}

// MFNNode renders the current record's MFN, zero-padded to Width (5 if
// zero), matching the bare "MFN" keyword form.
type MFNNode struct {
	Width int
}

func (m *MFNNode) MaxRepeat(rec *isisgo.Record) int { return 1 }
func (m *MFNNode) Eval(ctx *Context) (Value, Signal, error) {
	return Str(formatMFN(ctx.Record.MFN, m.Width)), SigNone, nil
}

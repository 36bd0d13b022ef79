package lang

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	isisgo "github.com/rsenra/isisgo"
)

// firstNumberPat matches the first signed integer or decimal substring,
// grounded on pyisis/ast.py's val() regex (a leading-minus-then-digits
// scan, falling back to the first digit run).
var firstNumberPat = regexp.MustCompile(`-?\d+(\.\d+)?`)

// firstNumber extracts the first numeric substring of s, per spec
// §4.5's val()/numeric-coercion rule.
func firstNumber(s string) (float64, bool) {
	m := firstNumberPat.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FuncCallNode evaluates a named function applied to argument nodes.
// Grounded on pyisis/ast.py's per-function eval() methods and spec
// §4.5's function group table.
type FuncCallNode struct {
	Name string
	Args []Node
}

func (f *FuncCallNode) MaxRepeat(rec *isisgo.Record) int {
	max := 1
	for _, a := range f.Args {
		if n := a.MaxRepeat(rec); n > max {
			max = n
		}
	}
	return max
}

// tagArgFuncs names functions whose first argument is a field
// reference used by TAG NUMBER (p, nocc, the rsum/rmax/rmin/ravr
// summaries, cat), not by its resolved text — so a bare v<N> argument must
// be captured as the tag before evaluation, per pyisis/parser.py's
// special-cased "tagfield-as-argument" grammar rule.
var tagArgFuncs = map[string]bool{
	"p": true, "nocc": true, "rsum": true, "rmax": true, "rmin": true,
	"ravr": true, "cat": true,
}

func (f *FuncCallNode) evalArgs(ctx *Context) ([]Value, error) {
	out := make([]Value, len(f.Args))
	for i, a := range f.Args {
		if i == 0 && tagArgFuncs[f.Name] {
			if fn, ok := a.(*FieldNode); ok {
				out[i] = Num(float64(fn.Tok.Tag))
				continue
			}
		}
		v, _, err := a.Eval(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *FuncCallNode) Eval(ctx *Context) (Value, Signal, error) {
	args, err := f.evalArgs(ctx)
	if err != nil {
		return Value{}, SigNone, err
	}
	v, err := callFunction(ctx, f.Name, args)
	return v, SigNone, err
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Value{}
}

func argStr(args []Value, i int) string { return arg(args, i).Text() }

func argNum(args []Value, i int) float64 {
	n, _ := arg(args, i).Float()
	return n
}

func callFunction(ctx *Context, name string, args []Value) (Value, error) {
	switch name {
	// --- substring group ---
	case "mid":
		s := argStr(args, 0)
		start := int(argNum(args, 1))
		length := int(argNum(args, 2))
		return Str(midString(s, start, length)), nil
	case "left":
		s := argStr(args, 0)
		n := int(argNum(args, 1))
		return Str(midString(s, 1, n)), nil
	case "right":
		s := argStr(args, 0)
		n := int(argNum(args, 1))
		if n <= 0 {
			return Str(""), nil
		}
		if n > len(s) {
			n = len(s)
		}
		return Str(s[len(s)-n:]), nil
	case "replace":
		if len(args) < 3 {
			return Value{}, fmt.Errorf("%w: replace needs 3 args", ErrArity)
		}
		return Str(strings.ReplaceAll(argStr(args, 0), argStr(args, 1), argStr(args, 2))), nil
	case "s":
		// s(string,width): pad/truncate to fixed width, right-aligned fill.
		s := argStr(args, 0)
		width := int(argNum(args, 1))
		return Str(padTo(s, width)), nil
	case "f":
		// f(number,width,decimals): fixed-width numeric formatting.
		if len(args) < 1 {
			return Value{}, fmt.Errorf("%w: f needs at least 1 arg", ErrArity)
		}
		n := argNum(args, 0)
		width := 0
		if len(args) > 1 {
			width = int(argNum(args, 1))
		}
		dec := 0
		if len(args) > 2 {
			dec = int(argNum(args, 2))
		}
		text := strconv.FormatFloat(n, 'f', dec, 64)
		return Str(padLeft(text, width)), nil

	// --- size/type group ---
	case "size":
		return Num(float64(len(argStr(args, 0)))), nil
	case "type":
		return Str(classifyType(argStr(args, 0))), nil

	// --- numeric group ---
	case "val":
		n, ok := firstNumber(argStr(args, 0))
		if !ok {
			return Num(0), nil
		}
		return Num(n), nil

	// --- date/time group ---
	case "date":
		variant := ""
		if len(args) > 0 {
			variant = argStr(args, 0)
		}
		return Str(isisDate(variant)), nil
	case "datex":
		secs := int64(argNum(args, 0))
		return Str(isisDatetime(time.Unix(secs, 0))), nil
	case "seconds":
		return Num(float64(parseISISSeconds(argStr(args, 0)))), nil

	// --- output group ---
	case "newline":
		// newline(s): override the line separator for subsequent
		// emissions; emits no text itself.
		ctx.LineSep = argStr(args, 0)
		return Str(""), nil
	case "lw":
		// lw(n): override MAX_LINE_WIDTH for subsequent emissions; the
		// Session wrapper restores the configured width once Format
		// returns (spec §5 "shared resources").
		ctx.LineWidth = int(argNum(args, 0))
		return Str(""), nil

	// --- record meta group ---
	case "mstname":
		if ctx.MST != nil {
			return Str(ctx.MST.Name()), nil
		}
		return Str(""), nil
	case "mfn":
		return Str(formatMFN(ctx.Record.MFN, int(argNum(args, 0)))), nil
	case "nocc":
		tag := int(argNum(args, 0))
		rep, _ := ctx.Record.Repeatable(tag)
		return Num(float64(rep.Len())), nil
	case "iocc":
		// iocc exposes the current repeatable-group iteration index; 0
		// outside a RepeatableGroup evaluation.
		return Num(float64(ctx.currentOcc)), nil

	// --- boolean group ---
	case "p":
		tag := int(argNum(args, 0))
		return Bool(ctx.Record.Has(tag)), nil
	case "a":
		return Bool(arg(args, 0).Truthy()), nil

	// --- repeatable-summary group ---
	case "rsum", "rmax", "rmin", "ravr":
		return repeatSummary(ctx, name, args)

	case "cat":
		tag := int(argNum(args, 0))
		rep, _ := ctx.Record.Repeatable(tag)
		return Str(rep.Data("")), nil

	// --- search/index group (spec §6 external lookup contract) ---
	case "l":
		if ctx.LookupIndex == nil {
			return Num(0), nil
		}
		mfns, err := ctx.LookupIndex(ctx.mstName(), argStr(args, 0))
		if err != nil {
			return Value{}, err
		}
		if len(mfns) == 0 {
			return Num(0), nil
		}
		return Num(float64(mfns[0])), nil
	case "npost":
		if ctx.LookupIndex == nil {
			return Num(0), nil
		}
		mfns, err := ctx.LookupIndex(ctx.mstName(), argStr(args, 0))
		if err != nil {
			return Value{}, err
		}
		return Num(float64(len(mfns))), nil

	// --- cross-database dereference ---
	case "ref":
		return refFunction(ctx, args)

	default:
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
}

const maxRefDepth = 8

// refFunction implements ref(dbname, mfn): fetches a record from
// another database and returns its tag-90 data (a conservative
// dereference — full nested-format evaluation of a second .pft is left
// to the caller via Session, since this package has no file-path
// knowledge of sibling databases). Grounded on pyisis/ast.py's Ref
// node's OtherDBMgr lookup, simplified to a direct record fetch.
func refFunction(ctx *Context, args []Value) (Value, error) {
	if ctx.OpenDatabase == nil {
		return Str(""), nil
	}
	if ctx.RefDepth >= maxRefDepth {
		return Str(""), nil
	}
	dbName := argStr(args, 0)
	mfn := int(argNum(args, 1))
	cacheKey := fmt.Sprintf("%s#%d", dbName, mfn)
	if rec, ok := ctx.RefCache[cacheKey]; ok {
		return Str(recordSummary(rec)), nil
	}

	mst, err := ctx.OpenDatabase(dbName)
	if err != nil {
		return Value{}, err
	}
	ctx.RefDepth++
	rec, err := mst.Read(mfn)
	ctx.RefDepth--
	if err != nil {
		return Str(""), nil
	}
	ctx.RefCache[cacheKey] = rec
	return Str(recordSummary(rec)), nil
}

func recordSummary(rec *isisgo.Record) string {
	f, ok := rec.Field(90)
	if !ok {
		return ""
	}
	return f.Data
}

func midString(s string, start, length int) string {
	if start < 1 {
		start = 1
	}
	if start > len(s) {
		return ""
	}
	end := start - 1 + length
	if end > len(s) {
		end = len(s)
	}
	if length <= 0 {
		end = len(s)
	}
	return s[start-1 : end]
}

func padTo(s string, width int) string {
	if width <= 0 {
		return s
	}
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func padLeft(s string, width int) string {
	if width <= 0 || len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// classifyType implements type()'s N/A/X classification, grounded on
// pyisis/engine.py's Type node: N for an integer-parseable string, A
// when every rune is in isisac_tab, X otherwise.
func classifyType(s string) string {
	if _, err := strconv.Atoi(s); err == nil {
		return "N"
	}
	for _, r := range s {
		if !isISISAlpha(r) {
			return "X"
		}
	}
	return "A"
}

// isISISAlpha reports whether r is one of isisac_tab's code points:
// ASCII letters, space, and the accented Latin-1 range ISIS's CP850
// table maps onto U+0080-U+009A / U+00A0-U+00A5.
func isISISAlpha(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r == ' ':
		return true
	case r >= 0x80 && r <= 0x9A:
		return true
	case r >= 0xA0 && r <= 0xA5:
		return true
	}
	return false
}

func formatMFN(mfn, width int) string {
	text := strconv.Itoa(mfn)
	if width <= 0 {
		width = 5
	}
	if len(text) >= width {
		return text
	}
	return strings.Repeat("0", width-len(text)) + text
}

// isisDate returns the current date/time per spec §4.5's Date/time
// group, grounded on pyisis/ast.py's Date node: DATETIME ->
// "%d/%m/%y %H:%M:%S", DATEONLY -> "%d/%m/%y", default ->
// "%Y%m%d %H%M%S %w %j".
func isisDate(variant string) string {
	now := time.Now()
	switch variant {
	case "DATETIME":
		return now.Format("02/01/06 15:04:05")
	case "DATEONLY":
		return now.Format("02/01/06")
	default:
		return isisDatetime(now)
	}
}

// isisDatetime renders t as "%Y%m%d %H%M%S %w %j" (weekday 0=Sunday,
// zero-padded day-of-year), the format shared by date()'s default form
// and datex(), grounded on pyisis/ast.py's Date/Datex nodes.
func isisDatetime(t time.Time) string {
	return fmt.Sprintf("%s %d %03d", t.Format("20060102 150405"), int(t.Weekday()), t.YearDay())
}

// parseISISSeconds parses a "yyyymmdd hhmmss" string into a Unix
// timestamp, grounded on pyisis/ast.py's Seconds node: the time portion
// (and each of its component slices) is optional and defaults to zero
// when absent or malformed.
func parseISISSeconds(s string) int64 {
	slice := func(a, b int) int {
		if a < 0 || b > len(s) || a >= b {
			return 0
		}
		n, err := strconv.Atoi(s[a:b])
		if err != nil {
			return 0
		}
		return n
	}
	year, month, day := slice(0, 4), slice(4, 6), slice(6, 8)
	if year == 0 {
		return 0
	}
	hour, minute, sec := slice(9, 11), slice(11, 13), slice(13, 15)
	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.Local).Unix()
}

// repeatSummary computes sum/max/min/avg over the numeric values of a
// repeatable field's occurrences, grounded on pyisis/ast.py's
// RSumNode/RMaxNode/RMinNode/RAvrNode.
func repeatSummary(ctx *Context, name string, args []Value) (Value, error) {
	if len(args) == 0 {
		return Num(0), nil
	}
	tag := int(argNum(args, 0))
	rep, _ := ctx.Record.Repeatable(tag)
	if rep.Len() == 0 {
		return Num(0), nil
	}
	var sum, max, min float64
	count := 0
	for _, f := range rep.Elements {
		n, ok := firstNumber(f.Data)
		if !ok {
			continue
		}
		sum += n
		if count == 0 || n > max {
			max = n
		}
		if count == 0 || n < min {
			min = n
		}
		count++
	}
	switch name {
	case "rsum":
		return Num(sum), nil
	case "rmax":
		return Num(max), nil
	case "rmin":
		return Num(min), nil
	case "ravr":
		// Average over the occurrences that actually parsed as numbers
		// (spec §8: "rsum/etc. aggregate all numeric leaves, booleans/
		// spacers skipped"), not every occurrence in the field.
		if count == 0 {
			return Num(0), nil
		}
		return Num(sum / float64(count)), nil
	}
	return Num(0), nil
}

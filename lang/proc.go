package lang

import (
	"regexp"
	"strconv"
	"strings"

	isisgo "github.com/rsenra/isisgo"
)

// ProcNode evaluates a proc() mutation program against the context's
// record, in place, and emits nothing. Grounded on pyisis/ast.py's Proc
// node and spec §4.6's Gizmo/Split/Delete/Add/Heading-pad-add
// sub-language.
//
// Pattern syntax (one command per ';'-separated clause):
//
//	d<tag>          delete tag entirely
//	d<tag>[n]       delete occurrence n of a repeatable tag
//	a<tag>/text/    append an occurrence holding text (field refs not expanded)
//	h<tag>/text/    heading-pad-add: prepend text, right-padded to the
//	                tag's first occurrence's current width
//	g<tag>/pat/rep/ gizmo: regex-substitute pat with rep, first occurrence
//	s<tag>/pat/     split: break tag's first occurrence into a repeatable
//	                container at every match of pat (the match text is
//	                dropped, like strings.Split)
//
// Open question (spec §9, Proc gizmo regex charset): pyisis's pattern
// compiler accepted a restricted character class for filing/removal
// patterns; this implementation accepts the full RE2 syntax Go's
// regexp package supports and rejects anything regexp.Compile rejects,
// rather than replicating the original's narrower charset.
type ProcNode struct {
	Pattern string
}

func (p *ProcNode) MaxRepeat(rec *isisgo.Record) int { return 1 }

func (p *ProcNode) Eval(ctx *Context) (Value, Signal, error) {
	cmds := splitProcClauses(p.Pattern)
	for _, cmd := range cmds {
		if cmd == "" {
			continue
		}
		if err := applyProcCommand(ctx.Record, cmd); err != nil {
			return Value{}, SigNone, err
		}
	}
	return Str(""), SigNone, nil
}

func splitProcClauses(pattern string) []string {
	return strings.Split(pattern, ";")
}

func applyProcCommand(rec *isisgo.Record, cmd string) error {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return nil
	}
	kind := cmd[0]
	rest := cmd[1:]

	switch kind {
	case 'd', 'D':
		return procDelete(rec, rest)
	case 'a', 'A':
		return procAdd(rec, rest)
	case 'h', 'H':
		return procHeadingPadAdd(rec, rest)
	case 'g', 'G':
		return procGizmo(rec, rest)
	case 's', 'S':
		return procSplit(rec, rest)
	default:
		return nil
	}
}

var procTagOccPat = regexp.MustCompile(`^(\d+)(?:\[(\d+)\])?$`)

func procDelete(rec *isisgo.Record, rest string) error {
	m := procTagOccPat.FindStringSubmatch(rest)
	if m == nil {
		return nil
	}
	tag, _ := strconv.Atoi(m[1])
	if m[2] == "" {
		rec.Delete(tag)
		return nil
	}
	occ, _ := strconv.Atoi(m[2])
	rec.DeleteOccurrence(tag, occ)
	return nil
}

// parseTagAndSlashArgs splits "<tag>/arg1/arg2/.../argN" into the tag
// and the slash-delimited arguments.
func parseTagAndSlashArgs(rest string) (tag int, args []string, ok bool) {
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return 0, nil, false
	}
	tagStr := rest[:idx]
	n, err := strconv.Atoi(tagStr)
	if err != nil {
		return 0, nil, false
	}
	body := rest[idx:]
	parts := strings.Split(body, "/")
	// parts[0] is "" (leading slash); drop it and any trailing "" from
	// the closing slash.
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return n, parts, true
}

func procAdd(rec *isisgo.Record, rest string) error {
	tag, args, ok := parseTagAndSlashArgs(rest)
	if !ok || len(args) == 0 {
		return nil
	}
	rec.Append(tag, args[0])
	return nil
}

func procHeadingPadAdd(rec *isisgo.Record, rest string) error {
	tag, args, ok := parseTagAndSlashArgs(rest)
	if !ok || len(args) == 0 {
		return nil
	}
	f, present := rec.Field(tag)
	width := 0
	if present {
		width = len(f.Data)
	}
	heading := args[0]
	padded := heading
	if len(padded) < width {
		padded += strings.Repeat(" ", width-len(padded))
	}
	if present {
		_ = rec.Set(tag, padded+f.Data)
	} else {
		_ = rec.Set(tag, padded)
	}
	return nil
}

func procGizmo(rec *isisgo.Record, rest string) error {
	tag, args, ok := parseTagAndSlashArgs(rest)
	if !ok || len(args) < 2 {
		return nil
	}
	re, err := regexp.Compile(args[0])
	if err != nil {
		return err
	}
	f, present := rec.Field(tag)
	if !present {
		return nil
	}
	newData := re.ReplaceAllString(f.Data, args[1])
	return rec.Set(tag, newData)
}

func procSplit(rec *isisgo.Record, rest string) error {
	tag, args, ok := parseTagAndSlashArgs(rest)
	if !ok || len(args) == 0 {
		return nil
	}
	re, err := regexp.Compile(args[0])
	if err != nil {
		return err
	}
	f, present := rec.Field(tag)
	if !present {
		return nil
	}
	parts := re.Split(f.Data, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return rec.Set(tag, out)
}

package lang

import (
	"strings"

	isisgo "github.com/rsenra/isisgo"
)

// Signal is an explicit break/continue control-flow result, per spec §9
// ("model break/continue as explicit signals, not errors").
type Signal int

const (
	SigNone Signal = iota
	SigBreak
	SigContinue
)

// Node is the single evaluable AST operation, per spec §9's "tagged
// variant with a single eval(ctx) -> text-or-error operation".
type Node interface {
	Eval(ctx *Context) (Value, Signal, error)
	// MaxRepeat reports the occurrence count this node contributes to
	// an enclosing RepeatableGroup: the container length for a
	// repeatable field tag, 1 otherwise.
	MaxRepeat(rec *isisgo.Record) int
}

// Context threads every piece of evaluator-wide mutable state through
// recursive Eval calls, replacing the original implementation's
// class-level globals (spec §9 "Global mutable state").
type Context struct {
	Record *isisgo.Record
	MST    *isisgo.MasterFile
	Cfg    isisgo.Config

	workarea strings.Builder

	Mode byte // 'P' (plain), 'H' (header), 'D' (descriptor)
	Case byte // 'L' or 'U'

	LineWidth int
	LineSep   string

	Variables map[string]Value

	// ProcChain, when true, makes Emit append text without line
	// breaking (pyisis's LeafNode.proc_chain). No node in this package
	// sets it; ProcNode emits nothing.
	ProcChain bool

	// RefDepth guards against unbounded cross-database recursion in
	// REF; RefCache memoizes fetched records per (db, mfn).
	RefDepth int
	RefCache map[string]*isisgo.Record

	// currentOcc is the 1-based occurrence index of the repeatable group
	// currently being evaluated, exposed to iocc().
	currentOcc int

	// OpenDatabase resolves a cross-database name to a MasterFile,
	// supplied by the caller (Session) since database discovery/config
	// loading is outside this package's concern.
	OpenDatabase func(name string) (*isisgo.MasterFile, error)

	// LookupIndex resolves a search key against the external inverted
	// file (spec §6 contract: lookup/length/first(key).mfn). Supplied
	// by the caller; nil means L()/NPOST() always return 0/empty.
	LookupIndex func(db, key string) (mfns []int, err error)
}

// NewContext builds a fresh evaluator context for one Format() call.
func NewContext(rec *isisgo.Record, mst *isisgo.MasterFile, cfg isisgo.Config) *Context {
	width := cfg.MaxLineWidth
	if width == 0 {
		width = isisgo.DefaultMaxLineWidth
	}
	return &Context{
		Record:    rec,
		MST:       mst,
		Cfg:       cfg,
		Mode:      'P',
		Case:      'L',
		LineWidth: width,
		LineSep:   "\n",
		Variables: map[string]Value{},
		RefCache:  map[string]*isisgo.Record{},
	}
}

// lastLine returns the text since the last LineSep, for line-break
// width accounting.
func (c *Context) lastLine() string {
	s := c.workarea.String()
	if idx := strings.LastIndex(s, c.LineSep); idx >= 0 {
		return s[idx+len(c.LineSep):]
	}
	return s
}

// Emit appends text to the workarea, applying the line-break discipline
// of spec §4.5: when the current line would exceed LineWidth, break at
// the last space in the overflowing window, or hard-cut if no space
// exists. Grounded on pyisis/ast.py's break_line()/LeafNode.format(),
// simplified to a single word-wrap pass driven by an explicit context
// instead of mutable class state.
func (c *Context) Emit(text string) {
	if text == "" {
		return
	}
	if c.ProcChain {
		c.workarea.WriteString(text)
		return
	}
	maxWidth := c.LineWidth - 1
	if maxWidth <= 0 {
		c.workarea.WriteString(text)
		return
	}

	// Text may itself contain embedded line separators (from literals
	// or nested formatting); wrap each piece independently.
	pieces := strings.Split(text, c.LineSep)
	for i, piece := range pieces {
		if i > 0 {
			c.workarea.WriteString(c.LineSep)
		}
		c.emitPiece(piece, maxWidth)
	}
}

func (c *Context) emitPiece(piece string, maxWidth int) {
	for {
		last := c.lastLine()
		if len(last)+len(piece) <= maxWidth {
			c.workarea.WriteString(piece)
			return
		}
		avail := maxWidth - len(last)
		if avail <= 0 {
			c.workarea.WriteString(c.LineSep)
			continue
		}
		window := piece
		if len(window) > avail {
			window = window[:avail]
		}
		breakAt := strings.LastIndex(window, " ")
		if breakAt <= 0 {
			// No space in the window: hard cut at the window edge.
			c.workarea.WriteString(piece[:avail])
			piece = piece[avail:]
		} else {
			c.workarea.WriteString(piece[:breakAt])
			piece = strings.TrimLeft(piece[breakAt:], " ")
		}
		c.workarea.WriteString(c.LineSep)
		if piece == "" {
			return
		}
	}
}

// Result returns the accumulated workarea text.
func (c *Context) Result() string { return c.workarea.String() }

func (c *Context) mstName() string {
	if c.MST == nil {
		return ""
	}
	return c.MST.Name()
}

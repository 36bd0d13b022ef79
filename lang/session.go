package lang

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"

	isisgo "github.com/rsenra/isisgo"
)

// Session caches compiled formatters keyed by a hash of their source
// text as given (no include expansion is done), avoiding a re-parse on every Format() call against the
// same .pft source — the formatting-language analogue of the teacher's
// compiled-query cache. The hash algorithm is selected by
// Config.CacheHashAlgorithm, grounded on the teacher's dual-hash
// config knob.
type Session struct {
	cfg isisgo.Config

	mu    sync.RWMutex
	cache map[string]Node

	// OpenDatabase/LookupIndex are forwarded onto every Context built
	// by Format, letting callers wire cross-database REF and inverted
	// file lookups without this package depending on their concrete
	// implementations.
	OpenDatabase func(name string) (*isisgo.MasterFile, error)
	LookupIndex  func(db, key string) (mfns []int, err error)
}

// NewSession returns a Session bound to cfg.
func NewSession(cfg isisgo.Config) *Session {
	return &Session{cfg: cfg, cache: map[string]Node{}}
}

func (s *Session) hashKey(src string) string {
	switch s.cfg.CacheHashAlgorithm {
	case isisgo.AlgBlake2b:
		sum := blake2b.Sum256([]byte(src))
		return hex.EncodeToString(sum[:])
	default:
		sum := xxh3.Hash([]byte(src))
		return fmt.Sprintf("%016x", sum)
	}
}

// Compile parses src once and caches the resulting AST for subsequent
// calls with identical source text.
func (s *Session) Compile(src string) (Node, error) {
	key := s.hashKey(src)

	s.mu.RLock()
	if n, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return n, nil
	}
	s.mu.RUnlock()

	node, err := Parse(src)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = node
	s.mu.Unlock()
	return node, nil
}

// Format compiles (or reuses a cached compilation of) src and evaluates
// it against rec, returning the formatted text. Each call builds its
// Context from a copy of s.cfg, so a mid-evaluation lw()/newline() call
// (which mutates the Context's LineWidth/LineSep, not s.cfg itself)
// never survives past this call — satisfying spec §5's "MAX_LINE_WIDTH
// is restored to its pre-call value" contract without extra bookkeeping.
func (s *Session) Format(src string, rec *isisgo.Record, mst *isisgo.MasterFile) (string, error) {
	node, err := s.Compile(src)
	if err != nil {
		return "", err
	}
	ctx := NewContext(rec, mst, s.cfg)
	ctx.OpenDatabase = s.OpenDatabase
	ctx.LookupIndex = s.LookupIndex
	v, _, err := node.Eval(ctx)
	if err != nil {
		return "", err
	}
	_ = v
	return ctx.Result(), nil
}

// Reset drops every cached compilation, e.g. after editing a .pft file
// on disk.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = map[string]Node{}
}

// Package handle maps opaque host tokens to engine contexts.
//
// Each token denotes exactly one context. Release is total: it frees a live
// context exactly once and is a no-op for every other token. Tokens from
// released slots never resolve again, because the slot generation advances
// on release.
//
// Operations on the same handle are serialized by a per-handle mutex, so a
// release waits for an in-flight generation on that handle to finish.
// Distinct handles never contend.
package handle

import (
	"sync"

	"go.uber.org/zap"

	"sdloader/sdruntime"
)

// Destroyer frees engine contexts. *sdruntime.Binding satisfies it.
type Destroyer interface {
	Destroy(ctx sdruntime.Context)
}

// Record is the per-handle state visible to Do callbacks.
type Record struct {
	mu         sync.Mutex
	state      State
	ctx        sdruntime.Context
	lastWidth  int
	lastHeight int
}

// Context returns the engine context. It is non-nil while the record is
// Live.
func (r *Record) Context() sdruntime.Context { return r.ctx }

// State returns the lifecycle state.
func (r *Record) State() State { return r.state }

// SetLastSize records the dimensions of the last successful generation.
func (r *Record) SetLastSize(width, height int) {
	r.lastWidth, r.lastHeight = width, height
}

// LastSize returns the dimensions recorded by SetLastSize.
func (r *Record) LastSize() (width, height int) {
	return r.lastWidth, r.lastHeight
}

type slot struct {
	gen    uint32
	record *Record
}

// Stats is a point-in-time view of registry activity.
type Stats struct {
	Live     int
	Acquired uint64
	Released uint64
}

// Registry is the token table. The zero value is not usable; use
// NewRegistry.
type Registry struct {
	destroyer Destroyer
	logger    *zap.Logger

	mu       sync.Mutex
	slots    []slot
	free     []int
	live     int
	acquired uint64
	released uint64
}

// NewRegistry creates an empty registry that frees contexts through d.
func NewRegistry(d Destroyer, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		destroyer: d,
		logger:    logger.Named("handle"),
	}
}

// Acquire registers a newly created context and returns its token. The
// registry takes ownership of ctx.
func (r *Registry) Acquire(ctx sdruntime.Context) (Token, error) {
	if ctx == nil {
		return Invalid, ErrNilContext
	}

	rec := &Record{state: Live, ctx: ctx}

	r.mu.Lock()
	var idx int
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = len(r.slots)
		r.slots = append(r.slots, slot{gen: 1})
	}
	r.slots[idx].record = rec
	tok := makeToken(idx, r.slots[idx].gen)
	r.live++
	r.acquired++
	r.mu.Unlock()

	r.logger.Debug("handle acquired", zap.Stringer("token", tok))
	return tok, nil
}

// lookup resolves tok to its record without locking the record.
func (r *Registry) lookup(tok Token) (*Record, error) {
	idx, ok := tok.index()
	if !ok {
		return nil, ErrInvalidToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx >= len(r.slots) {
		return nil, ErrInvalidToken
	}
	s := r.slots[idx]
	if s.gen != tok.generation() {
		// The slot has moved on: this token was released earlier.
		if tok.generation() != 0 && tok.generation() < s.gen {
			return nil, ErrReleased
		}
		return nil, ErrInvalidToken
	}
	if s.record == nil {
		return nil, ErrReleased
	}
	return s.record, nil
}

// Do runs fn with the handle's record locked. fn is not called unless the
// handle is Live; in that case Do returns ErrInvalidToken or ErrReleased.
// fn must not retain the record or its context past return.
func (r *Registry) Do(tok Token, fn func(rec *Record) error) error {
	rec, err := r.lookup(tok)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state != Live {
		return ErrReleased
	}
	return fn(rec)
}

// Release frees the context behind tok and reports whether it did so. It is
// safe to call with Invalid, unknown, stale and already-released tokens,
// all of which are no-ops. It blocks until any Do on the same handle
// returns.
func (r *Registry) Release(tok Token) bool {
	idx, ok := tok.index()
	if !ok {
		return false
	}

	r.mu.Lock()
	if idx >= len(r.slots) || r.slots[idx].gen != tok.generation() || r.slots[idx].record == nil {
		r.mu.Unlock()
		return false
	}
	rec := r.slots[idx].record
	r.slots[idx].record = nil
	r.slots[idx].gen++
	if r.slots[idx].gen == 0 {
		r.slots[idx].gen = 1
	}
	r.free = append(r.free, idx)
	r.live--
	r.released++
	r.mu.Unlock()

	r.finalize(rec)
	r.logger.Debug("handle released", zap.Stringer("token", tok))
	return true
}

// finalize moves rec to Released and destroys its context once the record
// lock is free.
func (r *Registry) finalize(rec *Record) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state != Live {
		return
	}
	ctx := rec.ctx
	rec.ctx = nil
	rec.state = Released
	r.destroyer.Destroy(ctx)
}

// Tokens returns the tokens of all live handles in slot order.
func (r *Registry) Tokens() []Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	var toks []Token
	for i, s := range r.slots {
		if s.record != nil {
			toks = append(toks, makeToken(i, s.gen))
		}
	}
	return toks
}

// ReleaseAll releases every live handle and returns how many were freed.
func (r *Registry) ReleaseAll() int {
	n := 0
	for _, tok := range r.Tokens() {
		if r.Release(tok) {
			n++
		}
	}
	if n > 0 {
		r.logger.Info("Released remaining handles", zap.Int("count", n))
	}
	return n
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Stats returns registry counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Live:     r.live,
		Acquired: r.acquired,
		Released: r.released,
	}
}

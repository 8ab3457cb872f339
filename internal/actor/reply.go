package actor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrReplyPortClosed describes a port abandoned without a result. Nothing in
// this package returns it: Wait reports only what Resolve or Fail delivered,
// or ctx.Err(), so a port that is never resolved or failed keeps Wait
// blocked until ctx is done.
var ErrReplyPortClosed = errors.New("actor: reply port closed without a result")

// ReplyPort is a single-shot result channel, the Go shape of the "reply
// port" tunneled inside ask-style messages (spec §3, §4.3). It resolves
// exactly once: the first of Resolve/Fail wins, later calls are no-ops.
type ReplyPort[R any] struct {
	ch       chan replyResult[R]
	done     chan struct{}
	once     sync.Once
	deadline time.Time
	hasDl    bool
}

type replyResult[R any] struct {
	val R
	err error
}

// NewReplyPort creates an unresolved reply port.
func NewReplyPort[R any]() *ReplyPort[R] {
	return &ReplyPort[R]{
		ch:   make(chan replyResult[R], 1),
		done: make(chan struct{}),
	}
}

// Resolve delivers a successful result. Safe to call from any goroutine;
// only the first call (Resolve or Fail) has effect.
func (p *ReplyPort[R]) Resolve(v R) {
	p.deliver(replyResult[R]{val: v})
}

// Fail delivers a failure result (Timeout, PeerClosed, UnknownTarget, …).
func (p *ReplyPort[R]) Fail(err error) {
	p.deliver(replyResult[R]{err: err})
}

func (p *ReplyPort[R]) deliver(r replyResult[R]) {
	// Only the first call has effect; later ones are dropped, per spec §8
	// "reply uniqueness": never more.
	p.once.Do(func() {
		p.ch <- r
		close(p.done)
	})
}

// Wait blocks until the port resolves or ctx is cancelled.
func (p *ReplyPort[R]) Wait(ctx context.Context) (R, error) {
	select {
	case r := <-p.ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// SetDeadline attaches an optional deadline (spec §3: "reply port … deadline:
// optional instant") that the owning portal may use to fail the port with a
// Timeout once it passes. Purely informational to ReplyPort itself.
func (p *ReplyPort[R]) SetDeadline(t time.Time) {
	p.deadline = t
	p.hasDl = true
}

// Deadline returns the deadline set via SetDeadline, if any.
func (p *ReplyPort[R]) Deadline() (time.Time, bool) {
	return p.deadline, p.hasDl
}

// Resolved reports whether Resolve or Fail has already been called.
func (p *ReplyPort[R]) Resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

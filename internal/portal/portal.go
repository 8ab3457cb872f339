// Package portal implements the per-connection Nexus↔peer state machine of
// spec §3–§5: the Opening→Running→Draining→Closed lifecycle, the export /
// reply tables, and the dispatch of inbound wire frames onto local actors.
// It is the direct generalization of the teacher's internal/transport and
// internal/adapter packages from "multiplex raw byte sockets over one
// connection" to "multiplex typed actor messages over one conduit".
package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/1ureka/wormhole/internal/actor"
	"github.com/1ureka/wormhole/internal/protocol"
	"github.com/1ureka/wormhole/internal/wherr"
	"github.com/1ureka/wormhole/internal/wsconduit"
)

// op is one unit of work run on the portal's own goroutine — every table
// mutation, inbound or outbound, is one of these.
type op func(s *state)

// Portal is one peer connection: a single conduit plus everything spec §3
// calls "local state belonging to the pairing".
type Portal struct {
	ID string

	ctx    context.Context
	cancel context.CancelFunc

	cell   *actor.Cell[op]
	st     *state
	sink   wsconduit.Sink
	logger zerolog.Logger

	phase atomic.Int32

	framesSent atomic.Int64
	framesRecv atomic.Int64

	closeOnce sync.Once
	doneCh    chan struct{}
	onClosed  func(id string)
}

// New creates a Portal bound to sink and starts its inbox loop. Callers must
// also run wsconduit.ReceiveLoop(ctx, source, portal) to feed it inbound
// frames — New does not start that loop itself, keeping with spec §9's "one
// receive loop, one call site" fix.
func New(parent context.Context, id string, snk wsconduit.Sink, logger zerolog.Logger, onClosed func(id string)) *Portal {
	ctx, cancel := context.WithCancel(parent)
	st := newState()

	p := &Portal{
		ID:       id,
		ctx:      ctx,
		cancel:   cancel,
		st:       st,
		sink:     snk,
		logger:   logger.With().Str("portal", id).Logger(),
		doneCh:   make(chan struct{}),
		onClosed: onClosed,
	}
	p.phase.Store(int32(PhaseOpening))

	p.cell = actor.Spawn(ctx, 256, func(ctx context.Context, inbox <-chan op) {
		for {
			select {
			case o := <-inbox:
				o(st)
			case <-ctx.Done():
				return
			}
		}
	})

	return p
}

// State returns the portal's current lifecycle phase.
func (p *Portal) State() Phase { return Phase(p.phase.Load()) }

// Stats is a point-in-time snapshot of a portal's frame counters, used by
// internal/util's periodic reporter.
type Stats struct {
	FramesSent int64
	FramesRecv int64
}

// Stats returns the portal's current frame counters.
func (p *Portal) Stats() Stats {
	return Stats{FramesSent: p.framesSent.Load(), FramesRecv: p.framesRecv.Load()}
}

// Done is closed once the portal has fully torn down.
func (p *Portal) Done() <-chan struct{} { return p.doneCh }

// Context returns the portal's own lifetime context — cancelled when the
// portal starts draining. Callers spawn actors meant to live no longer than
// the portal (proxies, exported display callbacks) as children of it.
func (p *Portal) Context() context.Context { return p.ctx }

func (p *Portal) markRunning() {
	p.phase.CompareAndSwap(int32(PhaseOpening), int32(PhaseRunning))
}

// ---------------------------------------------------------------------------
// wsconduit.PortalInbound
// ---------------------------------------------------------------------------

func (p *Portal) InboundText(text string) {
	p.InboundBinary([]byte(text))
}

func (p *Portal) InboundBinary(data []byte) {
	p.markRunning()
	p.framesRecv.Add(1)

	f, err := protocol.Decode(data)
	if err != nil {
		p.logger.Error().Err(err).Msg("frame decode failure, draining portal")
		p.initiateDrain("decode_failure")
		return
	}
	p.dispatch(f)
}

func (p *Portal) InboundClose(reason string) {
	p.logger.Info().Str("reason", reason).Msg("peer closed conduit")
	p.initiateDrain(reason)
}

// ---------------------------------------------------------------------------
// Inbound frame dispatch — runs on the portal goroutine via op().
// ---------------------------------------------------------------------------

func (p *Portal) dispatch(f *protocol.Frame) {
	switch f.Tag {
	case protocol.TagAdvertise:
		p.logger.Debug().Str("name", f.Name).Uint64("remote_id", f.LocalID).
			Str("type_tag", f.TypeTag).Msg("peer advertised actor")

	case protocol.TagQuery:
		p.handleQuery(f)

	case protocol.TagQueryReply:
		p.cell.Cast(func(s *state) {
			q, ok := s.queryReplies[f.ReplyID]
			if !ok {
				return
			}
			delete(s.queryReplies, f.ReplyID)
			q.resolve(f.Found, f.RemoteID, f.TypeTag)
		})

	case protocol.TagSend:
		p.handleSend(f)

	case protocol.TagAsk:
		p.handleAsk(f)

	case protocol.TagReply:
		p.cell.Cast(func(s *state) {
			e, ok := s.askReplies[f.ReplyID]
			if !ok {
				return
			}
			delete(s.askReplies, f.ReplyID)
			e.resolve(f.Payload)
		})

	case protocol.TagError:
		p.cell.Cast(func(s *state) {
			e, ok := s.askReplies[f.ReplyID]
			if !ok {
				return
			}
			delete(s.askReplies, f.ReplyID)
			e.fail(wherr.New(mapErrorKind(f.ErrKind), "portal.ask", errors.New(f.ErrMsg)))
		})

	case protocol.TagRelease:
		p.cell.Cast(func(s *state) {
			if f.ReleaseKind == protocol.ReleaseReplyPort {
				delete(s.askReplies, f.ReplyID)
				delete(s.queryReplies, f.ReplyID)
			}
		})

	default:
		p.logger.Warn().Str("tag", f.Tag.String()).Msg("unrecognized frame tag, ignoring")
	}
}

func (p *Portal) handleQuery(f *protocol.Frame) {
	p.cell.Cast(func(s *state) {
		id, ok := s.localNames[f.Name]
		var typeTag string
		if ok {
			if e, ok2 := s.exports[id]; ok2 {
				typeTag = e.typeTag
			} else {
				ok = false
			}
		}
		p.logger.Debug().Str("name", f.Name).Bool("hit", ok).Msg("query")
		reply := &protocol.Frame{
			Tag:      protocol.TagQueryReply,
			ReplyID:  f.ReplyID,
			Found:    ok,
			RemoteID: id,
			TypeTag:  typeTag,
		}
		p.sendAsync(reply)
	})
}

func (p *Portal) handleSend(f *protocol.Frame) {
	p.cell.Cast(func(s *state) {
		e, ok := s.exports[f.TargetID]
		if !ok || !e.alive() {
			p.logger.Warn().Uint64("local_id", f.TargetID).Str("op", "send").Msg("unknown target")
			return
		}
		if err := e.deliverSend(f.Payload); err != nil {
			p.logger.Error().Err(err).Str("frame_tag", f.Tag.String()).
				Msg("decode failure")
			go p.initiateDrain("decode_failure")
		}
	})
}

func (p *Portal) handleAsk(f *protocol.Frame) {
	p.cell.Cast(func(s *state) {
		e, ok := s.exports[f.TargetID]
		if !ok || !e.alive() {
			p.logger.Warn().Uint64("local_id", f.TargetID).Str("op", "ask").Msg("unknown target")
			p.sendAsync(&protocol.Frame{
				Tag: protocol.TagError, ReplyID: f.ReplyID,
				ErrKind: protocol.ErrorUnknownTarget, ErrMsg: "unknown target",
			})
			return
		}
		if err := e.deliverAsk(f.Payload, f.ReplyID); err != nil {
			p.logger.Error().Err(err).Str("frame_tag", f.Tag.String()).
				Msg("decode failure")
			go p.initiateDrain("decode_failure")
		}
	})
}

func mapErrorKind(k protocol.ErrorKind) wherr.Kind {
	switch k {
	case protocol.ErrorUnknownTarget:
		return wherr.KindUnknownTarget
	case protocol.ErrorUnknownName:
		return wherr.KindUnknownName
	case protocol.ErrorTimeout:
		return wherr.KindTimeout
	default:
		return wherr.KindUnknown
	}
}

// ---------------------------------------------------------------------------
// Outbound helpers
// ---------------------------------------------------------------------------

// sendAsync fires f at the sink without blocking the caller on backpressure;
// the sink's own ActorSink serializes concurrent senders.
func (p *Portal) sendAsync(f *protocol.Frame) {
	p.markRunning()
	p.framesSent.Add(1)
	go func() {
		_ = p.sink.Send(p.ctx, wsconduit.BinaryMessage(protocol.Encode(f)))
	}()
}

// ImportHandle implements HandleContext: mints a RemoteRef for a handle
// token decoded from an inbound payload. Trivial today (no per-import
// bookkeeping, matching spec §3 "imports need no table, only import at use
// time") but kept as a portal method since spec §9 frames this as routing
// through the owning portal.
func (p *Portal) ImportHandle(remoteID uint64, typeTag string) RemoteRef {
	return RemoteRef{RemoteID: remoteID, TypeTag: typeTag}
}

// Advertise exports id under name, (re-)binding the name if it was already
// taken — spec §8 "duplicate Advertise replaces the prior binding" — and
// announces it to the peer.
func (p *Portal) Advertise(name string, id uint64, typeTag string) {
	p.cell.Cast(func(s *state) {
		s.localNames[name] = id
	})
	p.sendAsync(&protocol.Frame{Tag: protocol.TagAdvertise, Name: name, LocalID: id, TypeTag: typeTag})
}

// Query asks the peer whether it has a named actor published, blocking for
// a reply, peer close, or ctx cancellation — spec §4.3 operation "query
// (name) -> remote_ref".
func (p *Portal) Query(ctx context.Context, name string) (RemoteRef, error) {
	resultCh := make(chan queryResult, 1)
	if !p.cell.CastBlocking(ctx, func(s *state) {
		id := s.allocReplyID()
		s.queryReplies[id] = &pendingQuery{
			resolve: func(found bool, remoteID uint64, typeTag string) {
				resultCh <- queryResult{found: found, remoteID: remoteID, typeTag: typeTag}
			},
			fail: func(err error) {
				resultCh <- queryResult{err: err}
			},
		}
		p.sendAsync(&protocol.Frame{Tag: protocol.TagQuery, Name: name, ReplyID: id})
	}) {
		return RemoteRef{}, wherr.New(wherr.KindPeerClosed, "portal.query", nil)
	}

	select {
	case r := <-resultCh:
		if r.err != nil {
			return RemoteRef{}, r.err
		}
		if !r.found {
			return RemoteRef{}, wherr.New(wherr.KindUnknownName, "portal.query", fmt.Errorf("no such actor: %q", name))
		}
		return RemoteRef{RemoteID: r.remoteID, TypeTag: r.typeTag}, nil
	case <-ctx.Done():
		return RemoteRef{}, ctx.Err()
	case <-p.Done():
		return RemoteRef{}, wherr.New(wherr.KindPeerClosed, "portal.query", nil)
	}
}

type queryResult struct {
	found    bool
	remoteID uint64
	typeTag  string
	err      error
}

// Close begins an orderly drain: the sink is closed, all proxies spawned
// from this portal stop, and every pending ask/query fails with PeerClosed.
// Safe to call more than once and from InboundClose concurrently.
func (p *Portal) Close() {
	p.initiateDrain("closed_locally")
}

func (p *Portal) initiateDrain(reason string) {
	p.closeOnce.Do(func() {
		p.phase.Store(int32(PhaseDraining))
		p.logger.Info().Str("reason", reason).Msg("portal draining")

		_ = p.sink.Close()
		p.cancel()
		<-p.cell.Done()

		p.sweep()
		p.phase.Store(int32(PhaseClosed))
		close(p.doneCh)

		if p.onClosed != nil {
			p.onClosed(p.ID)
		}
		p.logger.Info().Msg("portal closed")
	})
}

// sweep runs once the actor goroutine has fully exited, so it is the sole
// remaining accessor of st — no further synchronization is needed.
func (p *Portal) sweep() {
	for id, e := range p.st.askReplies {
		e.fail(wherr.New(wherr.KindPeerClosed, "portal.close", nil))
		delete(p.st.askReplies, id)
	}
	for id, q := range p.st.queryReplies {
		q.fail(wherr.New(wherr.KindPeerClosed, "portal.close", nil))
		delete(p.st.queryReplies, id)
	}
	p.st.exports = nil
	p.st.localNames = nil
}

// waitDeadline watches a reply's deadline (if any) and fails its pending ask
// entry with Timeout once it passes, unless already resolved.
func (p *Portal) waitDeadline(replyID uint64, deadline time.Time) {
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		p.cell.Cast(func(s *state) {
			e, ok := s.askReplies[replyID]
			if !ok {
				return
			}
			delete(s.askReplies, replyID)
			p.logger.Warn().Uint64("reply_id", replyID).Msg("reply timeout")
			e.fail(wherr.New(wherr.KindTimeout, "portal.ask", nil))
		})
	case <-p.ctx.Done():
	}
}

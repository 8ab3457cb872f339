// Package nexus implements the process-wide portal registry of spec §2: the
// single entry point an application uses to turn a newly accepted or dialed
// conduit into a portal, and to look portals back up by identifier. Directly
// generalizes the teacher's internal/tunnel.Dispatcher from a socketID→chan
// route table to an identifier→*portal.Portal registry, same mutex-guarded
// map discipline.
package nexus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/1ureka/wormhole/internal/portal"
	"github.com/1ureka/wormhole/internal/wsconduit"
)

// Nexus owns every portal this process currently has open.
type Nexus struct {
	ctx    context.Context
	logger zerolog.Logger

	mu      sync.Mutex
	portals map[string]*portal.Portal
}

// New creates an empty Nexus bound to parent — every portal it connects is a
// child of parent's lifetime.
func New(parent context.Context, logger zerolog.Logger) *Nexus {
	return &Nexus{
		ctx:     parent,
		logger:  logger,
		portals: make(map[string]*portal.Portal),
	}
}

// Connected registers a newly established conduit's sink as a portal under
// id and returns the portal. If id is already in use, the prior portal is
// closed first — spec §2's "connecting under an in-use identifier replaces
// the previous pairing". Connected does not receive the conduit's source:
// spec §4.2 assigns driving the receive loop to the caller, not the nexus
// (grounded on sample_app/src/client/connection.rs, where the nexus
// registration and the source-driving task are two separate steps) — the
// caller spawns wsconduit.ReceiveLoop(ctx, source, p) itself once Connected
// returns p.
func (n *Nexus) Connected(id string, snk wsconduit.Sink) *portal.Portal {
	n.mu.Lock()
	if prev, ok := n.portals[id]; ok {
		n.mu.Unlock()
		prev.Close()
		<-prev.Done()
		n.mu.Lock()
	}

	p := portal.New(n.ctx, id, snk, n.logger, n.remove)
	n.portals[id] = p
	n.mu.Unlock()

	n.logger.Info().Str("portal", id).Msg("nexus: portal connected")
	return p
}

// Find returns the portal registered under id, if any.
func (n *Nexus) Find(id string) (*portal.Portal, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.portals[id]
	return p, ok
}

// Stats aggregates frame counters across every currently registered portal.
type Stats struct {
	OpenPortals int
	FramesSent  int64
	FramesRecv  int64
}

// Stats returns a point-in-time snapshot across every registered portal, for
// internal/util's periodic reporter.
func (n *Nexus) Stats() Stats {
	n.mu.Lock()
	portals := make([]*portal.Portal, 0, len(n.portals))
	for _, p := range n.portals {
		portals = append(portals, p)
	}
	n.mu.Unlock()

	s := Stats{OpenPortals: len(portals)}
	for _, p := range portals {
		ps := p.Stats()
		s.FramesSent += ps.FramesSent
		s.FramesRecv += ps.FramesRecv
	}
	return s
}

// List returns the identifiers of every currently registered portal.
func (n *Nexus) List() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.portals))
	for id := range n.portals {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll closes every registered portal and waits for them to finish
// draining — used at process shutdown.
func (n *Nexus) CloseAll() {
	n.mu.Lock()
	portals := make([]*portal.Portal, 0, len(n.portals))
	for _, p := range n.portals {
		portals = append(portals, p)
	}
	n.mu.Unlock()

	for _, p := range portals {
		p.Close()
	}
	for _, p := range portals {
		<-p.Done()
	}
}

func (n *Nexus) remove(id string) {
	n.mu.Lock()
	delete(n.portals, id)
	n.mu.Unlock()
	n.logger.Info().Str("portal", id).Msg("nexus: portal removed")
}

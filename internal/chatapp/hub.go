package chatapp

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/1ureka/wormhole/internal/actor"
	"github.com/1ureka/wormhole/internal/portal"
)

// HubName is the name the hub advertises on every portal it is exported on —
// what clients pass to Portal.Query to obtain a RemoteRef for it.
const HubName = "hub"

// guest is a registered display callback, reachable on the portal it arrived
// on — RemoteRef's local_id is only meaningful to the conduit it was minted
// by, so the portal must travel with it.
type guest struct {
	name   string
	portal *portal.Portal
	ref    portal.RemoteRef
}

// Hub is the server side of the sample chat application: a single process-
// wide actor that answers Echo asks and fans broadcasts out to every
// connected guest's display callback. Grounded on original_source/chat_app's
// server-side hub loop, generalized from a single conduit to one exported
// per portal via PublishHub so the same Hub instance serves every connection
// the process accepts.
type Hub struct {
	logger zerolog.Logger

	mu     sync.Mutex
	guests map[string]guest
}

// NewHub creates an empty Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{logger: logger, guests: make(map[string]guest)}
}

// pushCodec is the ProxyCodec for casting a BroadcastPush into a guest's
// exported display callback. It never asks, so its reply type is struct{}
// and DecodeReply is never actually invoked.
var pushCodec = portal.ProxyCodec[BroadcastPush, struct{}]{
	TypeTag: TypeTagDisplay,
	Encode: func(m BroadcastPush) ([]byte, *actor.ReplyPort[struct{}]) {
		return EncodeBroadcastPush(m), nil
	},
	DecodeReply: func([]byte) (struct{}, error) { return struct{}{}, nil },
}

// PublishHub exports h's behavior on p under HubName, so that a Query(ctx,
// "hub") from the peer on p resolves to it. Each portal gets its own Cell
// and local_id, but all of them share the one *Hub state.
func (h *Hub) PublishHub(p *portal.Portal) {
	cell := actor.Spawn(p.Context(), 64, func(ctx context.Context, inbox <-chan HubMsg) {
		for {
			select {
			case msg := <-inbox:
				h.handle(p, msg)
			case <-ctx.Done():
				return
			}
		}
	})
	portal.PublishNamedActor(p, HubName, cell, TypeTagHub, DecodeHubMsg(p), EncodeHubReply)
}

func (h *Hub) handle(p *portal.Portal, msg HubMsg) {
	switch {
	case msg.Echo != nil:
		h.handleEcho(msg.Echo)
	case msg.Connect != nil:
		h.handleConnect(p, msg.Connect)
	}
}

func (h *Hub) handleEcho(m *EchoMsg) {
	h.logger.Debug().Str("text", m.Text).Msg("chatapp: echo")
	if m.Reply != nil {
		m.Reply.Resolve(m.Text)
	}
	h.broadcast("hub", m.Text)
}

func (h *Hub) handleConnect(p *portal.Portal, m *ConnectMsg) {
	h.mu.Lock()
	h.guests[m.Name] = guest{name: m.Name, portal: p, ref: m.Callback}
	h.mu.Unlock()
	h.logger.Info().Str("name", m.Name).Msg("chatapp: guest connected")
	h.broadcast("hub", m.Name+" joined")
}

// broadcast pushes text to every guest's display callback by instantiating a
// throwaway proxy per guest and casting into it — cheap since a proxy is
// just a Cell plus a closure, and the cast is fire-and-forget.
func (h *Hub) broadcast(from, text string) {
	h.mu.Lock()
	guests := make([]guest, 0, len(h.guests))
	for _, g := range h.guests {
		guests = append(guests, g)
	}
	h.mu.Unlock()

	for _, g := range guests {
		cell, err := portal.InstantiateProxy(g.portal, g.ref, pushCodec)
		if err != nil {
			h.logger.Warn().Err(err).Str("guest", g.name).Msg("chatapp: broadcast push failed")
			continue
		}
		cell.Cast(BroadcastPush{From: from, Text: text})
	}
}

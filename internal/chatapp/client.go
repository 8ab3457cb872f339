package chatapp

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/1ureka/wormhole/internal/actor"
	"github.com/1ureka/wormhole/internal/portal"
	"github.com/1ureka/wormhole/internal/wherr"
)

// Client is a guest's view of the chat hub: a proxy cell addressing the
// remote hub plus a local display callback the hub pushes broadcasts into.
// Grounded on original_source/sample_app's client, which dials, queries a
// well-known name, and exports its own local actor for the server to call
// back into — the same three-step bootstrap as Connect below.
type Client struct {
	Name string

	portal *portal.Portal
	proxy  *actor.Cell[HubRequest]
	onPush func(BroadcastPush)
}

// Connect queries p for the hub, instantiates a proxy for it, exports a
// local display callback, and sends Connect so the hub can address it back.
// onPush is invoked (on the display actor's own goroutine) for every
// broadcast the hub pushes.
func Connect(ctx context.Context, p *portal.Portal, name string, onPush func(BroadcastPush)) (*Client, error) {
	ref, err := p.Query(ctx, HubName)
	if err != nil {
		return nil, fmt.Errorf("chatapp: query hub: %w", err)
	}

	proxy, err := portal.InstantiateProxy(p, ref, HubProxyCodec(p))
	if err != nil {
		return nil, fmt.Errorf("chatapp: instantiate hub proxy: %w", err)
	}

	display := actor.Spawn(p.Context(), 16, func(ctx context.Context, inbox <-chan BroadcastPush) {
		for {
			select {
			case push := <-inbox:
				if onPush != nil {
					onPush(push)
				}
			case <-ctx.Done():
				return
			}
		}
	})

	c := &Client{Name: name, portal: p, proxy: proxy, onPush: onPush}
	if ok := proxy.Cast(HubRequest{Connect: &ConnectCall{Name: name, Callback: display}}); !ok {
		return nil, wherr.New(wherr.KindPeerClosed, "chatapp.connect", nil)
	}
	return c, nil
}

// Echo asks the hub to echo text back, bounded by timeout (use
// config.DefaultAskTimeout for the sample app's default).
func (c *Client) Echo(ctx context.Context, text string, timeout time.Duration) (string, error) {
	reply := actor.NewReplyPort[string]()
	if timeout > 0 {
		reply.SetDeadline(time.Now().Add(timeout))
	}
	if ok := c.proxy.Cast(HubRequest{Echo: &EchoCall{Text: text, Reply: reply}}); !ok {
		return "", wherr.New(wherr.KindPeerClosed, "chatapp.echo", nil)
	}
	return reply.Wait(ctx)
}

// LogPush is a ready-made onPush handler that writes every broadcast through
// a zerolog logger, for callers that just want console output.
func LogPush(logger zerolog.Logger) func(BroadcastPush) {
	return func(m BroadcastPush) {
		logger.Info().Str("from", m.From).Msg(m.Text)
	}
}

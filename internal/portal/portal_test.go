package portal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/wormhole/internal/actor"
	"github.com/1ureka/wormhole/internal/portal"
	"github.com/1ureka/wormhole/internal/telemetry"
	"github.com/1ureka/wormhole/internal/wherr"
	"github.com/1ureka/wormhole/internal/wsconduit"
)

// echoMsg is the exported-side mailbox type: a reply port is present when
// the frame arrived as an Ask, nil when it arrived as a Send.
type echoMsg struct {
	Text  string
	Reply *actor.ReplyPort[string]
}

// echoCall is the client-side type cast into the proxy; same shape, built
// locally instead of decoded off the wire.
type echoCall struct {
	Text  string
	Reply *actor.ReplyPort[string]
}

func decodeEcho(payload []byte, reply *actor.ReplyPort[string]) (echoMsg, error) {
	return echoMsg{Text: string(payload), Reply: reply}, nil
}

func encodeEchoReply(s string) []byte { return []byte(s) }

func newLinkedPortals(t *testing.T) (ctx context.Context, a, b *portal.Portal) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	pair := wsconduit.NewMemoryPair(0)
	logger := telemetry.Nop()

	a = portal.New(ctx, "a", pair.A, logger, nil)
	b = portal.New(ctx, "b", pair.B, logger, nil)

	go wsconduit.ReceiveLoop(ctx, pair.A, a)
	go wsconduit.ReceiveLoop(ctx, pair.B, b)

	return ctx, a, b
}

func TestAskRoundTrip(t *testing.T) {
	ctx, a, b := newLinkedPortals(t)

	hub := actor.Spawn(ctx, 8, func(ctx context.Context, inbox <-chan echoMsg) {
		for {
			select {
			case m := <-inbox:
				if m.Reply != nil {
					m.Reply.Resolve(m.Text + " pong")
				}
			case <-ctx.Done():
				return
			}
		}
	})
	portal.PublishNamedActor(b, "echo", hub, "test.echo", decodeEcho, encodeEchoReply)

	ref, err := a.Query(ctx, "echo")
	require.NoError(t, err)
	assert.Equal(t, "test.echo", ref.TypeTag)

	proxy, err := portal.InstantiateProxy(a, ref, portal.ProxyCodec[echoCall, string]{
		TypeTag: "test.echo",
		Encode: func(m echoCall) ([]byte, *actor.ReplyPort[string]) {
			return []byte(m.Text), m.Reply
		},
		DecodeReply: func(b []byte) (string, error) { return string(b), nil },
	})
	require.NoError(t, err)

	reply := actor.NewReplyPort[string]()
	require.True(t, proxy.Cast(echoCall{Text: "ping", Reply: reply}))

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	v, err := reply.Wait(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, "ping pong", v)
}

func TestQueryUnknownName(t *testing.T) {
	ctx, a, _ := newLinkedPortals(t)

	_, err := a.Query(ctx, "nope")
	require.Error(t, err)
	assert.True(t, wherr.Is(err, wherr.KindUnknownName))
}

func TestSendOnlyDelivery(t *testing.T) {
	ctx, a, b := newLinkedPortals(t)

	received := make(chan string, 1)
	sink := actor.Spawn(ctx, 8, func(ctx context.Context, inbox <-chan echoMsg) {
		for {
			select {
			case m := <-inbox:
				received <- m.Text
			case <-ctx.Done():
				return
			}
		}
	})
	portal.PublishNamedActor(b, "sink", sink, "test.echo", decodeEcho, encodeEchoReply)

	ref, err := a.Query(ctx, "sink")
	require.NoError(t, err)

	proxy, err := portal.InstantiateProxy(a, ref, portal.ProxyCodec[echoCall, string]{
		TypeTag: "test.echo",
		Encode: func(m echoCall) ([]byte, *actor.ReplyPort[string]) {
			return []byte(m.Text), nil // nil reply => fire-and-forget Send
		},
		DecodeReply: func(b []byte) (string, error) { return string(b), nil },
	})
	require.NoError(t, err)
	require.True(t, proxy.Cast(echoCall{Text: "hello"}))

	select {
	case text := <-received:
		assert.Equal(t, "hello", text)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestAskFailsOnPeerClose(t *testing.T) {
	ctx, a, b := newLinkedPortals(t)

	hub := actor.Spawn(ctx, 8, func(ctx context.Context, inbox <-chan echoMsg) {
		<-ctx.Done()
	})
	portal.PublishNamedActor(b, "echo", hub, "test.echo", decodeEcho, encodeEchoReply)

	ref, err := a.Query(ctx, "echo")
	require.NoError(t, err)

	proxy, err := portal.InstantiateProxy(a, ref, portal.ProxyCodec[echoCall, string]{
		TypeTag: "test.echo",
		Encode: func(m echoCall) ([]byte, *actor.ReplyPort[string]) {
			return []byte(m.Text), m.Reply
		},
		DecodeReply: func(b []byte) (string, error) { return string(b), nil },
	})
	require.NoError(t, err)

	reply := actor.NewReplyPort[string]()
	require.True(t, proxy.Cast(echoCall{Text: "ping", Reply: reply}))

	b.Close()

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err = reply.Wait(waitCtx)
	require.Error(t, err)
	assert.True(t, wherr.Is(err, wherr.KindPeerClosed))
}

func TestAskTimesOutWhileServerIsSlow(t *testing.T) {
	ctx, a, b := newLinkedPortals(t)

	hub := actor.Spawn(ctx, 8, func(ctx context.Context, inbox <-chan echoMsg) {
		for {
			select {
			case m := <-inbox:
				// Simulate a slow handler: resolve well after the asker's
				// deadline, so the reply must already have timed out.
				go func(reply *actor.ReplyPort[string]) {
					time.Sleep(200 * time.Millisecond)
					if reply != nil {
						reply.Resolve("too late")
					}
				}(m.Reply)
			case <-ctx.Done():
				return
			}
		}
	})
	portal.PublishNamedActor(b, "echo", hub, "test.echo", decodeEcho, encodeEchoReply)

	ref, err := a.Query(ctx, "echo")
	require.NoError(t, err)

	proxy, err := portal.InstantiateProxy(a, ref, portal.ProxyCodec[echoCall, string]{
		TypeTag: "test.echo",
		Encode: func(m echoCall) ([]byte, *actor.ReplyPort[string]) {
			return []byte(m.Text), m.Reply
		},
		DecodeReply: func(b []byte) (string, error) { return string(b), nil },
	})
	require.NoError(t, err)

	reply := actor.NewReplyPort[string]()
	reply.SetDeadline(time.Now().Add(20 * time.Millisecond))
	require.True(t, proxy.Cast(echoCall{Text: "ping", Reply: reply}))

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err = reply.Wait(waitCtx)
	require.Error(t, err)
	assert.True(t, wherr.Is(err, wherr.KindTimeout))
}

func TestDecodeFailureDrainsPortal(t *testing.T) {
	ctx, a, b := newLinkedPortals(t)

	// A decoder that always fails, registered on b so a's Send triggers it.
	alwaysFails := func(payload []byte, reply *actor.ReplyPort[string]) (echoMsg, error) {
		return echoMsg{}, assert.AnError
	}
	hub := actor.Spawn(ctx, 8, func(ctx context.Context, inbox <-chan echoMsg) { <-ctx.Done() })
	portal.PublishNamedActor(b, "broken", hub, "test.broken", alwaysFails, encodeEchoReply)

	ref, err := a.Query(ctx, "broken")
	require.NoError(t, err)

	proxy, err := portal.InstantiateProxy(a, ref, portal.ProxyCodec[echoCall, string]{
		TypeTag: "test.broken",
		Encode: func(m echoCall) ([]byte, *actor.ReplyPort[string]) {
			return []byte(m.Text), nil // Send, not Ask — decode runs on b regardless
		},
		DecodeReply: func(b []byte) (string, error) { return string(b), nil },
	})
	require.NoError(t, err)
	require.True(t, proxy.Cast(echoCall{Text: "boom"}))

	require.Eventually(t, func() bool {
		return b.State() == portal.PhaseClosed
	}, time.Second, 10*time.Millisecond)
}

func TestTypeMismatchOnInstantiate(t *testing.T) {
	ctx, a, b := newLinkedPortals(t)

	hub := actor.Spawn(ctx, 8, func(ctx context.Context, inbox <-chan echoMsg) {})
	portal.PublishNamedActor(b, "echo", hub, "test.echo", decodeEcho, encodeEchoReply)

	ref, err := a.Query(ctx, "echo")
	require.NoError(t, err)

	_, err = portal.InstantiateProxy(a, ref, portal.ProxyCodec[echoCall, string]{
		TypeTag: "test.other",
		Encode: func(m echoCall) ([]byte, *actor.ReplyPort[string]) {
			return []byte(m.Text), m.Reply
		},
		DecodeReply: func(b []byte) (string, error) { return string(b), nil },
	})
	require.Error(t, err)
	assert.True(t, wherr.Is(err, wherr.KindTypeMismatch))
}

package chatapp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/wormhole/internal/chatapp"
	"github.com/1ureka/wormhole/internal/portal"
	"github.com/1ureka/wormhole/internal/telemetry"
	"github.com/1ureka/wormhole/internal/wsconduit"
)

func newLinkedPortals(t *testing.T) (ctx context.Context, server, client *portal.Portal) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	pair := wsconduit.NewMemoryPair(0)
	logger := telemetry.Nop()

	server = portal.New(ctx, "server", pair.A, logger, nil)
	client = portal.New(ctx, "client", pair.B, logger, nil)

	go wsconduit.ReceiveLoop(ctx, pair.A, server)
	go wsconduit.ReceiveLoop(ctx, pair.B, client)

	return ctx, server, client
}

func TestEchoRoundTrip(t *testing.T) {
	ctx, server, client := newLinkedPortals(t)

	hub := chatapp.NewHub(telemetry.Nop())
	hub.PublishHub(server)

	pushes := make(chan chatapp.BroadcastPush, 4)
	guest, err := chatapp.Connect(ctx, client, "alice", func(p chatapp.BroadcastPush) { pushes <- p })
	require.NoError(t, err)

	reply, err := guest.Echo(ctx, "hello", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)

	select {
	case p := <-pushes:
		assert.Equal(t, "alice joined", p.Text)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for join broadcast")
	}

	select {
	case p := <-pushes:
		assert.Equal(t, "hello", p.Text)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for echo broadcast")
	}
}

func TestMultiGuestBroadcast(t *testing.T) {
	ctx, server, client1 := newLinkedPortals(t)

	hub := chatapp.NewHub(telemetry.Nop())
	hub.PublishHub(server)

	pair2 := wsconduit.NewMemoryPair(0)
	logger := telemetry.Nop()
	server2 := portal.New(ctx, "server2", pair2.A, logger, nil)
	client2 := portal.New(ctx, "client2", pair2.B, logger, nil)
	go wsconduit.ReceiveLoop(ctx, pair2.A, server2)
	go wsconduit.ReceiveLoop(ctx, pair2.B, client2)
	hub.PublishHub(server2)

	pushes1 := make(chan chatapp.BroadcastPush, 4)
	_, err := chatapp.Connect(ctx, client1, "alice", func(p chatapp.BroadcastPush) { pushes1 <- p })
	require.NoError(t, err)
	<-pushes1 // alice joined

	pushes2 := make(chan chatapp.BroadcastPush, 4)
	guest2, err := chatapp.Connect(ctx, client2, "bob", func(p chatapp.BroadcastPush) { pushes2 <- p })
	require.NoError(t, err)
	<-pushes2 // bob joined (echoed to bob's own listener too, since hub.broadcast fans to all guests)

	select {
	case p := <-pushes1:
		assert.Equal(t, "bob joined", p.Text)
	case <-time.After(time.Second):
		t.Fatal("alice did not observe bob joining")
	}

	_, err = guest2.Echo(ctx, "hi", time.Second)
	require.NoError(t, err)

	select {
	case p := <-pushes1:
		assert.Equal(t, "hi", p.Text)
	case <-time.After(time.Second):
		t.Fatal("alice did not observe bob's echo broadcast")
	}
}

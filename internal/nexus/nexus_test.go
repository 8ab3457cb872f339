package nexus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/wormhole/internal/nexus"
	"github.com/1ureka/wormhole/internal/telemetry"
	"github.com/1ureka/wormhole/internal/wsconduit"
)

func TestConnectedRegistersAndRemoves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := nexus.New(ctx, telemetry.Nop())
	pair := wsconduit.NewMemoryPair(0)

	p := n.Connected("peer-a", pair.A)
	go wsconduit.ReceiveLoop(ctx, pair.A, p)
	assert.Contains(t, n.List(), "peer-a")

	found, ok := n.Find("peer-a")
	require.True(t, ok)
	assert.Same(t, p, found)

	p.Close()
	require.Eventually(t, func() bool {
		_, ok := n.Find("peer-a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestConnectedReplacesExisting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := nexus.New(ctx, telemetry.Nop())

	pair1 := wsconduit.NewMemoryPair(0)
	first := n.Connected("dup", pair1.A)
	go wsconduit.ReceiveLoop(ctx, pair1.A, first)

	pair2 := wsconduit.NewMemoryPair(0)
	second := n.Connected("dup", pair2.A)
	go wsconduit.ReceiveLoop(ctx, pair2.A, second)

	require.Eventually(t, func() bool {
		select {
		case <-first.Done():
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	found, ok := n.Find("dup")
	require.True(t, ok)
	assert.Same(t, second, found)
}

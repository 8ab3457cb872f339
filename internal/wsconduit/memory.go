package wsconduit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// MemoryPair is a linked pair of in-memory conduits, generalizing the
// teacher's tests/adapter_test.go mockTransport/MockTransports from a
// packet-level mock into a full (Sink, Source) Conduit pair usable by any
// package's unit tests, including out-of-order delivery via MaxDelay.
type MemoryPair struct {
	A, B *memoryEndpoint
}

// NewMemoryPair creates two linked endpoints; messages sent on one side's
// Sink are delivered, after a random delay in [0, maxDelay), to the other
// side's Source. A maxDelay of 0 delivers synchronously in send order.
func NewMemoryPair(maxDelay time.Duration) *MemoryPair {
	a := &memoryEndpoint{recv: make(chan Message, 64), closed: make(chan struct{})}
	b := &memoryEndpoint{recv: make(chan Message, 64), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	a.maxDelay, b.maxDelay = maxDelay, maxDelay
	return &MemoryPair{A: a, B: b}
}

type memoryEndpoint struct {
	peer     *memoryEndpoint
	recv     chan Message
	maxDelay time.Duration

	mu         sync.Mutex
	closed     chan struct{}
	closedOnce sync.Once
}

// Sink returns this endpoint's outbound Sink — messages sent through it
// arrive on the peer endpoint's Source.
func (e *memoryEndpoint) Sink() Sink { return e }

// Source returns this endpoint's inbound Source.
func (e *memoryEndpoint) Source() Source { return e }

func (e *memoryEndpoint) Send(ctx context.Context, msg Message) error {
	select {
	case <-e.closed:
		return fmt.Errorf("wsconduit: memory sink closed")
	default:
	}

	delay := time.Duration(0)
	if e.maxDelay > 0 {
		delay = time.Duration(rand.Int64N(int64(e.maxDelay)))
	}

	if delay == 0 {
		select {
		case e.peer.recv <- msg:
		case <-e.peer.closed:
		case <-e.closed:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}

	go func() {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-e.closed:
				return
			case <-e.peer.closed:
				return
			}
		}
		select {
		case e.peer.recv <- msg:
		case <-e.peer.closed:
		}
	}()

	return nil
}

func (e *memoryEndpoint) Close() error {
	e.closedOnce.Do(func() {
		close(e.closed)
		select {
		case e.peer.recv <- CloseMessage("peer closed"):
		default:
		}
	})
	return nil
}

func (e *memoryEndpoint) Recv(ctx context.Context) (Message, error) {
	select {
	case msg := <-e.recv:
		return msg, nil
	case <-e.closed:
		return Message{}, fmt.Errorf("wsconduit: memory source closed")
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

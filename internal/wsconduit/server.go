package wsconduit

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// Accepted is delivered to an AcceptFunc for each upgraded connection.
type Accepted struct {
	Sink    Sink
	Source  Source
	Addr    string
	Request *http.Request
}

// AcceptFunc is invoked once per successful upgrade. It is the caller's
// responsibility to hand (Sink, Source) to the nexus and to spawn
// ReceiveLoop on Source — the server adapter itself holds no portal state,
// staying a pure transport-to-conduit translator (spec §4.1).
type AcceptFunc func(Accepted)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler returns an http.HandlerFunc that upgrades every request to a
// WebSocket and invokes onAccept with the resulting Conduit, generalizing
// the teacher's internal/signaling.Server.handleWS from "accept exactly one
// client, reject the rest" to "every upgrade becomes its own portal" — the
// nexus, not this adapter, is what is allowed to hold many portals (spec §2).
func Handler(ctx context.Context, onAccept AcceptFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		addr := ""
		if conn.RemoteAddr() != nil {
			addr = conn.RemoteAddr().String()
		}

		sink := NewActorSink(ctx, 64, func(msg Message) error { return writeConn(conn, msg) })
		source := &connSource{conn: conn}

		onAccept(Accepted{Sink: sink, Source: source, Addr: addr, Request: r})
	}
}

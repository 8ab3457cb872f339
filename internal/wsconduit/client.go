package wsconduit

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// Dial connects to a WebSocket URL and returns a Conduit (Sink, Source) pair
// plus the raw connection's peer address, generalizing the teacher's
// internal/signaling.Connect from a fixed SDP-handshake consumer to a
// general-purpose conduit for arbitrary wormhole frames.
func Dial(ctx context.Context, url string) (Sink, Source, string, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, nil, "", fmt.Errorf("wsconduit: dial %s: %w", url, err)
	}

	addr := ""
	if conn.RemoteAddr() != nil {
		addr = conn.RemoteAddr().String()
	}

	sink := NewActorSink(ctx, 64, func(msg Message) error { return writeConn(conn, msg) })
	source := &connSource{conn: conn}

	return sink, source, addr, nil
}

// connSource adapts a *websocket.Conn's blocking ReadMessage into the
// Source contract, grounded on the teacher's receiver.watch loop
// (internal/signaling/receiver.go) generalized from a single JSON message
// type to the three-way Conduit vocabulary.
type connSource struct {
	conn *websocket.Conn
}

func (s *connSource) Recv(ctx context.Context) (Message, error) {
	msgType, data, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err) || websocket.IsUnexpectedCloseError(err) {
			return CloseMessage(err.Error()), nil
		}
		return Message{}, fmt.Errorf("wsconduit: read: %w", err)
	}

	switch msgType {
	case websocket.TextMessage:
		return TextMessage(string(data)), nil
	case websocket.BinaryMessage:
		return BinaryMessage(data), nil
	case websocket.CloseMessage:
		return CloseMessage(string(data)), nil
	default:
		// Ping/Pong are handled internally by gorilla/websocket; anything
		// else is not part of the Conduit vocabulary.
		return s.Recv(ctx)
	}
}

func writeConn(conn *websocket.Conn, msg Message) error {
	switch msg.Kind {
	case KindText:
		return conn.WriteMessage(websocket.TextMessage, []byte(msg.Text))
	case KindBinary:
		return conn.WriteMessage(websocket.BinaryMessage, msg.Binary)
	case KindClose:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, msg.CloseReason))
		return conn.Close()
	default:
		return fmt.Errorf("wsconduit: unknown message kind %d", msg.Kind)
	}
}

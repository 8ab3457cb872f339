// Package chatapp is the sample application spec §11.6 asks for: a small
// chat hub that exercises every wormhole operation — a named remote actor
// reachable by Query (the hub), an ask-style call with a reply port (Echo),
// and a handle tunneled inside a message payload (a client's display
// callback, carried to the hub inside Connect so the hub can push broadcasts
// back without the client ever publishing a name for it).
//
// Grounded on original_source/chat_app and original_source/sample_app: the
// hub mirrors ractor_wormhole's sample chat actor, and the callback-handle
// dance mirrors sample_app's client establishing a nexus connection and
// handing the server a local actor ref to call back into.
package chatapp

import (
	"encoding/binary"
	"fmt"

	"github.com/1ureka/wormhole/internal/actor"
	"github.com/1ureka/wormhole/internal/portal"
)

// TypeTagHub and TypeTagDisplay identify the two actor shapes this package
// tunnels across the wire — spec §3's "type_tag" used for TypeMismatch
// checks at proxy instantiation.
const (
	TypeTagHub     = "chatapp.Hub"
	TypeTagDisplay = "chatapp.Display"
)

// ---------------------------------------------------------------------------
// Hub-side mailbox (server)
// ---------------------------------------------------------------------------

// HubMsg is the hub actor's mailbox type. Exactly one of Echo/Connect is set
// per message, the same tagged-union shape as protocol.Frame.
type HubMsg struct {
	Echo    *EchoMsg
	Connect *ConnectMsg
}

// EchoMsg carries the text to echo. Reply is non-nil when the message
// arrived as an Ask frame — set by the portal's generic Export machinery,
// never by hand.
type EchoMsg struct {
	Text  string
	Reply *actor.ReplyPort[string]
}

// ConnectMsg registers a display name and the caller's already-tunneled
// broadcast callback.
type ConnectMsg struct {
	Name     string
	Callback portal.RemoteRef
}

// ---------------------------------------------------------------------------
// Hub-side codec (what the hub's Export registration decodes)
// ---------------------------------------------------------------------------

// DecodeHubMsg is passed to portal.PublishNamedActor/portal.Export when
// exporting the hub. It distinguishes Echo from Connect payloads by a
// 1-byte tag prefix, mirroring protocol.Frame's own Tag-dispatch envelope.
func DecodeHubMsg(hc portal.HandleContext) func(payload []byte, reply *actor.ReplyPort[string]) (HubMsg, error) {
	return func(payload []byte, reply *actor.ReplyPort[string]) (HubMsg, error) {
		if len(payload) < 1 {
			return HubMsg{}, fmt.Errorf("chatapp: empty hub payload")
		}
		switch payload[0] {
		case tagEcho:
			return HubMsg{Echo: &EchoMsg{Text: string(payload[1:]), Reply: reply}}, nil
		case tagConnect:
			name, rest, err := readString(payload[1:])
			if err != nil {
				return HubMsg{}, fmt.Errorf("chatapp: decode connect name: %w", err)
			}
			remoteID, rest, err := readUint64(rest)
			if err != nil {
				return HubMsg{}, fmt.Errorf("chatapp: decode connect callback id: %w", err)
			}
			typeTag, _, err := readString(rest)
			if err != nil {
				return HubMsg{}, fmt.Errorf("chatapp: decode connect callback type: %w", err)
			}
			return HubMsg{Connect: &ConnectMsg{
				Name:     name,
				Callback: hc.ImportHandle(remoteID, typeTag),
			}}, nil
		default:
			return HubMsg{}, fmt.Errorf("chatapp: unknown hub message tag %d", payload[0])
		}
	}
}

// EncodeHubReply serializes the string an Echo handler resolves its reply
// port with.
func EncodeHubReply(s string) []byte { return []byte(s) }

// ---------------------------------------------------------------------------
// Hub-side proxy request (what a client casts into the hub proxy)
// ---------------------------------------------------------------------------

// EchoCall is cast into a hub proxy to perform an Echo ask.
type EchoCall struct {
	Text  string
	Reply *actor.ReplyPort[string]
}

// ConnectCall is cast into a hub proxy to register for broadcasts. Callback
// is the client's own local display actor, exported at encode time.
type ConnectCall struct {
	Name     string
	Callback *actor.Cell[BroadcastPush]
}

// HubRequest is the proxy's mailbox type: the client-side counterpart of
// HubMsg, holding local references instead of decoded remote ones.
type HubRequest struct {
	Echo    *EchoCall
	Connect *ConnectCall
}

// HubProxyCodec builds the ProxyCodec a client uses to instantiate a proxy
// for a RemoteRef returned by Query(ctx, "hub"). p is the same portal the
// proxy is instantiated on, needed to export ConnectCall's callback.
func HubProxyCodec(p *portal.Portal) portal.ProxyCodec[HubRequest, string] {
	return portal.ProxyCodec[HubRequest, string]{
		TypeTag: TypeTagHub,
		Encode: func(m HubRequest) ([]byte, *actor.ReplyPort[string]) {
			switch {
			case m.Echo != nil:
				payload := append([]byte{tagEcho}, []byte(m.Echo.Text)...)
				return payload, m.Echo.Reply
			case m.Connect != nil:
				calleeID := portal.Export[BroadcastPush, struct{}](p, m.Connect.Callback, TypeTagDisplay, DecodeBroadcastPush, nil)
				payload := []byte{tagConnect}
				payload = appendString(payload, m.Connect.Name)
				payload = appendUint64(payload, calleeID)
				payload = appendString(payload, TypeTagDisplay)
				return payload, nil
			default:
				return nil, nil
			}
		},
		DecodeReply: func(b []byte) (string, error) { return string(b), nil },
	}
}

// ---------------------------------------------------------------------------
// Client-side mailbox (display callback)
// ---------------------------------------------------------------------------

// BroadcastPush is what the hub sends to every registered client callback
// when anyone echoes a message — fire-and-forget, never asked.
type BroadcastPush struct {
	From string
	Text string
}

// DecodeBroadcastPush decodes a Send-frame payload into a BroadcastPush. R
// is struct{} since this actor never answers an ask.
func DecodeBroadcastPush(payload []byte, _ *actor.ReplyPort[struct{}]) (BroadcastPush, error) {
	from, rest, err := readString(payload)
	if err != nil {
		return BroadcastPush{}, fmt.Errorf("chatapp: decode broadcast from: %w", err)
	}
	text, _, err := readString(rest)
	if err != nil {
		return BroadcastPush{}, fmt.Errorf("chatapp: decode broadcast text: %w", err)
	}
	return BroadcastPush{From: from, Text: text}, nil
}

// EncodeBroadcastPush serializes a BroadcastPush for a Send frame.
func EncodeBroadcastPush(m BroadcastPush) []byte {
	buf := appendString(nil, m.From)
	return appendString(buf, m.Text)
}

// ---------------------------------------------------------------------------
// Minimal field encoding — length-prefixed strings and a big-endian uint64,
// the same shape as internal/protocol's envelope fields, kept local to this
// package since application-level codecs are expected to own their wire
// format independently of the frame envelope (spec §9).
// ---------------------------------------------------------------------------

const (
	tagEcho byte = iota + 1
	tagConnect
)

func appendString(buf []byte, s string) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(s)))
	buf = append(buf, tmp[:]...)
	return append(buf, s...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func readString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, fmt.Errorf("truncated length prefix")
	}
	n := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return "", nil, fmt.Errorf("truncated string: need %d, have %d", n, len(buf))
	}
	return string(buf[:n]), buf[n:], nil
}

func readUint64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, fmt.Errorf("truncated uint64")
	}
	return binary.BigEndian.Uint64(buf[:8]), buf[8:], nil
}

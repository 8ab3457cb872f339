package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		f    *Frame
	}{
		{"advertise", &Frame{Tag: TagAdvertise, Name: "hub", LocalID: 7, TypeTag: "chatapp.HubMsg"}},
		{"query", &Frame{Tag: TagQuery, Name: "hub", ReplyID: 42}},
		{"query_reply_hit", &Frame{Tag: TagQueryReply, ReplyID: 42, Found: true, RemoteID: 7, TypeTag: "chatapp.HubMsg"}},
		{"query_reply_miss", &Frame{Tag: TagQueryReply, ReplyID: 42, Found: false}},
		{"send", &Frame{Tag: TagSend, TargetID: 1, Payload: []byte("hello")}},
		{"send_empty_payload", &Frame{Tag: TagSend, TargetID: 1, Payload: []byte{}}},
		{"ask", &Frame{Tag: TagAsk, TargetID: 1, ReplyID: 99, Payload: []byte("echo me")}},
		{"reply", &Frame{Tag: TagReply, ReplyID: 99, Payload: []byte("echo me")}},
		{"error", &Frame{Tag: TagError, ReplyID: 99, ErrKind: ErrorUnknownTarget, ErrMsg: "no such actor"}},
		{"release_reply_port", &Frame{Tag: TagRelease, ReleaseKind: ReleaseReplyPort, ReplyID: 99}},
		{"release_handle", &Frame{Tag: TagRelease, ReleaseKind: ReleaseHandle, ReleaseID: 7}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := Encode(tc.f)
			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.f, decoded)
		})
	}
}

func TestDecodeTooShort(t *testing.T) {
	for _, data := range [][]byte{nil, {}, {Version}} {
		_, err := Decode(data)
		assert.Error(t, err)
	}
}

func TestDecodeWrongVersion(t *testing.T) {
	_, err := Decode([]byte{Version + 1, byte(TagQuery)})
	assert.Error(t, err)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte{Version, 0xFF})
	assert.Error(t, err)
}

func TestDecodeTruncatedField(t *testing.T) {
	full := Encode(&Frame{Tag: TagSend, TargetID: 1, Payload: []byte("hello world")})
	_, err := Decode(full[:len(full)-3])
	assert.Error(t, err)
}

func TestDecodeDoesNotAliasInput(t *testing.T) {
	encoded := Encode(&Frame{Tag: TagSend, TargetID: 1, Payload: []byte("original")})
	decoded, err := Decode(encoded)
	require.NoError(t, err)

	for i := range encoded {
		encoded[i] = 0xFF
	}

	assert.Equal(t, []byte("original"), decoded.Payload)
}

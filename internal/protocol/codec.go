package protocol

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes a Frame into a byte slice for conduit transmission,
// extending the teacher's fixed 9-byte tunnel header (type+socketID+seqNum)
// into a version-prefixed, tag-dispatched envelope with length-prefixed
// string/byte fields, per spec §6.
func Encode(f *Frame) []byte {
	buf := make([]byte, 0, 64+len(f.Payload)+len(f.Name)+len(f.TypeTag)+len(f.ErrMsg))
	buf = append(buf, Version, byte(f.Tag))

	switch f.Tag {
	case TagAdvertise:
		buf = putString(buf, f.Name)
		buf = putUint64(buf, f.LocalID)
		buf = putString(buf, f.TypeTag)

	case TagQuery:
		buf = putString(buf, f.Name)
		buf = putUint64(buf, f.ReplyID)

	case TagQueryReply:
		buf = putUint64(buf, f.ReplyID)
		buf = putBool(buf, f.Found)
		buf = putUint64(buf, f.RemoteID)
		buf = putString(buf, f.TypeTag)

	case TagSend:
		buf = putUint64(buf, f.TargetID)
		buf = putBytes(buf, f.Payload)

	case TagAsk:
		buf = putUint64(buf, f.TargetID)
		buf = putUint64(buf, f.ReplyID)
		buf = putBytes(buf, f.Payload)

	case TagReply:
		buf = putUint64(buf, f.ReplyID)
		buf = putBytes(buf, f.Payload)

	case TagError:
		buf = putUint64(buf, f.ReplyID)
		buf = append(buf, byte(f.ErrKind))
		buf = putString(buf, f.ErrMsg)

	case TagRelease:
		buf = append(buf, byte(f.ReleaseKind))
		id := f.ReplyID
		if f.ReleaseKind == ReleaseHandle {
			id = f.ReleaseID
		}
		buf = putUint64(buf, id)
	}

	return buf
}

// Decode deserializes a conduit message payload into a Frame.
func Decode(data []byte) (*Frame, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("protocol: frame too short: %d bytes", len(data))
	}
	if data[0] != Version {
		return nil, fmt.Errorf("protocol: unsupported version %d", data[0])
	}

	f := &Frame{Tag: Tag(data[1])}
	r := reader{buf: data[2:]}

	var err error
	switch f.Tag {
	case TagAdvertise:
		if f.Name, err = r.string(); err != nil {
			return nil, err
		}
		if f.LocalID, err = r.uint64(); err != nil {
			return nil, err
		}
		if f.TypeTag, err = r.string(); err != nil {
			return nil, err
		}

	case TagQuery:
		if f.Name, err = r.string(); err != nil {
			return nil, err
		}
		if f.ReplyID, err = r.uint64(); err != nil {
			return nil, err
		}

	case TagQueryReply:
		if f.ReplyID, err = r.uint64(); err != nil {
			return nil, err
		}
		if f.Found, err = r.boolean(); err != nil {
			return nil, err
		}
		if f.RemoteID, err = r.uint64(); err != nil {
			return nil, err
		}
		if f.TypeTag, err = r.string(); err != nil {
			return nil, err
		}

	case TagSend:
		if f.TargetID, err = r.uint64(); err != nil {
			return nil, err
		}
		if f.Payload, err = r.bytes(); err != nil {
			return nil, err
		}

	case TagAsk:
		if f.TargetID, err = r.uint64(); err != nil {
			return nil, err
		}
		if f.ReplyID, err = r.uint64(); err != nil {
			return nil, err
		}
		if f.Payload, err = r.bytes(); err != nil {
			return nil, err
		}

	case TagReply:
		if f.ReplyID, err = r.uint64(); err != nil {
			return nil, err
		}
		if f.Payload, err = r.bytes(); err != nil {
			return nil, err
		}

	case TagError:
		if f.ReplyID, err = r.uint64(); err != nil {
			return nil, err
		}
		b, err2 := r.byte1()
		if err2 != nil {
			return nil, err2
		}
		f.ErrKind = ErrorKind(b)
		if f.ErrMsg, err = r.string(); err != nil {
			return nil, err
		}

	case TagRelease:
		b, err2 := r.byte1()
		if err2 != nil {
			return nil, err2
		}
		f.ReleaseKind = ReleaseKind(b)
		id, err3 := r.uint64()
		if err3 != nil {
			return nil, err3
		}
		if f.ReleaseKind == ReleaseHandle {
			f.ReleaseID = id
		} else {
			f.ReplyID = id
		}

	default:
		return nil, fmt.Errorf("protocol: unknown frame tag %d", f.Tag)
	}

	return f, nil
}

// ---------------------------------------------------------------------------
// Field encoding helpers — fixed big-endian widths + length-prefixed
// strings/bytes, generalizing the teacher's fixed-width BigEndian header.
// ---------------------------------------------------------------------------

func putUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func putString(buf []byte, s string) []byte {
	return putBytes(buf, []byte(s))
}

func putBytes(buf []byte, b []byte) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(b)))
	buf = append(buf, tmp[:]...)
	return append(buf, b...)
}

type reader struct {
	buf []byte
}

func (r *reader) uint64() (uint64, error) {
	if len(r.buf) < 8 {
		return 0, fmt.Errorf("protocol: truncated uint64 field")
	}
	v := binary.BigEndian.Uint64(r.buf[:8])
	r.buf = r.buf[8:]
	return v, nil
}

func (r *reader) byte1() (byte, error) {
	if len(r.buf) < 1 {
		return 0, fmt.Errorf("protocol: truncated byte field")
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b, nil
}

func (r *reader) boolean() (bool, error) {
	b, err := r.byte1()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (r *reader) bytes() ([]byte, error) {
	if len(r.buf) < 4 {
		return nil, fmt.Errorf("protocol: truncated length prefix")
	}
	n := binary.BigEndian.Uint32(r.buf[:4])
	r.buf = r.buf[4:]
	if uint32(len(r.buf)) < n {
		return nil, fmt.Errorf("protocol: truncated field: need %d bytes, have %d", n, len(r.buf))
	}
	out := make([]byte, n)
	copy(out, r.buf[:n])
	r.buf = r.buf[n:]
	return out, nil
}

func (r *reader) string() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

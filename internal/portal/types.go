package portal

// Phase is the portal lifecycle state of spec §4.3.
type Phase int32

const (
	PhaseOpening Phase = iota
	PhaseRunning
	PhaseDraining
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "opening"
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// RemoteRef is an imported actor reference (spec §3): not itself
// addressable, only usable once turned into a proxy via InstantiateProxy.
type RemoteRef struct {
	RemoteID uint64
	TypeTag  string
}

// HandleContext is the narrow view a per-message codec needs from the
// owning portal to tunnel an embedded remote reference during decode (spec
// §9: "codec needs a context object exposing ... mint_remote_ref"). The
// symmetric export half (for encoding a local handle) is the free function
// Export, which needs a type parameter and so cannot live on an interface.
type HandleContext interface {
	ImportHandle(remoteID uint64, typeTag string) RemoteRef
}

// exportEntry is one row of the portal's export table (spec §3): a local
// actor advertised (by name or embedded handle token) to the peer. The
// decoder is bound to the concrete message type M at Export time and
// captured in the two closures below, replacing runtime reflection with
// capture-at-registration (spec §9).
type exportEntry struct {
	localID uint64
	typeTag string
	alive   func() bool

	// deliverSend decodes a Send-frame payload and casts it to the exported
	// actor. A non-nil error means the payload failed to decode as M — fatal
	// for the portal (spec §7 DecodeFailure).
	deliverSend func(payload []byte) error

	// deliverAsk decodes an Ask-frame payload (wiring a reply port bound to
	// replyID) and casts it to the exported actor.
	deliverAsk func(payload []byte, replyID uint64) error
}

// askEntry is one row of the ask-half of the portal's reply table: a
// pending local Ask awaiting a Reply/Error frame from the peer.
type askEntry struct {
	resolve func(payload []byte)
	fail    func(err error)
}

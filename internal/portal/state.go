package portal

// state holds every table spec §3 assigns to a portal. It is only ever
// touched by the portal's own actor goroutine while processing ops pulled
// off its inbox — the single-owner discipline spec §5 requires, implemented
// here as "run this closure on the owning goroutine" rather than a mutex,
// generalizing the teacher's single-goroutine route-table pattern
// (internal/tunnel/dispatcher.go) from a map guarded by convention to one
// guarded by construction.
type state struct {
	phase Phase

	exports    map[uint64]*exportEntry
	localNames map[string]uint64

	// exportedCells maps an already-exported actor (keyed by its *actor.Cell
	// pointer, boxed as any — distinct M type parameters never collide since
	// interface equality compares dynamic type as well as value) back to the
	// local_id it was assigned. Export consults this before minting a new
	// id, so repeated Export/PublishNamedActor calls for the same actor
	// reuse the existing export row instead of leaking a new one each time
	// (spec §4.3 "allocates a local_id if not yet exported").
	exportedCells map[any]uint64

	askReplies   map[uint64]*askEntry
	queryReplies map[uint64]*pendingQuery

	nextLocalID uint64
	nextReplyID uint64
}

type pendingQuery struct {
	resolve func(found bool, remoteID uint64, typeTag string)
	fail    func(err error)
}

func newState() *state {
	return &state{
		phase:         PhaseOpening,
		exports:       make(map[uint64]*exportEntry),
		localNames:    make(map[string]uint64),
		exportedCells: make(map[any]uint64),
		askReplies:    make(map[uint64]*askEntry),
		queryReplies:  make(map[uint64]*pendingQuery),
	}
}

func (s *state) allocLocalID() uint64 {
	s.nextLocalID++
	return s.nextLocalID
}

func (s *state) allocReplyID() uint64 {
	s.nextReplyID++
	return s.nextReplyID
}

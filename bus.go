package coherence

// BusActionKind identifies the category of a bus transaction. The price
// table below follows spec.md §4.2: memory-class transactions are flat
// 100-cycle round trips; shared (cache-to-cache) transactions are priced
// by the number of words moved.
type BusActionKind int

const (
	BusRdMem BusActionKind = iota
	BusRdShared
	BusRdXMem
	BusRdXShared
	BusUpdMem
	BusUpdShared
	Flush
)

func (k BusActionKind) String() string {
	switch k {
	case BusRdMem:
		return "BusRdMem"
	case BusRdShared:
		return "BusRdShared"
	case BusRdXMem:
		return "BusRdXMem"
	case BusRdXShared:
		return "BusRdXShared"
	case BusUpdMem:
		return "BusUpdMem"
	case BusUpdShared:
		return "BusUpdShared"
	case Flush:
		return "Flush"
	default:
		return "unknown"
	}
}

// memPrice is the flat cost of any memory-class transaction.
const memPrice = 100

// BusAction is a request to move bytes over the bus: a kind, the address
// it concerns, and the number of bytes it carries (used both for pricing
// shared-class transactions and for the bus_traffic counter).
type BusAction struct {
	Kind  BusActionKind
	Addr  uint32
	Bytes int
}

func price(a BusAction) int {
	switch a.Kind {
	case BusRdShared, BusRdXShared, BusUpdShared:
		return 2 * (a.Bytes / wordSize)
	default:
		return memPrice
	}
}

// Task is the bus's single in-flight transaction. SawSharer is set by a
// snooping Protocol that finds a copy of the line; it lets the issuer's
// AfterSnoop distinguish "nobody else has this" (settle at E/M) from
// "somebody else reacted" (settle at S/Sc/Sm) without the issuer
// inspecting other cores' state directly.
type Task struct {
	IssuerID        int
	Action          BusAction
	RemainingCycles int
	SawSharer       bool
}

// Bus models the shared bus as a one-slot mutex: at most one transaction
// may be in flight; any core wanting to issue must find it free.
type Bus struct {
	task         *Task
	traffic      uint64
	invalidOrUpd uint64
}

// NewBus returns an idle bus.
func NewBus() *Bus { return &Bus{} }

// Occupied reports whether a transaction is currently in flight.
func (b *Bus) Occupied() bool { return b.task != nil }

// ActiveTask returns the in-flight transaction, or nil if the bus is idle.
func (b *Bus) ActiveTask() *Task { return b.task }

// PutOn issues a new transaction. Panics if the bus is already occupied;
// callers (Cache) must check Occupied first.
func (b *Bus) PutOn(issuerID int, action BusAction) {
	if b.Occupied() {
		panic(&InvariantError{Msg: "bus.PutOn called while a transaction is already in flight"})
	}
	b.task = &Task{IssuerID: issuerID, Action: action, RemainingCycles: price(action)}
	b.traffic += uint64(action.Bytes)
	switch action.Kind {
	case BusRdXMem, BusRdXShared, BusUpdMem, BusUpdShared:
		b.invalidOrUpd++
	}
}

// Overwrite replaces the active task wholesale. Used by Cache.Snoop to
// install a snooping Protocol's rewrite of a transaction's kind (e.g.
// BusRdMem -> BusRdShared once a sharer is found).
func (b *Bus) Overwrite(t *Task) { b.task = t }

// Clear drops the active task outright, used when a Dragon BusUpd is
// canceled after-snoop because no other core shares the line.
func (b *Bus) Clear() { b.task = nil }

// Update advances the bus by one cycle: decrements the active
// transaction's remaining cycles, or retires it once they reach zero.
func (b *Bus) Update() {
	if b.task == nil {
		return
	}
	if b.task.RemainingCycles == 0 {
		b.task = nil
		return
	}
	b.task.RemainingCycles--
}

// Traffic returns the cumulative bus_traffic counter (bytes moved).
func (b *Bus) Traffic() uint64 { return b.traffic }

// NumInvalidOrUpd returns the cumulative count of invalidating/updating
// transactions (BusRdX* and BusUpd*).
func (b *Bus) NumInvalidOrUpd() uint64 { return b.invalidOrUpd }

package coherence

import "fmt"

// InvariantError indicates the simulator observed a coherence state that
// should be unreachable under the protocol's own rules — a bug, not a
// retryable condition. Cache, Protocol and Bus panic with this type, and
// System.CheckInvariants and System.Run return it as an error. cmd/simulator
// does not recover the panics: a violation aborts the process.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("coherence: invariant violation: %s", e.Msg)
}

// noLine is the sentinel flat index meaning "not present in this cache".
const noLine = -1

// Protocol is the contract shared by MESI and Dragon. Each instance owns
// the per-line coherence state for exactly one core; it never reads
// another core's state directly — all cross-core coordination happens
// through the Bus during Snoop/AfterSnoop, which Cache drives once per
// cycle for every core in fixed id order.
type Protocol interface {
	// Read processes a processor load. cacheIdx is the flat index
	// currently holding addr's line when hit is true; when hit is false,
	// storeIdx is the flat index (the LRU victim way) that will receive
	// the block. busOccupied reports whether the bus already carries a
	// transaction. If a bus transaction is required but
	// busOccupied is true, state is left unchanged and the action is
	// returned so the caller can retry once free; the caller (Cache) is
	// responsible for actually placing the action on the bus when free.
	Read(cacheIdx, storeIdx int, addr uint32, hit, busOccupied bool) *BusAction

	// Write processes a processor store. Semantics mirror Read.
	Write(cacheIdx, storeIdx int, addr uint32, hit, busOccupied bool) *BusAction

	// Snoop reacts to another core's in-flight bus transaction. cacheIdx
	// is the flat index at which this core holds the transaction's
	// address; Cache only calls Snoop when that lookup hit. A non-nil
	// return value replaces the bus's active task (via Bus.Overwrite).
	Snoop(cacheIdx int, bus *Bus) *Task

	// AfterSnoop lets the issuing core reconcile its own state against
	// the bus task as finalized by all snoopers this cycle. No-ops for
	// any core that isn't the task's issuer. cacheIdx is the flat index
	// this core associates with its own outstanding transaction.
	AfterSnoop(cacheIdx int, bus *Bus)

	// WritebackRequired reports whether evicting cacheIdx must flush
	// dirty data to memory before reuse.
	WritebackRequired(cacheIdx int) bool

	// IsShared classifies cacheIdx as a shared or private access, for the
	// private/shared data-access counters.
	IsShared(cacheIdx int, addr uint32) bool

	// Invalidate clears cacheIdx's coherence state, e.g. once a flush has
	// vacated the slot for reuse by a different tag.
	Invalidate(cacheIdx int)

	// Snarf offers cacheIdx (an empty slot in this core's own cache) the
	// chance to opportunistically pick up a line another core is
	// broadcasting, without having requested it. Returns whether it did;
	// the caller (Cache) only installs the tag into cacheIdx when true.
	// MESI's optional read-broadcast variant is the only protocol that
	// ever returns true here; Dragon always declines.
	Snarf(cacheIdx int) bool

	// LineState reports cacheIdx's current coherence state as a short
	// label ("M", "E", "S"/"Sc"/"Sm", "I"), for the --strict cross-core
	// invariant checks in system.go.
	LineState(cacheIdx int) string

	// Name identifies the protocol for reporting purposes ("MESI" or
	// "Dragon").
	Name() string
}

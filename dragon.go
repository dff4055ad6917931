package coherence

// dragonState is one line's coherence state under Dragon. Dragon has no
// explicit invalid state: a line's mere absence from Cache's tag array
// means "not cached here." Cache only ever calls Dragon methods with a
// cacheIdx it has already confirmed holds addr's tag.
type dragonState uint8

const (
	dragonExclusive dragonState = iota // E: clean, sole copy
	dragonSharedClean                  // Sc: clean, shared
	dragonSharedModified                // Sm: dirty, shared, owner of the data
	dragonModified                     // M: dirty, sole copy
)

func (s dragonState) String() string {
	switch s {
	case dragonSharedClean:
		return "Sc"
	case dragonSharedModified:
		return "Sm"
	case dragonModified:
		return "M"
	default:
		return "E"
	}
}

// Dragon implements the four-state update protocol (spec.md §4.3.2): reads
// that hit an existing copy anywhere are serviced cache-to-cache; writes
// to a shared line broadcast just the written word via BusUpd rather than
// invalidating peers.
//
// Write-allocate at the Cache level means a write miss never reaches
// Protocol.Write directly: Cache always synthesizes a Read first, which
// resolves the line to E (no other cache holds it) or Sc (one does); the
// immediately-following synthesized Write then runs through the ordinary
// hit table below. This is the resolution of the "Dragon cold write"
// open question recorded in DESIGN.md — there is no separate cold-write
// code path, because by the time Dragon ever sees a Write, write-allocate
// has already guaranteed a hit.
type Dragon struct {
	selfID    int
	blockSize int
	states    []dragonState
}

// NewDragon constructs a Dragon protocol instance for one core, sized for
// numLines flat slots.
func NewDragon(selfID, numLines, blockSize int) *Dragon {
	return &Dragon{selfID: selfID, blockSize: blockSize, states: make([]dragonState, numLines)}
}

func (d *Dragon) Name() string { return "Dragon" }

func (d *Dragon) Read(cacheIdx, storeIdx int, addr uint32, hit, busOccupied bool) *BusAction {
	if hit {
		// Any read hit leaves state untouched regardless of E/Sc/Sm/M.
		return nil
	}
	action := BusAction{Kind: BusRdMem, Addr: addr, Bytes: d.blockSize}
	if busOccupied {
		return &action
	}
	// Optimistic E; AfterSnoop downgrades to Sc if a snooper reacted.
	d.states[storeIdx] = dragonExclusive
	return &action
}

func (d *Dragon) Write(cacheIdx, storeIdx int, addr uint32, hit, busOccupied bool) *BusAction {
	if !hit {
		// Defensive fallback; see the write-allocate note on Dragon above.
		action := BusAction{Kind: BusRdMem, Addr: addr, Bytes: d.blockSize}
		if busOccupied {
			return &action
		}
		d.states[storeIdx] = dragonExclusive
		return &action
	}
	switch d.states[cacheIdx] {
	case dragonExclusive, dragonModified:
		d.states[cacheIdx] = dragonModified
		return nil
	case dragonSharedClean, dragonSharedModified:
		action := BusAction{Kind: BusUpdMem, Addr: addr, Bytes: wordSize}
		if busOccupied {
			return &action
		}
		// Optimistic Sm; AfterSnoop settles to M and cancels the update
		// if no other cache actually shares the line.
		d.states[cacheIdx] = dragonSharedModified
		return &action
	default:
		panic(&InvariantError{Msg: "Dragon.Write: hit reported against an unrecognized state"})
	}
}

func (d *Dragon) Snoop(cacheIdx int, bus *Bus) *Task {
	task := bus.ActiveTask()
	if task == nil || task.IssuerID == d.selfID {
		return nil
	}
	switch task.Action.Kind {
	case BusRdMem:
		switch d.states[cacheIdx] {
		case dragonModified:
			d.states[cacheIdx] = dragonSharedModified
		case dragonExclusive:
			d.states[cacheIdx] = dragonSharedClean
		}
		rewritten := *task
		rewritten.Action.Kind = BusRdShared
		rewritten.RemainingCycles = price(rewritten.Action)
		rewritten.SawSharer = true
		return &rewritten
	case BusUpdMem:
		if d.states[cacheIdx] == dragonSharedModified {
			d.states[cacheIdx] = dragonSharedClean
		}
		// We have the line cached and the issuer's transaction is
		// memory-class: rewrite to the shared variant and re-price, the
		// same way a BusRdMem holder does above.
		rewritten := *task
		rewritten.Action.Kind = BusUpdShared
		rewritten.RemainingCycles = price(rewritten.Action)
		rewritten.SawSharer = true
		return &rewritten
	default:
		return nil
	}
}

func (d *Dragon) AfterSnoop(cacheIdx int, bus *Bus) {
	task := bus.ActiveTask()
	if task == nil || task.IssuerID != d.selfID {
		return
	}
	switch task.Action.Kind {
	case BusRdShared:
		if task.SawSharer && d.states[cacheIdx] == dragonExclusive {
			d.states[cacheIdx] = dragonSharedClean
		}
	case BusUpdMem:
		// No holder rewrote this broadcast: nobody else shares the line,
		// so the optimistic Sm set at issue was wrong — settle at M and
		// cancel the now-unneeded bus update.
		d.states[cacheIdx] = dragonModified
		bus.Clear()
	case BusUpdShared:
		// A holder confirmed it still shares the line.
		d.states[cacheIdx] = dragonSharedModified
	}
}

func (d *Dragon) WritebackRequired(cacheIdx int) bool {
	s := d.states[cacheIdx]
	return s == dragonModified || s == dragonSharedModified
}

func (d *Dragon) IsShared(cacheIdx int, addr uint32) bool {
	s := d.states[cacheIdx]
	return s == dragonSharedClean || s == dragonSharedModified
}

func (d *Dragon) Invalidate(cacheIdx int) {
	d.states[cacheIdx] = dragonExclusive
}

// Snarf always declines: read-broadcast is a MESI-only optional variant
// (internal/config rejects the combination with Dragon outright).
func (d *Dragon) Snarf(int) bool { return false }

// LineState reports cacheIdx's current Dragon state label.
func (d *Dragon) LineState(cacheIdx int) string { return d.states[cacheIdx].String() }

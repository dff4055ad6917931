package coherence

// mesiState is one line's coherence state under MESI.
type mesiState uint8

const (
	mesiInvalid mesiState = iota
	mesiShared
	mesiExclusive
	mesiModified
)

func (s mesiState) String() string {
	switch s {
	case mesiShared:
		return "S"
	case mesiExclusive:
		return "E"
	case mesiModified:
		return "M"
	default:
		return "I"
	}
}

// MESI implements the classic four-state illinois-free protocol (spec.md
// §4.3.1): read misses always go to the bus as BusRdMem/BusRdXMem; a
// holder snooping a BusRdMem always downgrades to Shared and rewrites
// the task to BusRdShared so the issuer settles there too. readBroadcast
// only gates the separate, optional Snarf behavior: a core holding
// nothing for that line opportunistically taking a copy it never asked
// for.
type MESI struct {
	selfID        int
	blockSize     int
	readBroadcast bool
	states        []mesiState
}

// NewMESI constructs a MESI protocol instance for one core, sized for
// numLines flat slots.
func NewMESI(selfID, numLines, blockSize int, readBroadcast bool) *MESI {
	return &MESI{
		selfID:        selfID,
		blockSize:     blockSize,
		readBroadcast: readBroadcast,
		states:        make([]mesiState, numLines),
	}
}

func (m *MESI) Name() string { return "MESI" }

func (m *MESI) Read(cacheIdx, storeIdx int, addr uint32, hit, busOccupied bool) *BusAction {
	if hit {
		// M,R->M ; E,R->E ; S,R->S: a hit never touches the bus.
		return nil
	}
	action := BusAction{Kind: BusRdMem, Addr: addr, Bytes: m.blockSize}
	if busOccupied {
		return &action
	}
	m.states[storeIdx] = mesiExclusive
	return &action
}

func (m *MESI) Write(cacheIdx, storeIdx int, addr uint32, hit, busOccupied bool) *BusAction {
	if hit {
		switch m.states[cacheIdx] {
		case mesiModified, mesiExclusive:
			m.states[cacheIdx] = mesiModified
			return nil
		case mesiShared:
			action := BusAction{Kind: BusRdXMem, Addr: addr, Bytes: m.blockSize}
			if busOccupied {
				return &action
			}
			m.states[cacheIdx] = mesiModified
			return &action
		default:
			panic(&InvariantError{Msg: "MESI.Write: hit reported against an invalid line"})
		}
	}
	// Write-allocate means Cache always resolves a write miss into a Read
	// followed by a Write; this path only exists as a defensive fallback.
	action := BusAction{Kind: BusRdXMem, Addr: addr, Bytes: m.blockSize}
	if busOccupied {
		return &action
	}
	m.states[storeIdx] = mesiModified
	return &action
}

func (m *MESI) Snoop(cacheIdx int, bus *Bus) *Task {
	task := bus.ActiveTask()
	if task == nil || task.IssuerID == m.selfID {
		return nil
	}
	cur := m.states[cacheIdx]
	if cur == mesiInvalid {
		return nil
	}
	switch task.Action.Kind {
	case BusRdMem:
		// Another core is reading a line we hold: downgrade to Shared and
		// tell the issuer via a rewritten, re-priced transaction — this is
		// mandatory, not part of the optional read-broadcast variant; skip
		// it and two cores can both end up holding the line exclusively.
		m.states[cacheIdx] = mesiShared
		rewritten := *task
		rewritten.Action.Kind = BusRdShared
		if cur == mesiModified {
			// M must flush its dirty data before the transfer completes.
			rewritten.RemainingCycles = memPrice
		} else {
			rewritten.RemainingCycles = price(rewritten.Action)
		}
		return &rewritten
	case BusRdXMem:
		// Another core wants exclusive ownership: we must invalidate,
		// flushing first if we were dirty.
		m.states[cacheIdx] = mesiInvalid
		if cur == mesiModified {
			rewritten := *task
			rewritten.Action.Kind = BusRdXShared
			rewritten.RemainingCycles = memPrice
			return &rewritten
		}
		return nil
	default:
		return nil
	}
}

func (m *MESI) AfterSnoop(cacheIdx int, bus *Bus) {
	task := bus.ActiveTask()
	if task == nil || task.IssuerID != m.selfID {
		return
	}
	if task.Action.Kind == BusRdShared {
		// We observed our own read get rewritten to a cache-to-cache
		// transfer: some other core held the line, so we settle at S
		// rather than the optimistic E set at issue time.
		if m.states[cacheIdx] == mesiExclusive {
			m.states[cacheIdx] = mesiShared
		}
	}
}

func (m *MESI) WritebackRequired(cacheIdx int) bool {
	return m.states[cacheIdx] == mesiModified
}

func (m *MESI) IsShared(cacheIdx int, addr uint32) bool {
	return m.states[cacheIdx] == mesiShared
}

func (m *MESI) Invalidate(cacheIdx int) {
	m.states[cacheIdx] = mesiInvalid
}

// Snarf implements the optional read-broadcast variant (spec.md §4.3.1's
// last paragraph): an Invalid line may opportunistically pick up a copy
// of another core's full-block BusRdMem/BusRdShared as Shared. Declines
// when the feature is off.
func (m *MESI) Snarf(cacheIdx int) bool {
	if !m.readBroadcast {
		return false
	}
	m.states[cacheIdx] = mesiShared
	return true
}

// LineState reports cacheIdx's current MESI state label.
func (m *MESI) LineState(cacheIdx int) string { return m.states[cacheIdx].String() }

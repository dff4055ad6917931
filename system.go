package coherence

import (
	"fmt"
	"math/rand"
)

// System orchestrates the whole simulation: the shared Bus plus every
// Core, stepped cycle by cycle through the four strictly ordered phases
// of spec.md §4.6 — bus tick, randomized processor phase, fixed-order
// snoop, fixed-order after-snoop.
type System struct {
	bus    *Bus
	cores  []*Core
	active []int
	rng    *rand.Rand
	clk    uint64

	lastStats *SystemStats // previous CheckInvariants call, for monotonicity
}

// NewSystem constructs a system over cores, tied together by a fresh Bus.
// seed controls the per-cycle processor-order shuffle; callers that need
// reproducible runs should fix it (e.g. from a CLI flag), and tests
// should too.
func NewSystem(cores []*Core, seed int64) *System {
	active := make([]int, len(cores))
	for i := range cores {
		active[i] = i
	}
	return &System{
		bus:    NewBus(),
		cores:  cores,
		active: active,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Bus returns the shared bus, mostly for tests and the event log.
func (s *System) Bus() *Bus { return s.bus }

// Clock returns the current cycle count.
func (s *System) Clock() uint64 { return s.clk }

// Update advances the whole system by exactly one cycle and reports
// whether every core has drained its trace and settled (termination).
func (s *System) Update() bool {
	s.clk++
	s.bus.Update()

	s.rng.Shuffle(len(s.active), func(i, j int) {
		s.active[i], s.active[j] = s.active[j], s.active[i]
	})

	remaining := s.active[:0]
	for _, id := range s.active {
		if s.cores[id].Step(s.bus, s.clk) {
			remaining = append(remaining, id)
		}
	}
	s.active = remaining

	for _, core := range s.cores {
		core.Snoop(s.bus)
	}
	for _, core := range s.cores {
		core.AfterSnoop(s.bus)
	}

	return len(s.active) == 0
}

// CheckInvariants runs every sanity check named in spec.md §8's invariant
// list, for the --strict CLI mode. Panicking invariants inside
// Cache/Protocol catch the rest as they occur; this method covers the
// ones that only make sense looked at cross-core or across cycles.
func (s *System) CheckInvariants() error {
	// Bus: at most one active task (structurally guaranteed by Bus's
	// single-task design and PutOn's panic-on-already-occupied), with a
	// non-negative countdown.
	if t := s.bus.ActiveTask(); t != nil && t.RemainingCycles < 0 {
		return &InvariantError{Msg: "bus task has negative remaining cycles"}
	}

	modified := map[uint32]int{}       // MESI-M or Dragon-M holders, per block
	sharedModified := map[uint32]int{} // Dragon-Sm holders, per block
	for _, c := range s.cores {
		if c.cache.PendingLen() > pendingBound {
			return &InvariantError{Msg: "a core's pending queue exceeded its bound"}
		}
		for _, line := range c.cache.Snapshot() {
			// A resident, valid line must carry a real coherence state —
			// "I" only means anything for MESI, and only ever appears
			// here if a slot was left stale after eviction.
			if line.State == "I" {
				return &InvariantError{Msg: fmt.Sprintf("cache holds valid tag for block %#x with Invalid protocol state", line.Addr)}
			}
			switch line.State {
			case "M":
				modified[line.Addr]++
			case "Sm":
				sharedModified[line.Addr]++
			}
		}
	}
	for addr, n := range modified {
		if n > 1 {
			return &InvariantError{Msg: fmt.Sprintf("block %#x held Modified by %d cores at once", addr, n)}
		}
	}
	for addr, n := range sharedModified {
		if n > 1 {
			return &InvariantError{Msg: fmt.Sprintf("block %#x held Dragon Shared-Modified by %d cores at once", addr, n)}
		}
	}

	return s.checkMonotonic()
}

// checkMonotonic compares this cycle's counters against the previous
// CheckInvariants call's snapshot, failing if any went backwards.
func (s *System) checkMonotonic() error {
	cur := s.Stats()
	if s.lastStats != nil {
		prev := s.lastStats
		if cur.ExecCycles < prev.ExecCycles ||
			cur.BusTraffic < prev.BusTraffic ||
			cur.BusNumInvalidOrUpd < prev.BusNumInvalidOrUpd ||
			cur.NumPrivateDataAccess < prev.NumPrivateDataAccess ||
			cur.NumSharedDataAccess < prev.NumSharedDataAccess {
			return &InvariantError{Msg: "a system-wide counter decreased between cycles"}
		}
		for i := range cur.PerCore {
			p, c := prev.PerCore[i], cur.PerCore[i]
			if c.ComputeCycles < p.ComputeCycles ||
				c.MemOps < p.MemOps ||
				c.IdleCycles < p.IdleCycles ||
				c.NumInstructions < p.NumInstructions ||
				c.LoadInstructions < p.LoadInstructions ||
				c.StoreInstructions < p.StoreInstructions ||
				c.CacheHits < p.CacheHits ||
				c.CacheMisses < p.CacheMisses {
				return &InvariantError{Msg: fmt.Sprintf("core %d: a counter decreased between cycles", i)}
			}
		}
	}
	s.lastStats = &cur
	return nil
}

// Stats snapshots the system-wide and per-core counters. Only meaningful
// once the run has terminated.
func (s *System) Stats() SystemStats {
	st := SystemStats{
		ExecCycles:         s.clk,
		BusTraffic:         s.bus.Traffic(),
		BusNumInvalidOrUpd: s.bus.NumInvalidOrUpd(),
		PerCore:            make([]CoreStats, len(s.cores)),
	}
	for i, c := range s.cores {
		st.PerCore[i] = c.Stats()
		st.NumPrivateDataAccess += c.cache.PrivateAccesses()
		st.NumSharedDataAccess += c.cache.SharedAccesses()
	}
	return st
}

// Run steps the system until every core's trace drains, or maxCycles is
// exceeded — a safety net against a trace that never terminates.
// maxCycles of 0 disables the bound. When strict is true,
// CheckInvariants runs after every cycle.
func (s *System) Run(maxCycles uint64, strict bool) (SystemStats, error) {
	for {
		done := s.Update()
		if strict {
			if err := s.CheckInvariants(); err != nil {
				return SystemStats{}, err
			}
		}
		if done {
			return s.Stats(), nil
		}
		if maxCycles > 0 && s.clk >= maxCycles {
			return SystemStats{}, &InvariantError{Msg: "simulation exceeded its configured cycle budget without terminating"}
		}
	}
}

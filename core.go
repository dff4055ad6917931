package coherence

// RecordKind identifies a trace record's instruction class (spec.md §6).
type RecordKind int

const (
	RecordLoad RecordKind = iota
	RecordStore
	RecordOther
)

// Record is one entry from a core's trace: a Load/Store carries an
// address; an Other carries a cycle count to burn on the ALU.
type Record struct {
	Kind   RecordKind
	Addr   uint32
	Cycles int
}

// RecordStream yields a core's trace one record at a time. SliceStream
// implements this over a per-core record slice as decoded by
// internal/trace.
type RecordStream interface {
	Next() (Record, bool)
}

// SliceStream is a RecordStream over an in-memory slice, the production
// form of a decoded trace member (internal/trace decodes a whole ZIP
// member into a slice up front, rather than streaming off the archive
// reader one record at a time).
type SliceStream struct {
	records []Record
	pos     int
}

// NewSliceStream wraps records as a RecordStream.
func NewSliceStream(records []Record) *SliceStream {
	return &SliceStream{records: records}
}

// Next returns the next record, or false once exhausted.
func (s *SliceStream) Next() (Record, bool) {
	if s.pos >= len(s.records) {
		return Record{}, false
	}
	r := s.records[s.pos]
	s.pos++
	return r, true
}

// Core drives one processor against its own Cache: an ALU countdown for
// compute-only records, and a cache dispatch loop for Load/Store records
// (spec.md §4.5).
type Core struct {
	id     int
	cache  *Cache
	stream RecordStream

	aluRemaining int
	exhausted    bool

	stats CoreStats
}

// NewCore constructs a core reading from stream and backed by cache.
func NewCore(id int, cache *Cache, stream RecordStream) *Core {
	return &Core{id: id, cache: cache, stream: stream}
}

// ID returns this core's fixed identifier, used for bus issuer tracking
// and the system's fixed snoop/after-snoop ordering.
func (c *Core) ID() int { return c.id }

// Step advances this core by one cycle and reports whether it remains
// active (has more work, including an in-flight transaction it issued).
// A core only goes inactive once its trace is exhausted and its cache is
// fully idle.
//
// On the cycle a core's own bus transaction retires, the cache's Update
// only settles it; a record pulled that same cycle is still dispatched by
// the free tick below. See DESIGN.md for how this matches the worked
// examples.
func (c *Core) Step(bus *Bus, clk uint64) bool {
	if c.aluRemaining > 0 {
		c.aluRemaining--
		return true
	}

	if stalled := c.cache.Update(bus); stalled {
		c.stats.IdleCycles++
		return true
	}

	pulledNew := false
	if !c.exhausted {
		if rec, ok := c.stream.Next(); ok {
			c.dispatch(rec)
			pulledNew = true
		} else {
			c.exhausted = true
		}
	}

	// Give the cache one free tick this cycle so a just-pulled record can
	// complete without waiting an extra cycle.
	if pulledNew {
		c.cache.Update(bus)
	}

	if c.exhausted && c.cache.Idle() {
		return false
	}
	return true
}

func (c *Core) dispatch(rec Record) {
	c.stats.NumInstructions++
	switch rec.Kind {
	case RecordLoad:
		c.stats.MemOps++
		c.stats.LoadInstructions++
		c.cache.Load(rec.Addr)
	case RecordStore:
		c.stats.MemOps++
		c.stats.StoreInstructions++
		c.cache.Store(rec.Addr)
	case RecordOther:
		c.stats.ComputeCycles += uint64(rec.Cycles)
		c.aluRemaining = rec.Cycles
	}
}

// Snoop lets this core's cache react to the bus's current transaction.
func (c *Core) Snoop(bus *Bus) { c.cache.Snoop(bus) }

// AfterSnoop lets this core's cache reconcile its own state once all
// cores have snooped this cycle.
func (c *Core) AfterSnoop(bus *Bus) { c.cache.AfterSnoop(bus) }

// Stats returns this core's accumulated counters, filling in the cache's
// hit/miss tallies.
func (c *Core) Stats() CoreStats {
	s := c.stats
	s.CacheHits = c.cache.Hits()
	s.CacheMisses = c.cache.Misses()
	return s
}

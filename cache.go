package coherence

// opKind distinguishes the two instruction kinds a Core can enqueue.
type opKind int

const (
	opLoad opKind = iota
	opStore
)

type pendingOp struct {
	addr uint32
	kind opKind
}

// pendingBound is the maximum number of entries the pending-instruction
// queue may hold at once (spec.md §9: resolved as "< 3", i.e. at most 2).
const pendingBound = 2

// Cache is one core's private write-allocate, set-associative cache: a
// flat tag array addressed via AddressLayout, LRU replacement via a
// monotonic access clock, a bounded pending-instruction queue, and a
// Protocol instance holding this core's coherence state.
type Cache struct {
	selfID    int
	layout    AddressLayout
	blockSize int
	assoc     int

	tags  []uint32
	valid []bool
	lru   []uint64
	clock uint64

	protocol Protocol

	pending       []pendingOp
	ownTxnActive  bool
	ownTxnIdx     int
	ownTxnIsFlush bool

	hits, misses                uint64
	privateAccess, sharedAccess uint64
}

// NewCache constructs a cache of the given geometry for core selfID,
// delegating coherence decisions to protocol.
func NewCache(selfID int, layout AddressLayout, blockSize int, protocol Protocol) *Cache {
	numLines := layout.NumSets() * layout.Associativity()
	return &Cache{
		selfID:    selfID,
		layout:    layout,
		blockSize: blockSize,
		assoc:     layout.Associativity(),
		tags:      make([]uint32, numLines),
		valid:     make([]bool, numLines),
		lru:       make([]uint64, numLines),
		protocol:  protocol,
	}
}

// Load enqueues a processor load for later dispatch by Update.
func (c *Cache) Load(addr uint32) {
	if len(c.pending) >= pendingBound {
		panic(&InvariantError{Msg: "cache pending queue exceeded its bound"})
	}
	c.pending = append(c.pending, pendingOp{addr: addr, kind: opLoad})
}

// Store enqueues a processor store for later dispatch by Update.
func (c *Cache) Store(addr uint32) {
	if len(c.pending) >= pendingBound {
		panic(&InvariantError{Msg: "cache pending queue exceeded its bound"})
	}
	c.pending = append(c.pending, pendingOp{addr: addr, kind: opStore})
}

// HasOwnTxn reports whether the cache believes it currently has an
// outstanding bus transaction it issued. It stays true until the Update
// call that notices the transaction has retired.
func (c *Cache) HasOwnTxn() bool { return c.ownTxnActive }

// Idle reports whether the cache has no pending work at all: an empty
// queue and no outstanding transaction. A core may only go inactive once
// its trace is exhausted and its cache is Idle.
func (c *Cache) Idle() bool { return len(c.pending) == 0 && !c.ownTxnActive }

// PendingLen reports the current pending-queue depth, for tests and
// invariant checks.
func (c *Cache) PendingLen() int { return len(c.pending) }

// Update advances the cache by one cycle. Returns true if it could not
// retire any work this cycle (waiting on its own bus transaction, or a
// dispatch attempt that had to be retried), which Core uses to drive
// idle_cycles.
func (c *Cache) Update(bus *Bus) bool {
	if c.ownTxnActive {
		t := bus.ActiveTask()
		if t != nil && t.IssuerID == c.selfID {
			return true
		}
		// Our transaction just retired. This call only settles the
		// transition; it attempts no new dispatch.
		c.ownTxnActive = false
		if !c.ownTxnIsFlush {
			c.classify(c.ownTxnIdx, c.layout.Rebuild(c.tags[c.ownTxnIdx], c.ownTxnIdx/c.assoc))
		}
		return false
	}
	if len(c.pending) == 0 {
		return false
	}
	op := c.pending[0]
	c.pending = c.pending[1:]
	var ok bool
	switch op.kind {
	case opLoad:
		ok = c.internalLoad(op.addr, bus)
	default:
		ok = c.internalStore(op.addr, bus)
	}
	if ok {
		return false
	}
	switch op.kind {
	case opLoad:
		c.pending = append([]pendingOp{op}, c.pending...)
	default:
		c.pending = append(c.pending, op)
	}
	return true
}

// lookup searches addr's set for a valid matching tag. Returns the flat
// index and true on hit, or noLine and false on miss.
func (c *Cache) lookup(addr uint32) (int, bool) {
	set := c.layout.Index(addr)
	tag := c.layout.Tag(addr)
	for way := 0; way < c.assoc; way++ {
		idx := c.layout.FlatIndex(set, way)
		if c.valid[idx] && c.tags[idx] == tag {
			return idx, true
		}
	}
	return noLine, false
}

// victim picks the LRU way in addr's set, returning its flat index and
// whether that slot currently holds a valid (occupied) line.
func (c *Cache) victim(addr uint32) (int, bool) {
	set := c.layout.Index(addr)
	best := c.layout.FlatIndex(set, 0)
	for way := 1; way < c.assoc; way++ {
		idx := c.layout.FlatIndex(set, way)
		if c.lru[idx] < c.lru[best] {
			best = idx
		}
	}
	return best, c.valid[best]
}

func (c *Cache) touch(idx int) {
	c.clock++
	c.lru[idx] = c.clock
}

func (c *Cache) classify(idx int, addr uint32) {
	if c.protocol.IsShared(idx, addr) {
		c.sharedAccess++
	} else {
		c.privateAccess++
	}
}

// internalLoad dispatches one processor load. Returns false when the
// attempt must be retried next cycle (eviction writeback or the read
// itself blocked on a busy bus), true once the line is resident and the
// coherence state committed (the underlying bus transfer, if any, may
// still be draining).
func (c *Cache) internalLoad(addr uint32, bus *Bus) bool {
	idx, hit := c.lookup(addr)
	storeIdx, occupied := c.victim(addr)

	if !hit && occupied && c.protocol.WritebackRequired(storeIdx) {
		if bus.Occupied() {
			return false
		}
		evictedAddr := c.layout.Rebuild(c.tags[storeIdx], storeIdx/c.assoc)
		bus.PutOn(c.selfID, BusAction{Kind: Flush, Addr: evictedAddr, Bytes: c.blockSize})
		c.ownTxnActive = true
		c.ownTxnIdx = storeIdx
		c.ownTxnIsFlush = true
		c.protocol.Invalidate(storeIdx)
		c.valid[storeIdx] = false
		c.lru[storeIdx] = 0
		return false
	}

	action := c.protocol.Read(idx, storeIdx, addr, hit, bus.Occupied())
	if action != nil {
		if bus.Occupied() {
			return false
		}
		bus.PutOn(c.selfID, *action)
		c.ownTxnActive = true
		c.ownTxnIsFlush = false
	}

	if hit {
		c.touch(idx)
		c.hits++
		if action == nil {
			c.classify(idx, addr)
		}
		c.ownTxnIdx = idx
	} else {
		c.tags[storeIdx] = c.layout.Tag(addr)
		c.valid[storeIdx] = true
		c.touch(storeIdx)
		c.misses++
		c.ownTxnIdx = storeIdx
	}
	return true
}

// internalStore dispatches one processor store. Write-allocate: a miss
// enqueues a Read ahead of this store and retries, rather than handling
// the miss itself.
func (c *Cache) internalStore(addr uint32, bus *Bus) bool {
	idx, hit := c.lookup(addr)
	if !hit {
		c.pending = append([]pendingOp{{addr: addr, kind: opLoad}}, c.pending...)
		return false
	}

	action := c.protocol.Write(idx, idx, addr, hit, bus.Occupied())
	if action != nil {
		if bus.Occupied() {
			return false
		}
		bus.PutOn(c.selfID, *action)
		c.ownTxnActive = true
		c.ownTxnIsFlush = false
	}

	c.ownTxnIdx = idx
	c.touch(idx)
	if action == nil {
		c.classify(idx, addr)
	}
	return true
}

// Snoop lets this cache react to the bus's current transaction, if any,
// provided this core isn't the issuer and this cache holds a copy of the
// address involved.
func (c *Cache) Snoop(bus *Bus) {
	task := bus.ActiveTask()
	if task == nil || task.IssuerID == c.selfID {
		return
	}
	idx, hit := c.lookup(task.Action.Addr)
	if !hit {
		return
	}
	if rewritten := c.protocol.Snoop(idx, bus); rewritten != nil {
		bus.Overwrite(rewritten)
	}
	// A snoop that invalidated the line (MESI) also vacates the slot, so
	// later lookups miss instead of hitting an Invalid line.
	if c.protocol.LineState(idx) == "I" {
		c.valid[idx] = false
	}
}

// AfterSnoop lets the issuing core reconcile its own state now that all
// snoopers have reacted to the bus this cycle. Non-issuing cores instead
// get a chance to snarf the line (MESI's optional read-broadcast variant,
// spec.md §4.3.1's last paragraph): a core holding nothing for this
// address may opportunistically take a copy of a full-block read it
// never requested.
func (c *Cache) AfterSnoop(bus *Bus) {
	task := bus.ActiveTask()
	if task == nil {
		return
	}
	if task.IssuerID == c.selfID {
		c.protocol.AfterSnoop(c.ownTxnIdx, bus)
		return
	}
	c.trySnarf(task)
}

// trySnarf opportunistically allocates task's line into an empty slot in
// this cache, if the protocol accepts it. No-op unless the transaction
// is a full-block memory read, this cache has no copy of the address
// already, and its victim slot is currently unoccupied.
func (c *Cache) trySnarf(task *Task) {
	if task.Action.Bytes != c.blockSize {
		return
	}
	switch task.Action.Kind {
	case BusRdMem, BusRdShared:
	default:
		return
	}
	if _, hit := c.lookup(task.Action.Addr); hit {
		return
	}
	idx, occupied := c.victim(task.Action.Addr)
	if occupied {
		return
	}
	if !c.protocol.Snarf(idx) {
		return
	}
	c.tags[idx] = c.layout.Tag(task.Action.Addr)
	c.valid[idx] = true
	c.touch(idx)
}

// LineSnapshot describes one resident line for cross-core invariant checks.
type LineSnapshot struct {
	Addr  uint32
	State string
}

// Snapshot returns every currently valid line, tag rebuilt back into its
// full address, alongside its protocol state label. Used by --strict's
// cross-core invariant checks (system.go); not on any hot path.
func (c *Cache) Snapshot() []LineSnapshot {
	var out []LineSnapshot
	for idx, valid := range c.valid {
		if !valid {
			continue
		}
		out = append(out, LineSnapshot{
			Addr:  c.layout.Rebuild(c.tags[idx], idx/c.assoc),
			State: c.protocol.LineState(idx),
		})
	}
	return out
}

func (c *Cache) Hits() uint64            { return c.hits }
func (c *Cache) Misses() uint64          { return c.misses }
func (c *Cache) PrivateAccesses() uint64 { return c.privateAccess }
func (c *Cache) SharedAccesses() uint64  { return c.sharedAccess }

package coherence

// CoreStats holds the per-core counters accumulated over a simulation
// run (spec.md §3).
type CoreStats struct {
	ComputeCycles     uint64
	MemOps            uint64
	IdleCycles        uint64
	NumInstructions   uint64
	LoadInstructions  uint64
	StoreInstructions uint64
	CacheHits         uint64
	CacheMisses       uint64
}

// SystemStats holds the counters accumulated across the whole bus/system
// (spec.md §3), plus the per-core snapshots that feed the original's
// per-core report breakdown (SPEC_FULL.md §D.3).
type SystemStats struct {
	ExecCycles           uint64
	BusTraffic           uint64
	BusNumInvalidOrUpd   uint64
	NumPrivateDataAccess uint64
	NumSharedDataAccess  uint64
	PerCore              []CoreStats
}

// Package coherence implements a cycle-accurate simulator of a shared-bus,
// multi-core cache hierarchy: N write-allocate set-associative caches, a
// single snooping bus, and a pluggable MESI/Dragon coherence protocol,
// stepped cycle by cycle until every core's trace is drained.
package coherence

import "math/bits"

// wordSize is the fixed transfer granularity assumed throughout the cache
// hierarchy; addresses are word-addressed for offset purposes.
const wordSize = 4

// AddressLayout splits a 32-bit address into tag, index, and offset fields
// for a fixed cache geometry, and maps (set, way) pairs to the flat index
// used by Cache and Protocol to address a line.
//
// Offset width is log2(blockSize/wordSize); index width is log2(numSets);
// tag width is whatever bits remain. A geometry with a single set (fully
// associative) has a zero-width index; a geometry with word-sized blocks
// has a zero-width offset.
type AddressLayout struct {
	assoc     int
	offsetLen uint
	indexLen  uint
	tagLen    uint
}

// NewAddressLayout derives a layout from cache geometry in bytes. cacheSize,
// associativity, and blockSize must already be validated as powers of two
// by the caller (see internal/config).
func NewAddressLayout(cacheSize, associativity, blockSize int) AddressLayout {
	numSets := cacheSize / (associativity * blockSize)
	offsetLen := log2(blockSize / wordSize)
	indexLen := log2(numSets)
	tagLen := uint(32) - indexLen - offsetLen
	return AddressLayout{
		assoc:     associativity,
		offsetLen: offsetLen,
		indexLen:  indexLen,
		tagLen:    tagLen,
	}
}

// log2 returns floor(log2(n)) for a power-of-two n, and 0 for n<=1.
func log2(n int) uint {
	if n <= 1 {
		return 0
	}
	return uint(bits.Len(uint(n)) - 1)
}

// Tag returns the tag field of addr. Returns 0 when the geometry leaves no
// tag bits (avoids an undefined 32-bit shift).
func (l AddressLayout) Tag(addr uint32) uint32 {
	if l.tagLen == 0 {
		return 0
	}
	shift := l.indexLen + l.offsetLen
	if shift >= 32 {
		return 0
	}
	return addr >> shift
}

// Index returns the set index field of addr. Returns 0 for a single-set
// (fully associative) geometry.
func (l AddressLayout) Index(addr uint32) int {
	if l.indexLen == 0 {
		return 0
	}
	mask := uint32(1)<<l.indexLen - 1
	return int((addr >> l.offsetLen) & mask)
}

// Rebuild reconstructs an address from a tag and a set index, used when
// reporting the address of a line being evicted.
func (l AddressLayout) Rebuild(tag uint32, set int) uint32 {
	return (tag << (l.indexLen + l.offsetLen)) | (uint32(set) << l.offsetLen)
}

// FlatIndex maps a (set, way) pair to the flat slot index used by Cache's
// tag array and Protocol's per-line state array.
func (l AddressLayout) FlatIndex(set, way int) int {
	return set*l.assoc + way
}

// NumSets returns the number of sets in this geometry.
func (l AddressLayout) NumSets() int {
	return 1 << l.indexLen
}

// Associativity returns the ways per set.
func (l AddressLayout) Associativity() int {
	return l.assoc
}

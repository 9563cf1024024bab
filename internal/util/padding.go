package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs.
const CacheLineSize = 64

// PaddedAtomicUint64 is an atomic uint64 padded to one cache line.
// Region event counters are bumped by every producer goroutine; padding
// keeps them off the line holding the channel header.
type PaddedAtomicUint64 struct {
	_ [CacheLineSize]byte
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

var _ [2*CacheLineSize - int(unsafe.Sizeof(PaddedAtomicUint64{}))]byte

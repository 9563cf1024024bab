package util

import (
	"math/bits"
	"runtime"
)

// IsPowerOfTwo reports whether x is a power of two (> 0).
func IsPowerOfTwo(x uint64) bool {
	return x != 0 && x&(x-1) == 0
}

// NextPow2 returns the smallest power of two >= x, with NextPow2(0) == 1.
// Results that do not fit in 64 bits clamp to 1<<63.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	n := bits.Len64(x - 1)
	if n >= 64 {
		return 1 << 63
	}
	return 1 << n
}

// ReasonableStripeCount picks a lock-stripe count from CPU parallelism:
// nextPow2(8*GOMAXPROCS), clamped to [16..1024]. Path locks are held only
// for the span of a refcount update, so a generous count is cheap.
func ReasonableStripeCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 8)))
	return min(max(n, 16), 1024)
}

// StripeIndex maps a 64-bit hash to a stripe index.
// Uses a mask when stripes is a power of two, modulo otherwise.
func StripeIndex(hash uint64, stripes int) int {
	if stripes <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(stripes)) {
		return int(hash & uint64(stripes-1))
	}
	return int(hash % uint64(stripes))
}

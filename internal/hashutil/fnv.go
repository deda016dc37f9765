// Package hashutil provides the single hashing primitive shared by the
// event model and the shard router, so that an event's hash code and its
// routing destination are always computed the same way.
package hashutil

import "hash/fnv"

// FNV1a32 hashes s with 32-bit FNV-1a and folds the result into an int32.
//
// The fold is a plain reinterpretation of the bits (via uint32), not a
// modulus: callers that need a non-negative value should mask the sign bit
// themselves. Keeping the raw int32 lets hash ranges (internal/shardrouter)
// and event hash codes (internal/event) share exactly one code path, per
// spec.md §4.3's requirement that both use "the same function".
func FNV1a32(s string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int32(h.Sum32())
}

// NonNegative folds an FNV1a32 result into [0, math.MaxInt32].
func NonNegative(h int32) int32 {
	if h < 0 {
		if h == -h { // math.MinInt32, negation overflows
			return 0
		}
		return -h
	}
	return h
}

// Package chance holds the random draw source and the sampling helpers every
// randomized component shares.
package chance

import (
	"math/rand/v2"
	"time"
)

// Source is the draw source. *rand.Rand satisfies it; tests substitute a
// scripted source to pin individual draws.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// New returns a PCG-backed source. A zero seed is replaced by the clock.
func New(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Bucket pairs an outcome with its probability mass.
type Bucket[T any] struct {
	Value  T
	Weight float64
}

// Table is an ordered cumulative-weight table. Order matters: the first
// bucket whose running total exceeds the draw wins.
type Table[T any] []Bucket[T]

// Pick draws one value. If rounding leaves the draw past the last running
// total, the first bucket is returned.
func (t Table[T]) Pick(src Source) T {
	var zero T
	if len(t) == 0 {
		return zero
	}
	r := src.Float64()
	cumulative := 0.0
	for _, b := range t {
		cumulative += b.Weight
		if r < cumulative {
			return b.Value
		}
	}
	return t[0].Value
}

// Chance reports true with probability p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// IntBetween draws uniformly from [min, max] inclusive.
func IntBetween(src Source, min, max int) int {
	if max <= min {
		return min
	}
	return min + src.IntN(max-min+1)
}

// Choice picks one element. ok is false for an empty slice.
func Choice[T any](src Source, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[src.IntN(len(items))], true
}

// MustChoice picks one element of a non-empty slice.
func MustChoice[T any](src Source, items []T) T {
	v, ok := Choice(src, items)
	if !ok {
		panic("chance: choice from empty slice")
	}
	return v
}

// Sample draws up to count distinct elements without replacement using a
// partial Fisher-Yates shuffle over a copy of items.
func Sample[T any](src Source, items []T, count int) []T {
	n := len(items)
	if count > n {
		count = n
	}
	if count <= 0 {
		return nil
	}
	pool := make([]T, n)
	copy(pool, items)
	for i := 0; i < count; i++ {
		j := i + src.IntN(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:count]
}

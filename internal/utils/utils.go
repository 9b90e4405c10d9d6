package utils

import (
	"cmp"
	"iter"
	"math/rand/v2"
	"time"
)

func Set[T comparable](seq iter.Seq[T]) map[T]struct{} {
	m := make(map[T]struct{})
	for x := range seq {
		m[x] = struct{}{}
	}
	return m
}

func Keys[K comparable, V any](seq iter.Seq2[K, V]) iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range seq {
			if !yield(k) {
				return
			}
		}
	}
}

func Bound[T cmp.Ordered](value T, bounds [2]T) T {
	return min(max(value, min(bounds[0], bounds[1])), max(bounds[0], bounds[1]))
}

func Jitter(v time.Duration) time.Duration {
	nanos := rand.NormFloat64()*float64(v/4) + float64(v)
	if nanos <= 0 {
		nanos = 1
	}
	return time.Duration(nanos)
}

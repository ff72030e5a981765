// Copyright 2024 The rhmap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rhmap

import (
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// mixConst is the 64-bit fractional part of the golden ratio, used as the
// multiplier in the fallback avalanche mix.
const mixConst = 0x9E3779B97F4A7C15

// Hasher computes a 64-bit hash for a key of type K. Hashers, like
// equality predicates, are an external collaborator: rhmap does not
// prescribe their distribution beyond what mix (below) assumes.
type Hasher[K any] interface {
	Hash(key K) uint64
}

// HasherFunc adapts a plain function to a Hasher.
type HasherFunc[K any] func(K) uint64

func (f HasherFunc[K]) Hash(key K) uint64 { return f(key) }

// avalanching is a zero-cost marker interface: a Hasher that implements
// it promises its Hash output is already well distributed in the high
// bits, so the mixer can skip the multiply-xor step. Detected once, at
// Map construction, via a type assertion rather than a runtime flag.
type avalanching interface {
	Avalanching()
}

// mix applies the "mum" avalanche step: multiply h by a fixed 64-bit
// constant, take the full 128-bit product, and xor its two halves
// together. This spreads entropy from the low bits of a weak hash into
// the high bits, which is what bucketFromHash uses to address the ring.
func mix(h uint64) uint64 {
	hi, lo := bits.Mul64(h, mixConst)
	return hi ^ lo
}

// StringHasher hashes strings with xxhash, which avalanches well enough
// on its own that the mixer step is skipped.
type StringHasher struct{}

func (StringHasher) Hash(key string) uint64 { return xxhash.Sum64String(key) }
func (StringHasher) Avalanching()           {}

// BytesHasher hashes byte slices with xxhash.
type BytesHasher struct{}

func (BytesHasher) Hash(key []byte) uint64 { return xxhash.Sum64(key) }
func (BytesHasher) Avalanching()           {}

// Integer constrains the builtin integer kinds usable with IntHasher.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// IntHasher is the identity hash for integer keys. It does not declare
// itself avalanching: consecutive integer keys would otherwise collide
// on bucketFromHash, so the mixer is left to spread their bits.
type IntHasher[K Integer] struct{}

func (IntHasher[K]) Hash(key K) uint64 { return uint64(key) }

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

import "iter"

// Set stores unique keys of type K with the same dense-vector-plus-ring
// engine as Map, in "set mode": it is Map[K, struct{}] under a
// restricted API, the standard Go idiom for building a set atop a
// generic map (struct{} occupies no space in the dense vector).
type Set[K comparable] struct {
	m *Map[K, struct{}]
}

// NewSet constructs an empty Set using hasher to hash keys of type K.
func NewSet[K comparable](hasher Hasher[K], opts ...Option[K, struct{}]) *Set[K] {
	return &Set[K]{m: New[K, struct{}](hasher, opts...)}
}

// NewSetFromItems builds a Set from a literal slice of keys.
func NewSetFromItems[K comparable](hasher Hasher[K], items []K, opts ...Option[K, struct{}]) (*Set[K], error) {
	s := NewSet(hasher, opts...)
	if err := s.m.Reserve(uint64(len(items))); err != nil {
		return nil, err
	}
	for _, k := range items {
		if _, err := s.m.Insert(k, struct{}{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set[K]) Len() int             { return s.m.Len() }
func (s *Set[K]) IsEmpty() bool        { return s.m.IsEmpty() }
func (s *Set[K]) Contains(k K) bool    { return s.m.Contains(k) }
func (s *Set[K]) BucketCount() uint64  { return s.m.BucketCount() }
func (s *Set[K]) LoadFactor() float64  { return s.m.LoadFactor() }

// Insert adds k if not already present and reports whether it was added.
func (s *Set[K]) Insert(k K) (bool, error) {
	return s.m.Insert(k, struct{}{})
}

// Delete removes k and reports whether it was present.
func (s *Set[K]) Delete(k K) bool { return s.m.Delete(k) }

// Clear removes every key.
func (s *Set[K]) Clear() { s.m.Clear() }

// Rehash reallocates the ring to the smallest size satisfying
// bucket_count() * max_load_factor() >= max(n, size()).
func (s *Set[K]) Rehash(n uint64) error { return s.m.Rehash(n) }

// Reserve ensures the set can hold max(n, size()) entries without
// growing.
func (s *Set[K]) Reserve(n uint64) error { return s.m.Reserve(n) }

// Clone returns a deep copy sharing no storage with s.
func (s *Set[K]) Clone() *Set[K] { return &Set[K]{m: s.m.Clone()} }

// All returns an iter.Seq over keys in insertion order.
func (s *Set[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range s.m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// EqualSets reports whether a and b hold the same keys, order
// notwithstanding.
func EqualSets[K comparable](a, b *Set[K]) bool {
	return Equal(a.m, b.m, func(struct{}, struct{}) bool { return true })
}

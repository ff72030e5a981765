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
	"iter"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Map is an insertion-ordered hash table from keys of type K to values
// of type V, backed by a dense entry vector and a Robin Hood metadata
// ring. See the package doc for the design.
//
// A Map is NOT goroutine-safe. Concurrent read-only access from multiple
// goroutines is safe only as long as no goroutine is mutating the table;
// any call that can insert, erase, grow, or rehash requires exclusive
// access.
type Map[K comparable, V any] struct {
	ring    ring
	entries []entry[K, V]

	hasher      Hasher[K]
	avalanching bool
	equal       func(a, b K) bool

	maxLoadFactor float64
	alloc         Allocator[K, V]
	trace         *zerolog.Logger

	pendingReserve uint64
}

// New constructs an empty Map using hasher to hash keys of type K. The
// ring is not allocated until the first insert (or a call to Reserve).
func New[K comparable, V any](hasher Hasher[K], opts ...Option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		ring:          ring{shifts: initialShifts},
		hasher:        hasher,
		equal:         defaultEqual[K],
		maxLoadFactor: defaultMaxLoadFactor,
		alloc:         defaultAllocator[K, V]{},
	}
	if _, ok := hasher.(avalanching); ok {
		m.avalanching = true
	}
	for _, opt := range opts {
		opt.apply(m)
	}
	if m.pendingReserve > 0 {
		_ = m.Reserve(m.pendingReserve)
		m.pendingReserve = 0
	}
	return m
}

// NewFromPairs builds a Map from a literal slice of pairs, the Go
// analogue of constructing a hashed container from an initializer list.
// Later pairs with a duplicate key overwrite earlier ones.
func NewFromPairs[K comparable, V any](hasher Hasher[K], pairs []Pair[K, V], opts ...Option[K, V]) (*Map[K, V], error) {
	m := New(hasher, opts...)
	if err := m.Reserve(uint64(len(pairs))); err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if _, err := m.Set(p.Key, p.Value); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewFromSeq builds a Map by draining an iter.Seq2, the Go analogue of
// constructing a hashed container from an iterator range. Later pairs
// with a duplicate key overwrite earlier ones.
func NewFromSeq[K comparable, V any](hasher Hasher[K], seq iter.Seq2[K, V], opts ...Option[K, V]) (*Map[K, V], error) {
	m := New(hasher, opts...)
	var rangeErr error
	for k, v := range seq {
		if _, err := m.Set(k, v); err != nil {
			rangeErr = err
			break
		}
	}
	if rangeErr != nil {
		return nil, rangeErr
	}
	return m, nil
}

func defaultEqual[K comparable](a, b K) bool { return a == b }

func (m *Map[K, V]) logf(event string, fields map[string]any) {
	if m.trace == nil {
		return
	}
	e := m.trace.Debug().Str("event", event)
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg("rhmap")
}

// mixedHash runs hasher.Hash through the avalanche mixer unless the
// hasher has already declared itself avalanching.
func (m *Map[K, V]) mixedHash(k K) uint64 {
	h := m.hasher.Hash(k)
	if m.avalanching {
		return h
	}
	return mix(h)
}

func (m *Map[K, V]) maxBucketCapacity() uint64 {
	return uint64(float64(m.ring.bucketCount()) * m.maxLoadFactor)
}

// Len returns the number of entries currently stored.
func (m *Map[K, V]) Len() int { return len(m.entries) }

// IsEmpty reports whether the table holds no entries.
func (m *Map[K, V]) IsEmpty() bool { return len(m.entries) == 0 }

// MaxSize is the hard capacity ceiling imposed by the 32-bit value index
// stored in each bucket slot.
func (m *Map[K, V]) MaxSize() uint64 { return math.MaxUint32 }

// BucketCount returns the current ring length.
func (m *Map[K, V]) BucketCount() uint64 { return m.ring.bucketCount() }

// MaxBucketCount returns 2^32: one bucket per possible 32-bit value
// index, i.e. MaxSize entries at a load factor of 1.0. The value is fixed;
// it does not depend on the configured max_load_factor, and growth,
// Rehash and Reserve do not check ring sizes against it.
func (m *Map[K, V]) MaxBucketCount() uint64 {
	return uint64(1) << 32
}

// LoadFactor returns size()/bucket_count(), or 0 if the ring is
// unallocated.
func (m *Map[K, V]) LoadFactor() float64 {
	if m.ring.bucketCount() == 0 {
		return 0
	}
	return float64(len(m.entries)) / float64(m.ring.bucketCount())
}

// MaxLoadFactor returns the configured max_load_factor.
func (m *Map[K, V]) MaxLoadFactor() float64 { return m.maxLoadFactor }

// SetMaxLoadFactor changes the max_load_factor used by future growth
// decisions. It does not itself trigger a rehash.
func (m *Map[K, V]) SetMaxLoadFactor(f float64) { m.maxLoadFactor = f }

// HashFunction returns the Hasher the Map was constructed with.
func (m *Map[K, V]) HashFunction() Hasher[K] { return m.hasher }

// KeyEqual returns the equality predicate the Map was constructed with.
func (m *Map[K, V]) KeyEqual() func(a, b K) bool { return m.equal }

// find locates k and returns its dense-vector index, its ring position,
// and whether it was found. On an unallocated (empty) table it returns
// immediately.
func (m *Map[K, V]) find(k K) (idx uint32, ringPos uint64, found bool) {
	if len(m.ring.slots) == 0 {
		return 0, 0, false
	}
	h := m.mixedHash(k)
	d := distAndFingerprintFromHash(h)
	p := m.ring.bucketFromHash(h)
	for {
		s := m.ring.slots[p]
		if s.distAndFp < d {
			return 0, 0, false
		}
		if s.distAndFp == d && m.equal(m.entries[s.valueIdx].Key, k) {
			return s.valueIdx, p, true
		}
		d += bucketDistInc
		p = m.ring.next(p)
	}
}

// Get returns the value mapped to k, if any.
func (m *Map[K, V]) Get(k K) (V, bool) {
	idx, _, ok := m.find(k)
	if !ok {
		var zero V
		return zero, false
	}
	return m.entries[idx].Value, true
}

// GetPtr returns a pointer to the value mapped to k, if any. The pointer
// is valid until the next mutating call (Insert, Set, TryEmplace,
// Emplace, Delete, EraseIf, Clear, Rehash, or Reserve), any of which may
// move the dense vector's backing array or swap the entry's position.
func (m *Map[K, V]) GetPtr(k K) (*V, bool) {
	idx, _, ok := m.find(k)
	if !ok {
		return nil, false
	}
	return &m.entries[idx].Value, true
}

// Contains reports whether k is present.
func (m *Map[K, V]) Contains(k K) bool {
	_, _, ok := m.find(k)
	return ok
}

// Count returns 1 if k is present and 0 otherwise (rhmap has no
// multimap mode, so this never returns more than 1).
func (m *Map[K, V]) Count(k K) int {
	if m.Contains(k) {
		return 1
	}
	return 0
}

// At returns the value mapped to k, or ErrKeyNotFound if k is absent.
func (m *Map[K, V]) At(k K) (V, error) {
	idx, _, ok := m.find(k)
	if !ok {
		var zero V
		return zero, ErrKeyNotFound
	}
	return m.entries[idx].Value, nil
}

// Ref returns a pointer to the value mapped to k, inserting the zero
// value of V first if k is absent. This is operator[]-with-default-
// construction behavior.
func (m *Map[K, V]) Ref(k K) (*V, error) {
	idx, _, err := m.tryEmplaceIndex(k, func() V { var zero V; return zero })
	if err != nil {
		return nil, err
	}
	return &m.entries[idx].Value, nil
}

// tryEmplaceIndex is the shared engine behind Insert, Set, TryEmplace,
// and Ref: it finds k, or grows the table and constructs a new entry for
// it via makeValue if needed. Growth is checked, and retried, before
// every probe attempt so that callers never observe a table above
// max_bucket_capacity.
func (m *Map[K, V]) tryEmplaceIndex(k K, makeValue func() V) (idx uint32, inserted bool, err error) {
	for {
		if len(m.ring.slots) == 0 || uint64(len(m.entries)) >= m.maxBucketCapacity() {
			if err := m.grow(); err != nil {
				return 0, false, err
			}
			continue
		}

		h := m.mixedHash(k)
		d := distAndFingerprintFromHash(h)
		p := m.ring.bucketFromHash(h)
		for {
			s := m.ring.slots[p]
			if s.distAndFp == d && m.equal(m.entries[s.valueIdx].Key, k) {
				m.checkInvariants()
				return s.valueIdx, false, nil
			}
			if s.distAndFp < d {
				if uint64(len(m.entries)) >= uint64(math.MaxUint32) {
					return 0, false, ErrTooManyEntries
				}
				newIdx := uint32(len(m.entries))
				m.entries = append(m.entries, entry[K, V]{Key: k, Value: makeValue()})
				m.ring.placeAndShiftUp(bucketSlot{distAndFp: d, valueIdx: newIdx}, p)
				m.checkInvariants()
				return newIdx, true, nil
			}
			d += bucketDistInc
			p = m.ring.next(p)
		}
	}
}

// Insert adds k with value v only if k is not already present. It
// reports whether the insert happened.
func (m *Map[K, V]) Insert(k K, v V) (inserted bool, err error) {
	_, inserted, err = m.tryEmplaceIndex(k, func() V { return v })
	return inserted, err
}

// TryEmplace constructs the value lazily via makeValue only if k is
// absent, and returns the (possibly pre-existing) value either way. If
// makeValue panics, the table is left exactly as it was: the panic
// propagates before any entry or ring slot is written.
func (m *Map[K, V]) TryEmplace(k K, makeValue func() V) (value V, inserted bool, err error) {
	idx, inserted, err := m.tryEmplaceIndex(k, makeValue)
	if err != nil {
		var zero V
		return zero, false, err
	}
	return m.entries[idx].Value, inserted, nil
}

// Set is insert_or_assign: it overwrites the mapped value if k is
// already present and inserts a new entry otherwise. It reports whether
// an insert (rather than an assignment) happened.
func (m *Map[K, V]) Set(k K, v V) (inserted bool, err error) {
	idx, inserted, err := m.tryEmplaceIndex(k, func() V { return v })
	if err != nil {
		return false, err
	}
	if !inserted {
		m.entries[idx].Value = v
	}
	return inserted, nil
}

// Emplace constructs a full (key, value) pair via makeEntry before
// probing, which is required when the key itself must be materialized
// before it can be hashed. If an entry with an equal key is already
// present, the tentatively-appended entry is discarded and Emplace
// returns the index of the existing one with inserted=false.
func (m *Map[K, V]) Emplace(makeEntry func() (K, V)) (idx uint32, inserted bool, err error) {
	for {
		if len(m.ring.slots) == 0 || uint64(len(m.entries)) >= m.maxBucketCapacity() {
			if err := m.grow(); err != nil {
				return 0, false, err
			}
			continue
		}

		if uint64(len(m.entries)) >= uint64(math.MaxUint32) {
			return 0, false, ErrTooManyEntries
		}

		k, v := makeEntry()
		tentativeIdx := uint32(len(m.entries))
		m.entries = append(m.entries, entry[K, V]{Key: k, Value: v})

		h := m.mixedHash(k)
		d := distAndFingerprintFromHash(h)
		p := m.ring.bucketFromHash(h)
		for {
			s := m.ring.slots[p]
			if s.distAndFp == d && m.equal(m.entries[s.valueIdx].Key, k) {
				var zero entry[K, V]
				m.entries[tentativeIdx] = zero
				m.entries = m.entries[:tentativeIdx]
				m.checkInvariants()
				return s.valueIdx, false, nil
			}
			if s.distAndFp < d {
				m.ring.placeAndShiftUp(bucketSlot{distAndFp: d, valueIdx: tentativeIdx}, p)
				m.checkInvariants()
				return tentativeIdx, true, nil
			}
			d += bucketDistInc
			p = m.ring.next(p)
		}
	}
}

// Delete erases k if present and reports whether it was present.
func (m *Map[K, V]) Delete(k K) bool {
	if len(m.ring.slots) == 0 {
		return false
	}
	h := m.mixedHash(k)
	d := distAndFingerprintFromHash(h)
	p := m.ring.bucketFromHash(h)
	for {
		s := m.ring.slots[p]
		if s.distAndFp < d {
			return false
		}
		if s.distAndFp == d && m.equal(m.entries[s.valueIdx].Key, k) {
			m.eraseAt(p, s.valueIdx)
			return true
		}
		d += bucketDistInc
		p = m.ring.next(p)
	}
}

// DeleteAt erases the entry currently at dense-vector position i,
// locating its owning ring slot by re-hashing its key. This is
// erase(iterator).
func (m *Map[K, V]) DeleteAt(i int) {
	m.eraseIndex(uint32(i))
}

// DeleteRange erases the entries at dense-vector indices [from, to),
// leaving the table to-from entries smaller. It returns nothing: which
// entry ends up at which index afterwards depends on the swaps eraseAt
// performs. Indices are erased from the highest down, so every entry
// swapped into a vacated index comes from beyond the range and no entry
// inside the range is moved before it is erased.
func (m *Map[K, V]) DeleteRange(from, to int) {
	for i := to - 1; i >= from; i-- {
		m.eraseIndex(uint32(i))
	}
}

// eraseIndex locates the ring slot that references dense-vector index
// idx by re-hashing its key, then erases it.
func (m *Map[K, V]) eraseIndex(idx uint32) {
	k := m.entries[idx].Key
	h := m.mixedHash(k)
	p := m.ring.bucketFromHash(h)
	for m.ring.slots[p].valueIdx != idx {
		p = m.ring.next(p)
	}
	m.eraseAt(p, idx)
}

// eraseAt removes the entry at dense-vector index victimIdx, whose ring
// slot is at ringPos. It closes the ring gap with shiftDownOnErase, then
// (unless victimIdx is already the last entry) swaps the table's last
// entry into victimIdx's place and repoints the ring slot that used to
// reference the last index.
func (m *Map[K, V]) eraseAt(ringPos uint64, victimIdx uint32) {
	m.ring.shiftDownOnErase(ringPos)

	lastIdx := uint32(len(m.entries) - 1)
	if victimIdx != lastIdx {
		movedKey := m.entries[lastIdx].Key
		m.entries[victimIdx] = m.entries[lastIdx]

		h := m.mixedHash(movedKey)
		p := m.ring.bucketFromHash(h)
		for m.ring.slots[p].valueIdx != lastIdx {
			p = m.ring.next(p)
		}
		m.ring.slots[p].valueIdx = victimIdx
	}

	var zero entry[K, V]
	m.entries[len(m.entries)-1] = zero
	m.entries = m.entries[:len(m.entries)-1]
	m.checkInvariants()
}

// EraseIf erases every entry for which pred returns true, and reports
// how many were removed. It is a package-level function rather than a
// method; it walks the dense vector in place and erases matching entries
// by index.
func EraseIf[K comparable, V any](m *Map[K, V], pred func(K, V) bool) int {
	removed := 0
	i := 0
	for i < len(m.entries) {
		e := m.entries[i]
		if pred(e.Key, e.Value) {
			m.eraseIndex(uint32(i))
			removed++
			continue // the entry now at i is the previous last entry; test it too
		}
		i++
	}
	return removed
}

// Clear removes every entry. Ring capacity and shifts are retained, so a
// subsequent burst of inserts does not need to reallocate.
func (m *Map[K, V]) Clear() {
	m.entries = m.entries[:0]
	m.ring.clear()
}

func (m *Map[K, V]) deallocRing() {
	if m.ring.slots != nil {
		m.alloc.FreeRing(m.ring.slots)
	}
	m.ring.slots = nil
}

// grow doubles the ring (or performs the first allocation, at
// initialShifts) and rebuilds it from the dense vector in its existing
// order. No key comparisons are needed during a rebuild: every key in
// the dense vector is already known to be unique.
func (m *Map[K, V]) grow() error {
	shifts := m.ring.shifts
	if len(m.ring.slots) != 0 {
		shifts--
	}
	return m.rehashTo(shifts, false)
}

// rehashTo reallocates the ring at the given shifts and reinserts every
// entry from the dense vector. The old ring is freed before the new one
// is allocated, favoring lower peak memory over strong exception safety
// during growth. If shrinkEntries is set, the dense vector's backing
// array is also reallocated to drop any spare capacity, matching the
// rehash(n) contract.
func (m *Map[K, V]) rehashTo(shifts uint8, shrinkEntries bool) error {
	m.logf("rehash", map[string]any{
		"from_shifts": m.ring.shifts,
		"to_shifts":   shifts,
		"entries":     len(m.entries),
	})

	m.deallocRing()
	n := bucketCountForShifts(shifts)
	slots, err := m.alloc.AllocRing(int(n))
	if err != nil {
		return errors.Wrap(err, "rhmap: allocate ring")
	}
	m.ring = ring{slots: slots, shifts: shifts}

	if shrinkEntries {
		trimmed := make([]entry[K, V], len(m.entries))
		copy(trimmed, m.entries)
		m.entries = trimmed
	}

	for i := range m.entries {
		h := m.mixedHash(m.entries[i].Key)
		d := distAndFingerprintFromHash(h)
		p := m.ring.bucketFromHash(h)
		for m.ring.slots[p].distAndFp >= d {
			d += bucketDistInc
			p = m.ring.next(p)
		}
		m.ring.placeAndShiftUp(bucketSlot{distAndFp: d, valueIdx: uint32(i)}, p)
	}
	m.checkInvariants()
	return nil
}

// shiftsForCapacity returns the largest shifts value (i.e. the smallest
// ring) whose bucket_count * max_load_factor is still >= n.
func (m *Map[K, V]) shiftsForCapacity(n uint64) uint8 {
	if n == 0 {
		return initialShifts
	}
	shifts := uint8(initialShifts)
	for {
		bc := bucketCountForShifts(shifts)
		if float64(bc)*m.maxLoadFactor >= float64(n) {
			return shifts
		}
		shifts--
	}
}

// Rehash reallocates the ring to the smallest size satisfying
// bucket_count() * max_load_factor() >= max(n, size()), always
// reallocating (even if the new size equals the old), and drops any
// spare capacity in the dense vector.
func (m *Map[K, V]) Rehash(n uint64) error {
	if n < uint64(len(m.entries)) {
		n = uint64(len(m.entries))
	}
	return m.rehashTo(m.shiftsForCapacity(n), true)
}

// Reserve ensures the ring can hold max(n, size()) entries without
// growing, reallocating only if that requires more buckets than the
// table currently has.
func (m *Map[K, V]) Reserve(n uint64) error {
	if n < uint64(len(m.entries)) {
		n = uint64(len(m.entries))
	}
	shifts := m.shiftsForCapacity(n)
	if len(m.ring.slots) != 0 && shifts >= m.ring.shifts {
		return nil
	}
	return m.rehashTo(shifts, false)
}

// Clone returns a deep copy sharing no storage with m.
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := &Map[K, V]{
		hasher:        m.hasher,
		avalanching:   m.avalanching,
		equal:         m.equal,
		maxLoadFactor: m.maxLoadFactor,
		alloc:         m.alloc,
		trace:         m.trace,
	}
	c.entries = append([]entry[K, V]{}, m.entries...)
	if len(m.ring.slots) > 0 {
		c.ring = ring{shifts: m.ring.shifts, slots: append([]bucketSlot{}, m.ring.slots...)}
	} else {
		c.ring = ring{shifts: initialShifts}
	}
	return c
}

// Swap exchanges m's contents with other's in place.
func (m *Map[K, V]) Swap(other *Map[K, V]) {
	*m, *other = *other, *m
}

// All returns an iter.Seq2 over (key, value) pairs in dense-vector
// (insertion) order. Mutating the table mid-iteration is not supported.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, e := range m.entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Equal reports whether a and b hold the same set of keys, with
// valueEqual(a's value, b's value) true for each. Iteration order does
// not matter.
func Equal[K comparable, V any](a, b *Map[K, V], valueEqual func(x, y V) bool) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, e := range a.entries {
		v, ok := b.Get(e.Key)
		if !ok || !valueEqual(e.Value, v) {
			return false
		}
	}
	return true
}

// EqualComparable is Equal specialized to a comparable V, using == for
// value comparison.
func EqualComparable[K comparable, V comparable](a, b *Map[K, V]) bool {
	return Equal(a, b, func(x, y V) bool { return x == y })
}

// HeterogeneousHasher lets FindHetero hash and compare a lookup key of a
// different type Q against the table's stored keys K, without
// constructing a K. Go has no zero-cost type-level transparency tag, so
// the caller passes an explicit capability object instead.
type HeterogeneousHasher[K comparable, Q any] interface {
	HashOther(q Q) uint64
	EqualOther(k K, q Q) bool
}

// FindHetero looks up q against m without constructing a K, using h to
// hash and compare across the two types.
func FindHetero[K comparable, V any, Q any](m *Map[K, V], q Q, h HeterogeneousHasher[K, Q]) (V, bool) {
	var zero V
	if len(m.ring.slots) == 0 {
		return zero, false
	}
	hash := h.HashOther(q)
	if !m.avalanching {
		hash = mix(hash)
	}
	d := distAndFingerprintFromHash(hash)
	p := m.ring.bucketFromHash(hash)
	for {
		s := m.ring.slots[p]
		if s.distAndFp < d {
			return zero, false
		}
		if s.distAndFp == d && h.EqualOther(m.entries[s.valueIdx].Key, q) {
			return m.entries[s.valueIdx].Value, true
		}
		d += bucketDistInc
		p = m.ring.next(p)
	}
}

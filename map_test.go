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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// toBuiltinMap drains m.All into a plain Go map, useful as a test oracle.
func toBuiltinMap[K comparable, V any](m *Map[K, V]) map[K]V {
	r := make(map[K]V)
	for k, v := range m.All() {
		r[k] = v
	}
	return r
}

func TestInsertFindIterate(t *testing.T) {
	m := New[int, string](IntHasher[int]{})

	for _, p := range []Pair[int, string]{{1, "a"}, {2, "b"}, {3, "c"}} {
		inserted, err := m.Insert(p.Key, p.Value)
		require.NoError(t, err)
		require.True(t, inserted)
	}

	v, ok := m.Get(2)
	require.True(t, ok)
	require.Equal(t, "b", v)

	var got []Pair[int, string]
	for k, v := range m.All() {
		got = append(got, Pair[int, string]{k, v})
	}
	require.Equal(t, []Pair[int, string]{{1, "a"}, {2, "b"}, {3, "c"}}, got)
	require.Equal(t, 3, m.Len())
}

func TestEraseMovesLastEntryIntoGap(t *testing.T) {
	m := New[int, string](IntHasher[int]{})
	m.Insert(1, "a")
	m.Insert(2, "b")
	m.Insert(3, "c")

	require.True(t, m.Delete(2))

	_, ok := m.Get(2)
	require.False(t, ok)
	require.Equal(t, 2, m.Len())

	var got []Pair[int, string]
	for k, v := range m.All() {
		got = append(got, Pair[int, string]{k, v})
	}
	require.Equal(t, []Pair[int, string]{{1, "a"}, {3, "c"}}, got)
}

func TestEraseLastEntryNoSwap(t *testing.T) {
	m := New[int, string](IntHasher[int]{})
	m.Insert(1, "a")
	m.Insert(2, "b")

	require.True(t, m.Delete(2))
	require.Equal(t, 1, m.Len())
	_, ok := m.Get(1)
	require.True(t, ok)
}

func TestGrowthAcrossFullRange(t *testing.T) {
	m := New[int, int](IntHasher[int]{})
	var lastBucketCount uint64
	for i := 0; i < 100; i++ {
		_, err := m.Insert(i, i)
		require.NoError(t, err)
		require.GreaterOrEqual(t, m.BucketCount(), lastBucketCount)
		lastBucketCount = m.BucketCount()
		require.LessOrEqual(t, m.LoadFactor(), m.MaxLoadFactor())
	}
	for i := 0; i < 100; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestInsertOrAssign(t *testing.T) {
	m := New[int, string](IntHasher[int]{})

	inserted, err := m.Set(7, "x")
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = m.Set(7, "y")
	require.NoError(t, err)
	require.False(t, inserted)

	require.Equal(t, 1, m.Len())
	v, ok := m.Get(7)
	require.True(t, ok)
	require.Equal(t, "y", v)
}

func TestTryEmplaceDoesNotOverwriteExisting(t *testing.T) {
	m := New[int, string](IntHasher[int]{})
	m.Insert(5, "first")

	v, inserted, err := m.TryEmplace(5, func() string { return "second" })
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, "first", v)
}

func TestTryEmplacePanicLeavesTableUnchanged(t *testing.T) {
	m := New[int, int](IntHasher[int]{})
	m.Insert(1, 100)

	before := toBuiltinMap(m)
	beforeLen := m.Len()

	func() {
		defer func() { _ = recover() }()
		m.TryEmplace(5, func() int { panic("construction failed") })
	}()

	require.Equal(t, beforeLen, m.Len())
	require.Equal(t, before, toBuiltinMap(m))
	_, ok := m.Get(5)
	require.False(t, ok)
}

func TestEmplaceDiscardsTentativeEntryOnDuplicate(t *testing.T) {
	m := New[int, string](IntHasher[int]{})
	_, inserted, err := m.Emplace(func() (int, string) { return 1, "a" })
	require.NoError(t, err)
	require.True(t, inserted)

	idx, inserted, err := m.Emplace(func() (int, string) { return 1, "b" })
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, 1, m.Len())
	require.Equal(t, "a", m.entries[idx].Value)
}

func TestAtReturnsErrKeyNotFound(t *testing.T) {
	m := New[int, string](IntHasher[int]{})
	m.Insert(1, "a")

	v, err := m.At(1)
	require.NoError(t, err)
	require.Equal(t, "a", v)

	_, err = m.At(2)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRefInsertsZeroValueThenMutatesInPlace(t *testing.T) {
	m := New[string, int](StringHasher{})
	p, err := m.Ref("counter")
	require.NoError(t, err)
	require.Equal(t, 0, *p)
	*p++
	*p++

	v, ok := m.Get("counter")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestClearRetainsBucketCount(t *testing.T) {
	m := New[int, int](IntHasher[int]{})
	for i := 0; i < 200; i++ {
		m.Insert(i, i)
	}
	bc := m.BucketCount()
	m.Clear()
	require.Equal(t, 0, m.Len())
	require.Equal(t, bc, m.BucketCount())

	for k := range m.All() {
		t.Fatalf("should not iterate, saw %v", k)
	}
	for i := 0; i < 200; i++ {
		_, ok := m.Get(i)
		require.False(t, ok)
	}
}

func TestEraseIf(t *testing.T) {
	m := New[int, int](IntHasher[int]{})
	for i := 0; i < 20; i++ {
		m.Insert(i, i)
	}
	removed := EraseIf(m, func(k, v int) bool { return k%2 == 0 })
	require.Equal(t, 10, removed)
	require.Equal(t, 10, m.Len())
	for k := range m.All() {
		require.Equal(t, 1, k%2)
	}
}

func TestEraseIfIsOrderIndependentOfInsertionOrder(t *testing.T) {
	pred := func(k, v string) bool { return len(k) > 2 }

	m1, err := NewFromPairs(StringHasher{}, []Pair[string, string]{
		{"a", "1"}, {"bb", "2"}, {"ccc", "3"}, {"dddd", "4"},
	})
	require.NoError(t, err)
	m2, err := NewFromPairs(StringHasher{}, []Pair[string, string]{
		{"dddd", "4"}, {"ccc", "3"}, {"bb", "2"}, {"a", "1"},
	})
	require.NoError(t, err)

	require.Equal(t, EraseIf(m1, pred), EraseIf(m2, pred))
	require.True(t, EqualComparable(m1, m2))
}

func TestEqualIgnoresOrder(t *testing.T) {
	m1, err := NewFromPairs(IntHasher[int]{}, []Pair[int, string]{{1, "a"}, {2, "b"}})
	require.NoError(t, err)
	m2, err := NewFromPairs(IntHasher[int]{}, []Pair[int, string]{{2, "b"}, {1, "a"}})
	require.NoError(t, err)

	require.True(t, EqualComparable(m1, m2))

	m2.Insert(3, "c")
	require.False(t, EqualComparable(m1, m2))
}

func TestRehashPreservesEntriesAndSatisfiesLoadFactor(t *testing.T) {
	m := New[int, int](IntHasher[int]{})
	for i := 0; i < 50; i++ {
		m.Insert(i, i*i)
	}

	require.NoError(t, m.Rehash(1000))
	require.GreaterOrEqual(t, float64(m.BucketCount())*m.MaxLoadFactor(), float64(1000))

	for i := 0; i < 50; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, i*i, v)
	}
}

func TestReserveOnlyGrowsNeverShrinks(t *testing.T) {
	m := New[int, int](IntHasher[int]{})
	require.NoError(t, m.Reserve(1000))
	bc := m.BucketCount()

	require.NoError(t, m.Reserve(10))
	require.Equal(t, bc, m.BucketCount())
}

func TestDegenerateHasherForcesLongProbeChains(t *testing.T) {
	// Every key collides on bucket 0, exercising maximally displaced probes
	// during both insert and erase. The run starts at bucket 0 and never
	// reaches the end of the ring, so it does not wrap around.
	h := HasherFunc[int](func(int) uint64 { return 0 })
	m := New[int, int](h, WithMaxLoadFactor[int, int](0.8))

	const n = 50
	for i := 0; i < n; i++ {
		_, err := m.Insert(i, i*10)
		require.NoError(t, err)
	}
	for i := 0; i < n; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, i*10, v)
	}
	for i := 0; i < n; i += 2 {
		require.True(t, m.Delete(i))
	}
	for i := 1; i < n; i += 2 {
		_, ok := m.Get(i)
		require.True(t, ok)
	}
	require.Equal(t, n/2, m.Len())
}

func TestEmptyTableFindAndErase(t *testing.T) {
	m := New[int, int](IntHasher[int]{})
	_, ok := m.Get(1)
	require.False(t, ok)
	require.False(t, m.Delete(1))
	require.Zero(t, m.BucketCount())
}

func TestSingleElementFindAndErase(t *testing.T) {
	m := New[int, int](IntHasher[int]{})
	m.Insert(1, 100)

	v, ok := m.Get(1)
	require.True(t, ok)
	require.Equal(t, 100, v)

	require.True(t, m.Delete(1))
	_, ok = m.Get(1)
	require.False(t, ok)
	require.Equal(t, 0, m.Len())
}

func TestRandomOperationsAgainstBuiltinMapOracle(t *testing.T) {
	m := New[int, int](IntHasher[int]{})
	oracle := make(map[int]int)
	rng := rand.New(rand.NewSource(1))

	keys := func() []int {
		ks := make([]int, 0, len(oracle))
		for k := range oracle {
			ks = append(ks, k)
		}
		return ks
	}

	for i := 0; i < 5000; i++ {
		switch r := rng.Float64(); {
		case r < 0.5:
			k, v := rng.Intn(500), rng.Int()
			m.Insert(k, v)
			if _, exists := oracle[k]; !exists {
				oracle[k] = v
			}
		case r < 0.65:
			ks := keys()
			if len(ks) > 0 {
				k := ks[rng.Intn(len(ks))]
				v := rng.Int()
				m.Set(k, v)
				oracle[k] = v
			}
		case r < 0.85:
			ks := keys()
			if len(ks) > 0 {
				k := ks[rng.Intn(len(ks))]
				require.True(t, m.Delete(k))
				delete(oracle, k)
			}
		default:
			ks := keys()
			if len(ks) > 0 {
				k := ks[rng.Intn(len(ks))]
				v, ok := m.Get(k)
				require.True(t, ok)
				require.Equal(t, oracle[k], v)
			}
		}
		require.Equal(t, len(oracle), m.Len())
	}
	require.Equal(t, oracle, toBuiltinMap(m))
}

func TestCloneIsIndependent(t *testing.T) {
	m := New[int, int](IntHasher[int]{})
	m.Insert(1, 1)
	c := m.Clone()
	c.Insert(2, 2)

	require.Equal(t, 1, m.Len())
	require.Equal(t, 2, c.Len())
}

func TestSwapExchangesContents(t *testing.T) {
	a := New[int, int](IntHasher[int]{})
	a.Insert(1, 1)
	b := New[int, int](IntHasher[int]{})
	b.Insert(2, 2)

	a.Swap(b)

	_, ok := a.Get(2)
	require.True(t, ok)
	_, ok = b.Get(1)
	require.True(t, ok)
}

type stringLenHasher struct{}

func (stringLenHasher) HashOther(q int) uint64    { return uint64(q) }
func (stringLenHasher) EqualOther(k string, q int) bool { return len(k) == q }

func TestFindHeteroLooksUpWithoutConstructingKey(t *testing.T) {
	// A hasher whose Hash agrees with stringLenHasher.HashOther on the
	// same length lets a lookup by int length land in the same bucket as
	// the string keys that would hash to it.
	m := New[string, int](HasherFunc[string](func(s string) uint64 { return uint64(len(s)) }))
	m.Insert("ab", 1)
	m.Insert("xyz", 2)

	v, ok := FindHetero[string, int, int](m, 2, stringLenHasher{})
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = FindHetero[string, int, int](m, 9, stringLenHasher{})
	require.False(t, ok)
}

func TestDeleteRangeRemovesCorrectCount(t *testing.T) {
	m := New[int, int](IntHasher[int]{})
	for i := 0; i < 10; i++ {
		m.Insert(i, i)
	}
	m.DeleteRange(0, 4)
	require.Equal(t, 6, m.Len())
}

func TestDeleteAtErasesIteratorPosition(t *testing.T) {
	m := New[int, string](IntHasher[int]{})
	m.Insert(1, "a")
	m.Insert(2, "b")
	m.Insert(3, "c")

	m.DeleteAt(1) // erase "b"

	_, ok := m.Get(2)
	require.False(t, ok)
	require.Equal(t, 2, m.Len())
}

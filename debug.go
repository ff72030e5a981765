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

import "fmt"

// debug gates the invariant checks in checkInvariants. It is false in
// normal builds, since walking the whole ring after every mutation is
// not something a release build should pay for; flip it to true (and
// rebuild) when chasing a correctness bug in the ring/entries coupling.
const debug = false

// checkInvariants re-derives, from scratch, every fact that the ring and
// the dense vector are supposed to agree on, and panics with a
// description of the mismatch if they don't:
//
//   - every non-empty ring slot's value_idx names a live entry, and the
//     number of non-empty slots equals len(entries);
//   - a slot's stored distance and fingerprint match what re-hashing its
//     entry's key produces, which also proves Robin Hood ordering: if a
//     slot's distance did not equal its true displacement from its key's
//     home bucket, some earlier probe would have either stopped short or
//     overrun it;
//   - every entry is reachable again through find(), at the same index.
func (m *Map[K, V]) checkInvariants() {
	if !debug {
		return
	}

	n := uint64(len(m.ring.slots))
	if n == 0 {
		if len(m.entries) != 0 {
			panic(fmt.Sprintf("rhmap: invariant failed: unallocated ring but %d entries", len(m.entries)))
		}
		return
	}

	occupied := 0
	for p := uint64(0); p < n; p++ {
		s := m.ring.slots[p]
		if s.empty() {
			continue
		}
		occupied++

		if s.valueIdx >= uint32(len(m.entries)) {
			panic(fmt.Sprintf("rhmap: invariant failed: slot %d references out-of-range entry %d (have %d)",
				p, s.valueIdx, len(m.entries)))
		}

		key := m.entries[s.valueIdx].Key
		h := m.mixedHash(key)
		home := m.ring.bucketFromHash(h)
		wantDist := (p-home+n)%n + 1
		gotDist := uint64(s.distAndFp >> 8)
		if gotDist != wantDist {
			panic(fmt.Sprintf("rhmap: invariant failed: slot %d dist=%d, want %d (home=%d, entry=%d)",
				p, gotDist, wantDist, home, s.valueIdx))
		}

		wantFp := uint32(h & fingerprintMask)
		gotFp := s.distAndFp & fingerprintMask
		if gotFp != wantFp {
			panic(fmt.Sprintf("rhmap: invariant failed: slot %d fingerprint=%02x, want %02x (entry=%d)",
				p, gotFp, wantFp, s.valueIdx))
		}
	}

	if occupied != len(m.entries) {
		panic(fmt.Sprintf("rhmap: invariant failed: %d occupied slots, but %d entries", occupied, len(m.entries)))
	}

	for i := range m.entries {
		idx, _, ok := m.find(m.entries[i].Key)
		if !ok || idx != uint32(i) {
			panic(fmt.Sprintf("rhmap: invariant failed: entry %d not reachable via find (ok=%v, got=%d)", i, ok, idx))
		}
	}
}

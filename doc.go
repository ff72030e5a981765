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

// Package rhmap is a Go implementation of a Robin Hood hash table with
// backward-shift deletion and dense, insertion-ordered storage. See:
//
//	https://probablydance.com/2017/02/26/i-wrote-the-fastest-hashtable/
//	https://martin.ankerl.com/2022/08/27/hashmap-bench-01/
//
// # Robin Hood tables
//
// Unlike Go's builtin map, which chains within 8-slot buckets, a Robin
// Hood table is a single open-addressed array of small metadata slots
// ("the ring") paired with a separate, contiguous, insertion-ordered
// vector of the actual key/value pairs ("the dense vector"). Every ring
// slot is 8 bytes: a 32-bit word packing a probe distance (how far the
// slot is from the key's home bucket) and an 8-bit fingerprint of the
// hash, plus a 32-bit index into the dense vector. Lookups walk the ring
// comparing that one 32-bit word before ever touching the dense vector,
// and stop as soon as they see a slot whose distance is smaller than the
// distance they themselves have already walked, since Robin Hood
// insertion guarantees that implies the key cannot be further along.
//
// Deletion never tombstones: it shifts every following slot in the
// probe run back by one position ("backward-shift deletion"), which
// keeps probe distances tight and avoids the degraded lookups and
// periodic rehashing tombstone-based tables need.
//
// Because the dense vector is separate from the ring, entries keep
// their relative insertion order until something is erased (an erase
// swaps the table's last entry into the erased slot, which is the one
// place insertion order is not preserved).
//
// # Implementation
//
// Map[K,V] owns both halves (ring + dense vector) and drives all
// mutation. Growth is full-table rebuild: the old ring is freed, a new
// zeroed ring of double the size is allocated, and every entry in the
// dense vector is reinserted in its existing order. No key comparisons
// are needed during a rebuild, because the keys are already known to be
// unique.
//
// A Map is NOT goroutine-safe; see the package-level concurrency notes
// on Map for what is and is not safe to do from multiple goroutines.
package rhmap

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

import "github.com/rs/zerolog"

// defaultMaxLoadFactor is the default max_load_factor.
const defaultMaxLoadFactor = 0.8

// Option configures a Map at construction time.
type Option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type equalOption[K comparable, V any] struct {
	eq func(a, b K) bool
}

func (o equalOption[K, V]) apply(m *Map[K, V]) { m.equal = o.eq }

// WithEqual overrides the key-equality predicate used in place of ==.
// Required for key types that are comparable in the Go sense but whose
// equality semantics differ (e.g. case-insensitive strings boxed in a
// named type).
func WithEqual[K comparable, V any](eq func(a, b K) bool) Option[K, V] {
	return equalOption[K, V]{eq}
}

type maxLoadFactorOption[K comparable, V any] struct {
	f float64
}

func (o maxLoadFactorOption[K, V]) apply(m *Map[K, V]) { m.maxLoadFactor = o.f }

// WithMaxLoadFactor overrides the default max_load_factor of 0.8.
func WithMaxLoadFactor[K comparable, V any](f float64) Option[K, V] {
	return maxLoadFactorOption[K, V]{f}
}

type allocatorOption[K comparable, V any] struct {
	a Allocator[K, V]
}

func (o allocatorOption[K, V]) apply(m *Map[K, V]) { m.alloc = o.a }

// WithAllocator overrides how the ring's backing storage is obtained and
// released. See Allocator.
func WithAllocator[K comparable, V any](a Allocator[K, V]) Option[K, V] {
	return allocatorOption[K, V]{a}
}

type debugLogOption[K comparable, V any] struct {
	logger zerolog.Logger
}

func (o debugLogOption[K, V]) apply(m *Map[K, V]) { m.trace = &o.logger }

// WithDebugLog attaches a structured logger that traces growth, rehash,
// and rebuild events. It is purely diagnostic: it never fires on a
// lookup, insert, or erase of a single key, and is nil (silent) by
// default.
func WithDebugLog[K comparable, V any](logger zerolog.Logger) Option[K, V] {
	return debugLogOption[K, V]{logger}
}

type capacityOption[K comparable, V any] struct {
	n uint64
}

func (o capacityOption[K, V]) apply(m *Map[K, V]) {
	m.pendingReserve = o.n
}

// WithCapacity pre-sizes the ring so that it can hold n entries without
// growing, equivalent to calling Reserve(n) immediately after New.
func WithCapacity[K comparable, V any](n uint64) Option[K, V] {
	return capacityOption[K, V]{n}
}

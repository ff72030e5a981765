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

import "errors"

var (
	// ErrKeyNotFound is returned by At when the requested key is absent.
	ErrKeyNotFound = errors.New("rhmap: key not found")

	// ErrTooManyEntries is returned by the insert family when inserting
	// would exceed the 2^32-1 entry limit imposed by the 32-bit value
	// index stored in each bucket slot.
	ErrTooManyEntries = errors.New("rhmap: table already holds max_size entries")
)

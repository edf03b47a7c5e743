// Copyright 2026 The Microkernel Authors.
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

// Package sync re-exports the standard library's synchronization
// primitives under names the rest of the microkernel imports.
// Centralizing the import lets the lock discipline (extension pool ->
// VM pool -> VP pool -> VPS pool -> page/huge pool -> RPT) be documented
// and audited in one place rather than at every sync.Mutex call site.
package sync

import "sync"

// Mutex is a coarse pool lock, per spec.md §4.7 ("All pool operations take
// a coarse spin-mutex").
type Mutex = sync.Mutex

// RWMutex is a reader/writer lock. The pools take Mutex, including for
// is_active queries.
type RWMutex = sync.RWMutex

// Cond is a condition variable; no pool parks on one.
type Cond = sync.Cond

// Once runs a function exactly once; pool construction does not use it.
type Once = sync.Once

// Map is a concurrent map; the RPT keeps its alias bookkeeping in plain
// fields under its own Mutex rather than in a Map.
type Map = sync.Map

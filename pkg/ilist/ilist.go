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

// Package ilist provides a generic intrusive singly-linked list, built
// against Go generics rather than an interface pair, since this module
// targets a toolchain where generics are available. It backs the page
// pool's O(1) free list ("free list is intrusive; allocation must be
// O(1)"); the VM/VP/VPS pools find a free slot by scanning their tables
// and do not use it.
package ilist

// Linker is implemented by list elements to expose their link field.
type Linker[E any] interface {
	SetNext(e E)
	GetNext() E
}

type element[E any] interface {
	comparable
	Linker[E]
}

// List is an intrusive singly-linked LIFO free list. The zero value is an
// empty, ready-to-use list.
type List[E element[E]] struct {
	head E
	len  int
}

// Push adds e to the front of the list in O(1).
func (l *List[E]) Push(e E) {
	e.SetNext(l.head)
	l.head = e
	l.len++
}

// Pop removes and returns the front element, or the zero value and false
// if the list is empty.
func (l *List[E]) Pop() (e E, ok bool) {
	var zero E
	if l.head == zero {
		return zero, false
	}
	e = l.head
	l.head = e.GetNext()
	l.len--
	return e, true
}

// Empty reports whether the list has no elements.
func (l *List[E]) Empty() bool {
	var zero E
	return l.head == zero
}

// Len returns the number of elements currently on the list.
func (l *List[E]) Len() int { return l.len }

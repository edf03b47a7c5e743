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

package debugring

import "testing"

func TestWriteReadRoundTrip(t *testing.T) {
	r := New(16)
	r.Write([]byte("hello"))
	buf := make([]byte, 5)
	if n := r.Read(buf); n != 5 || string(buf) != "hello" {
		t.Fatalf("Read = %d, %q, want 5, hello", n, buf)
	}
	if got := r.BytesWritten.Load(); got != 5 {
		t.Fatalf("BytesWritten = %d, want 5", got)
	}
	if got := r.BytesLost.Load(); got != 0 {
		t.Fatalf("BytesLost = %d, want 0", got)
	}
}

func TestWriteWrapsAroundSilently(t *testing.T) {
	r := New(4)
	r.Write([]byte("abcdefgh"))
	if got := r.BytesWritten.Load(); got != 8 {
		t.Fatalf("BytesWritten = %d, want 8", got)
	}
	if got := r.BytesLost.Load(); got != 4 {
		t.Fatalf("BytesLost = %d, want 4", got)
	}
	if got := string(r.Dump()); got != "efgh" {
		t.Fatalf("Dump = %q, want efgh", got)
	}
}

func TestDumpDoesNotAdvanceReadCursor(t *testing.T) {
	r := New(8)
	r.Write([]byte("abc"))
	first := r.Dump()
	second := r.Dump()
	if string(first) != string(second) {
		t.Fatalf("Dump not idempotent: %q vs %q", first, second)
	}
}

func TestReadCapsAtAvailable(t *testing.T) {
	r := New(8)
	r.Write([]byte("ab"))
	buf := make([]byte, 8)
	if n := r.Read(buf); n != 2 {
		t.Fatalf("Read = %d, want 2", n)
	}
	if n := r.Read(buf); n != 0 {
		t.Fatalf("second Read = %d, want 0", n)
	}
}

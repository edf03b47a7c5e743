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

package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lusceu/microkernel/pkg/mkstatus"
)

func TestDispatchRoutesToHandler(t *testing.T) {
	m := New()
	var gotArg uint64
	m.Register(GlobalInit, func(arg uint64) mkstatus.Status {
		gotArg = arg
		return mkstatus.Success
	})
	if status := m.Dispatch(GlobalInit, 42); status != mkstatus.Success {
		t.Fatalf("Dispatch status = %v", status)
	}
	if gotArg != 42 {
		t.Fatalf("gotArg = %d, want 42", gotArg)
	}
}

func TestDispatchUnknownRequestIsForwardCompatSuccess(t *testing.T) {
	m := New()
	if status := m.Dispatch(RequestCode(999), 0); status != mkstatus.Success {
		t.Fatalf("Dispatch unknown status = %v, want Success", status)
	}
}

func TestWaitForAckSucceedsEventually(t *testing.T) {
	count := 0
	err := WaitForAck(context.Background(), time.Millisecond, 10, func() (bool, error) {
		count++
		return count >= 3, nil
	})
	if err != nil {
		t.Fatalf("WaitForAck: %v", err)
	}
	if count < 3 {
		t.Fatalf("count = %d, want >= 3", count)
	}
}

func TestWaitForAckGivesUpAfterMaxAttempts(t *testing.T) {
	err := WaitForAck(context.Background(), time.Millisecond, 2, func() (bool, error) {
		return false, nil
	})
	if err == nil {
		t.Fatal("WaitForAck succeeded despite never acking")
	}
}

func TestWaitForAckPropagatesPermanentError(t *testing.T) {
	err := WaitForAck(context.Background(), time.Millisecond, 10, func() (bool, error) {
		return false, errors.New("boom")
	})
	if err == nil {
		t.Fatal("WaitForAck returned nil error after ackFn returned an error")
	}
}

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

// Package mailbox implements the control mailbox (spec.md §6): the
// loader driver's side-channel into a running microkernel, used for
// bfmain request codes (SET_MEM_LEAFS, SET_MEM_NODES, ADD_MD,
// GLOBAL_INIT, VMM_INIT, VMM_FINI, GET_DRR). Unknown request codes
// return Success, a forward-compatibility rule that lets a newer loader
// talk to an older microkernel build.
//
// The VMM_INIT wait-for-ack suspension point ("waiting on the control
// mailbox") is implemented as a bounded constant-interval backoff rather
// than a busy-spin
// (backoff.WithContext(backoff.NewConstantBackOff(...), ctx)).
package mailbox

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/lusceu/microkernel/pkg/log"
	"github.com/lusceu/microkernel/pkg/mkstatus"
	"github.com/lusceu/microkernel/pkg/sync"
)

// RequestCode identifies one bfmain control-plane request.
type RequestCode int

const (
	SetMemLeafs RequestCode = iota
	SetMemNodes
	AddMD
	GlobalInit
	VMMInit
	VMMFini
	GetDRR
)

// Handler services one RequestCode.
type Handler func(arg uint64) mkstatus.Status

// Mailbox dispatches bfmain requests to registered Handlers.
type Mailbox struct {
	mu       sync.Mutex
	handlers map[RequestCode]Handler
}

// New returns an empty Mailbox.
func New() *Mailbox {
	return &Mailbox{handlers: make(map[RequestCode]Handler)}
}

// Register installs fn as the handler for code.
func (m *Mailbox) Register(code RequestCode, fn Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[code] = fn
}

// Dispatch services one request. A code with no registered handler
// returns Success unconditionally, per the forward-compatibility rule.
func (m *Mailbox) Dispatch(code RequestCode, arg uint64) mkstatus.Status {
	m.mu.Lock()
	fn, ok := m.handlers[code]
	m.mu.Unlock()
	if !ok {
		log.Debugf("mailbox: no handler for request %d, treating as success", code)
		return mkstatus.Success
	}
	return fn(arg)
}

var errNotYetAcked = errors.New("mailbox: not yet acknowledged")

// WaitForAck polls ackFn on a constant interval, retrying at most
// maxAttempts times after the first try, until it reports true, an
// error, or ctx is cancelled — the
// mailbox's VMM_INIT wait-for-ack loop.
func WaitForAck(ctx context.Context, interval time.Duration, maxAttempts uint64, ackFn func() (bool, error)) error {
	base := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	bounded := backoff.WithMaxRetries(base, maxAttempts)

	op := func() error {
		acked, err := ackFn()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !acked {
			return errNotYetAcked
		}
		return nil
	}
	return backoff.Retry(op, bounded)
}

// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains the request queue: a bounded FIFO that buffers
// outbound requests while no transport is available.
package ldap

import (
	"errors"
	"sync"
	"time"
)

// queueEntry is one buffered request. The operation PDU is rebuilt
// fresh by submit at flush time, since messageIDs are only meaningful
// per-Transport and nothing is pre-encoded while queued.
type queueEntry struct {
	submit func(tr *transport) *Error // allocates an id, installs the continuation and writes to tr
	fail   func(err *Error)           // resolves the continuation with err without ever writing

	enqueuedAt time.Time
}

type requestQueue struct {
	mu       sync.Mutex
	entries  []*queueEntry
	frozen   bool
	size     int // 0 = unbounded
	timeout  time.Duration
	timer    *time.Timer
	onExpiry func() // called (outside the lock) when the queue timer fires
}

func newRequestQueue(size int, timeout time.Duration, frozen bool) *requestQueue {
	return &requestQueue{size: size, timeout: timeout, frozen: frozen}
}

// enqueue appends entry and reports whether it was accepted. Rejected
// when frozen or at capacity.
func (q *requestQueue) enqueue(entry *queueEntry) bool {
	q.mu.Lock()
	if q.frozen || (q.size > 0 && len(q.entries) >= q.size) {
		q.mu.Unlock()
		return false
	}
	wasEmpty := len(q.entries) == 0
	entry.enqueuedAt = time.Now()
	q.entries = append(q.entries, entry)
	if wasEmpty && q.timeout > 0 && q.timer == nil {
		q.timer = time.AfterFunc(q.timeout, q.fireExpiry)
	}
	q.mu.Unlock()
	return true
}

// fireExpiry freezes the queue, then purges every entry buffered at
// that point with ErrorQueueTimeout, so a caller blocked waiting on a
// queued request's completion gets a terminal answer instead of
// hanging past its timeout. onExpiry (the client's own notification
// hook) runs last, after every entry has already been failed.
func (q *requestQueue) fireExpiry() {
	q.mu.Lock()
	q.frozen = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	entries := q.entries
	q.entries = nil
	q.mu.Unlock()

	timeoutErr := NewError(ErrorQueueTimeout, errors.New("request queue timed out while disconnected"))
	for _, e := range entries {
		if e.fail != nil {
			e.fail(timeoutErr)
		}
	}

	if q.onExpiry != nil {
		q.onExpiry()
	}
}

// flush synchronously drains the queue FIFO, invoking handler for each
// entry in order, and clears the queue timer.
func (q *requestQueue) flush(handler func(e *queueEntry)) {
	q.mu.Lock()
	entries := q.entries
	q.entries = nil
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.mu.Unlock()

	for _, e := range entries {
		handler(e)
	}
}

// purge is flush with a failing handler: every queued entry fails
// with err.
func (q *requestQueue) purge(err *Error) {
	q.flush(func(e *queueEntry) {
		e.fail(err)
	})
}

func (q *requestQueue) freeze() {
	q.mu.Lock()
	q.frozen = true
	q.mu.Unlock()
}

func (q *requestQueue) thaw() {
	q.mu.Lock()
	q.frozen = false
	q.mu.Unlock()
}

func (q *requestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

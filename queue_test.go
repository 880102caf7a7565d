// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldap

import (
	"testing"
	"time"
)

func TestRequestQueueEnqueueAndFlushOrder(t *testing.T) {
	q := newRequestQueue(0, 0, false)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		if !q.enqueue(&queueEntry{submit: func(tr *transport) *Error { order = append(order, i); return nil }}) {
			t.Fatalf("enqueue(%d) rejected", i)
		}
	}
	q.flush(func(e *queueEntry) { e.submit(nil) })

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("flush order = %v, want [0 1 2]", order)
	}
	if q.len() != 0 {
		t.Fatalf("len() after flush = %d, want 0", q.len())
	}
}

func TestRequestQueueBoundedRejectsWhenFull(t *testing.T) {
	q := newRequestQueue(1, 0, false)
	if !q.enqueue(&queueEntry{}) {
		t.Fatal("first enqueue rejected, want accepted")
	}
	if q.enqueue(&queueEntry{}) {
		t.Fatal("second enqueue accepted, want rejected at capacity 1")
	}
}

func TestRequestQueueFrozenRejects(t *testing.T) {
	q := newRequestQueue(0, 0, true)
	if q.enqueue(&queueEntry{}) {
		t.Fatal("enqueue on frozen queue accepted, want rejected")
	}
	q.thaw()
	if !q.enqueue(&queueEntry{}) {
		t.Fatal("enqueue after thaw rejected, want accepted")
	}
}

func TestRequestQueuePurgeFailsEveryEntry(t *testing.T) {
	q := newRequestQueue(0, 0, false)
	failed := make(chan *Error, 2)
	q.enqueue(&queueEntry{fail: func(err *Error) { failed <- err }})
	q.enqueue(&queueEntry{fail: func(err *Error) { failed <- err }})

	want := NewError(ErrorQueueTimeout, nil)
	q.purge(want)

	for i := 0; i < 2; i++ {
		select {
		case got := <-failed:
			if got != want {
				t.Fatalf("fail called with %v, want %v", got, want)
			}
		default:
			t.Fatal("fail was not called for every entry")
		}
	}
}

func TestRequestQueueExpiryFreezesAndFires(t *testing.T) {
	q := newRequestQueue(0, 10*time.Millisecond, false)
	fired := make(chan struct{})
	q.onExpiry = func() { close(fired) }
	q.enqueue(&queueEntry{})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("onExpiry was not called within 1s")
	}
	if !q.enqueue(&queueEntry{}) {
		// fireExpiry freezes, so a post-expiry enqueue must be rejected.
	} else {
		t.Fatal("enqueue after expiry accepted, want rejected (queue frozen by expiry)")
	}
}

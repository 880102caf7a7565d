// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains the request table: the map from messageID to the
// continuation awaiting its response, owned by one Transport. The map
// is guarded by a mutex because it is mutated from several goroutines:
// callers submitting or abandoning requests, the transport's read
// loop, and per-request timeout timers.
package ldap

import (
	"sync"
	"time"
)

// pendingRequest is one outstanding operation. Exactly one of single
// or stream is set: a single completion callback, or a streaming sink.
type pendingRequest struct {
	messageID uint64
	expected  []uint8 // success codes this op will accept
	sentinel  string  // "abandon" or "unbind"; "" for ordinary ops

	single func(msg *decodedMessage, err *Error)
	stream *SearchHandle

	// Paging support: present only for Search, lets the driver rebuild
	// and resend the request with an updated cookie while reusing this
	// table entry and its sink.
	searchReq  *SearchRequest
	pagingCtrl *ControlPaging

	timer *time.Timer // per-request timeout; stopped on terminal delivery
}

type requestTable struct {
	mu sync.Mutex
	m  map[uint64]*pendingRequest

	// onSizeChange is invoked (outside the lock) after every install
	// or removal with the resulting table size, so the owning
	// transport/client can drive idle detection.
	onSizeChange func(size int)
}

func newRequestTable() *requestTable {
	return &requestTable{m: make(map[uint64]*pendingRequest)}
}

func (t *requestTable) install(p *pendingRequest) {
	t.mu.Lock()
	t.m[p.messageID] = p
	size := len(t.m)
	t.mu.Unlock()
	if t.onSizeChange != nil {
		t.onSizeChange(size)
	}
}

// take removes and returns the pending request for id, if any.
func (t *requestTable) take(id uint64) (*pendingRequest, bool) {
	t.mu.Lock()
	p, ok := t.m[id]
	if ok {
		delete(t.m, id)
	}
	size := len(t.m)
	t.mu.Unlock()
	if ok && t.onSizeChange != nil {
		t.onSizeChange(size)
	}
	return p, ok
}

// peek returns the pending request for id without removing it, used
// while a streaming search or paging continuation keeps the entry
// installed across several responses.
func (t *requestTable) peek(id uint64) (*pendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.m[id]
	return p, ok
}

func (t *requestTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

// drain removes every pending request and returns them so the caller
// can resolve each exactly once: a pending Unbind resolves
// successfully, everything else with err.
func (t *requestTable) drain() []*pendingRequest {
	t.mu.Lock()
	all := make([]*pendingRequest, 0, len(t.m))
	for _, p := range t.m {
		all = append(all, p)
	}
	t.m = make(map[uint64]*pendingRequest)
	t.mu.Unlock()
	if t.onSizeChange != nil {
		t.onSizeChange(0)
	}
	return all
}

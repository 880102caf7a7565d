// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldap

import "testing"

func TestRequestTableInstallTakePeek(t *testing.T) {
	tb := newRequestTable()
	p := &pendingRequest{messageID: 7}
	tb.install(p)

	if got, ok := tb.peek(7); !ok || got != p {
		t.Fatalf("peek(7) = %v, %v; want %v, true", got, ok, p)
	}
	if tb.len() != 1 {
		t.Fatalf("len() = %d, want 1", tb.len())
	}

	got, ok := tb.take(7)
	if !ok || got != p {
		t.Fatalf("take(7) = %v, %v; want %v, true", got, ok, p)
	}
	if tb.len() != 0 {
		t.Fatalf("len() after take = %d, want 0", tb.len())
	}
	if _, ok := tb.take(7); ok {
		t.Fatalf("take(7) after removal returned ok=true")
	}
}

func TestRequestTableOnSizeChange(t *testing.T) {
	tb := newRequestTable()
	var sizes []int
	tb.onSizeChange = func(size int) { sizes = append(sizes, size) }

	tb.install(&pendingRequest{messageID: 1})
	tb.install(&pendingRequest{messageID: 2})
	tb.take(1)
	tb.take(2)

	want := []int{1, 2, 1, 0}
	if len(sizes) != len(want) {
		t.Fatalf("sizes = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("sizes = %v, want %v", sizes, want)
		}
	}
}

func TestRequestTableDrain(t *testing.T) {
	tb := newRequestTable()
	tb.install(&pendingRequest{messageID: 1, sentinel: "unbind"})
	tb.install(&pendingRequest{messageID: 2})

	drained := tb.drain()
	if len(drained) != 2 {
		t.Fatalf("drain() returned %d entries, want 2", len(drained))
	}
	if tb.len() != 0 {
		t.Fatalf("len() after drain = %d, want 0", tb.len())
	}
	if _, ok := tb.peek(1); ok {
		t.Fatalf("peek(1) after drain returned ok=true")
	}
}

// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldap

import (
	"net"
	"testing"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
)

func TestBindSuccess(t *testing.T) {
	c := newTestClient(t, Options{}, func(s *fakeServer) {
		msg := s.readRequest()
		s.writeOp(msg.MessageID, encodeResultOp(ApplicationBindResponse, LDAPResultSuccess, "", ""), nil)
	})

	if err := c.Bind("cn=admin,dc=example,dc=com", "secret"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
}

func TestBindInvalidCredentials(t *testing.T) {
	c := newTestClient(t, Options{}, func(s *fakeServer) {
		msg := s.readRequest()
		s.writeOp(msg.MessageID, encodeResultOp(ApplicationBindResponse, LDAPResultInvalidCredentials, "", "bad password"), nil)
	})

	err := c.Bind("cn=admin,dc=example,dc=com", "wrong")
	if !IsErrorWithCode(err, LDAPResultInvalidCredentials) {
		t.Fatalf("Bind error = %v, want LDAPResultInvalidCredentials", err)
	}
}

func TestCompareTrueFalseAndNoSuchObject(t *testing.T) {
	c := newTestClient(t, Options{}, func(s *fakeServer) {
		for _, code := range []uint8{LDAPResultCompareTrue, LDAPResultCompareFalse, LDAPResultNoSuchObject} {
			msg := s.readRequest()
			if msg == nil {
				return
			}
			s.writeOp(msg.MessageID, encodeResultOp(ApplicationCompareResponse, code, "", ""), nil)
		}
	})

	match, err := c.Compare(NewCompareRequest("cn=Jon,dc=example,dc=com", "cn", "Jon"))
	if err != nil || !match {
		t.Fatalf("Compare (true case) = %v, %v; want true, nil", match, err)
	}

	match, err = c.Compare(NewCompareRequest("cn=Jon,dc=example,dc=com", "cn", "NotJon"))
	if err != nil || match {
		t.Fatalf("Compare (false case) = %v, %v; want false, nil", match, err)
	}

	_, err = c.Compare(NewCompareRequest("cn=Ghost,dc=example,dc=com", "cn", "Ghost"))
	if !IsErrorWithCode(err, LDAPResultNoSuchObject) {
		t.Fatalf("Compare (no such object) err = %v, want LDAPResultNoSuchObject", err)
	}
}

func TestSearchStreamsThreeEntriesThenDone(t *testing.T) {
	c := newTestClient(t, Options{}, func(s *fakeServer) {
		msg := s.readRequest()
		for i := 0; i < 3; i++ {
			s.writeOp(msg.MessageID, encodeSearchEntryOp("cn=user,dc=example,dc=com", map[string][]string{"cn": {"user"}}), nil)
		}
		s.writeOp(msg.MessageID, encodeResultOp(ApplicationSearchResultDone, LDAPResultSuccess, "", ""), nil)
	})

	handle, err := c.Search(NewSearchRequest("dc=example,dc=com", ScopeWholeSubtree, NeverDerefAliases, 0, 0, false, "(objectClass=*)", nil, nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	var entries int
	var done bool
	for ev := range handle.Events() {
		switch ev.Kind {
		case SearchEventEntry:
			entries++
		case SearchEventDone:
			done = true
			if ev.Err != nil {
				t.Fatalf("SearchEventDone.Err = %v, want nil", ev.Err)
			}
		}
	}
	if entries != 3 || !done {
		t.Fatalf("entries = %d, done = %v; want 3, true", entries, done)
	}
}

func TestSearchWithPagingFollowsCookie(t *testing.T) {
	const total = 12
	const pageSize = 5

	c := newTestClient(t, Options{}, func(s *fakeServer) {
		remaining := total
		for {
			msg := s.readRequest()
			if msg == nil {
				return
			}
			n := pageSize
			if remaining < n {
				n = remaining
			}
			for i := 0; i < n; i++ {
				s.writeOp(msg.MessageID, encodeSearchEntryOp("cn=user,dc=example,dc=com", map[string][]string{"cn": {"user"}}), nil)
			}
			remaining -= n

			var controls []Control
			if remaining > 0 {
				ctl := NewControlPaging(pageSize)
				ctl.SetCookie([]byte("more"))
				controls = []Control{ctl}
			} else {
				ctl := NewControlPaging(0)
				ctl.SetCookie(nil)
				controls = []Control{ctl}
			}
			s.writeOp(msg.MessageID, encodeResultOp(ApplicationSearchResultDone, LDAPResultSuccess, "", ""), controls)

			if remaining <= 0 {
				return
			}
		}
	})

	result, err := c.SearchWithPaging(
		NewSearchRequest("dc=example,dc=com", ScopeWholeSubtree, NeverDerefAliases, 0, 0, false, "(objectClass=*)", nil, nil),
		pageSize,
	)
	if err != nil {
		t.Fatalf("SearchWithPaging: %v", err)
	}
	if len(result.Entries) != total {
		t.Fatalf("len(Entries) = %d, want %d", len(result.Entries), total)
	}
}

func TestRequestTimeoutFiresWithoutServerReply(t *testing.T) {
	c := newTestClient(t, Options{Timeout: 20 * time.Millisecond}, func(s *fakeServer) {
		s.readRequest() // receive it, never answer
	})

	err := c.Bind("cn=admin,dc=example,dc=com", "secret")
	if !IsErrorWithCode(err, LDAPResultOther) {
		t.Fatalf("Bind err = %v, want LDAPResultOther", err)
	}
}

func TestDroppedTransportFailsOutstandingRequest(t *testing.T) {
	c := newTestClient(t, Options{}, func(s *fakeServer) {
		s.readRequest() // receive it, then vanish instead of answering
		s.close()
	})

	err := c.Bind("cn=admin,dc=example,dc=com", "secret")
	if err == nil {
		t.Fatal("Bind succeeded against a transport that closed mid-flight")
	}
}

func TestQueuedRequestFlushesOnConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	c := NewClient(Options{Addr: ln.Addr().String(), Reconnect: &ReconnectOptions{InitialDelay: 10 * time.Millisecond}})
	defer c.Destroy()

	// No transport is installed yet: with a Reconnect policy set, Bind
	// must buffer in the request queue and kick off a connection
	// attempt on its own.
	bindDone := make(chan *Error, 1)
	go func() { bindDone <- c.Bind("cn=admin,dc=example,dc=com", "secret") }()

	var serverConn net.Conn
	select {
	case serverConn = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("server never saw a connection attempt")
	}
	defer serverConn.Close()

	packet, err := ber.ReadPacket(serverConn)
	if err != nil {
		t.Fatalf("ber.ReadPacket: %v", err)
	}
	msg, decErr := decodeOne(packet)
	if decErr != nil {
		t.Fatalf("decodeOne: %v", decErr)
	}
	envelope := encodeMessage(msg.MessageID, encodeResultOp(ApplicationBindResponse, LDAPResultSuccess, "", ""), nil)
	if _, err := serverConn.Write(envelope.Bytes()); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case err := <-bindDone:
		if err != nil {
			t.Fatalf("Bind: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Bind did not resolve after the queued request reached the server")
	}
}

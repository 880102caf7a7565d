// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains a minimal in-process LDAP server used only by tests:
// a net.Pipe stands in for the socket, and the server side decodes
// and replies to exactly the PDUs the scenario under test needs. This
// is the Go analogue of spinning up a real directory for integration
// tests, scaled down to what a unit test can drive deterministically.
package ldap

import (
	"net"
	"testing"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/rs/zerolog"
)

// fakeServer wraps the server side of a net.Pipe with helpers for
// reading one client request and writing one response.
type fakeServer struct {
	t    *testing.T
	conn net.Conn
}

func (s *fakeServer) readRequest() *decodedMessage {
	packet, err := ber.ReadPacket(s.conn)
	if err != nil {
		return nil
	}
	msg, decErr := decodeOne(packet)
	if decErr != nil {
		s.t.Fatalf("fakeServer: decodeOne: %v", decErr)
	}
	return msg
}

func (s *fakeServer) writeOp(messageID uint64, op *ber.Packet, controls []Control) {
	envelope := encodeMessage(messageID, op, controls)
	if _, err := s.conn.Write(envelope.Bytes()); err != nil {
		s.t.Fatalf("fakeServer: write: %v", err)
	}
}

func (s *fakeServer) close() { s.conn.Close() }

func encodeResultOp(tag uint8, code uint8, matchedDN, diagnostic string) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, tag, nil, ApplicationMap[tag])
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, uint64(code), "resultCode"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, matchedDN, "matchedDN"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, diagnostic, "errorMessage"))
	return op
}

func encodeSearchEntryOp(dn string, attrs map[string][]string) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationSearchResultEntry, nil, ApplicationMap[ApplicationSearchResultEntry])
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, dn, "objectName"))
	attrSeq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "attributes")
	for name, values := range attrs {
		attr := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "PartialAttribute")
		attr.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, name, "type"))
		valSet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "vals")
		for _, v := range values {
			valSet.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v, "val"))
		}
		attr.AppendChild(valSet)
		attrSeq.AppendChild(attr)
	}
	op.AppendChild(attrSeq)
	return op
}

// newTestClient wires a Client directly to the client end of a
// net.Pipe, bypassing dialTransport (which only knows how to reach
// real sockets), and starts serve on the server end.
func newTestClient(t *testing.T, opts Options, serve func(s *fakeServer)) *Client {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	go serve(&fakeServer{t: t, conn: serverConn})

	opts.Logger = zerolog.Nop()
	c := NewClient(opts)
	tr := newTransport(clientConn, opts.Logger, opts.SocketTimeout)
	c.installTransport(tr)
	t.Cleanup(func() { c.Destroy() })
	return c
}

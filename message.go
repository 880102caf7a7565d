// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains the wire codec: building and tearing down LDAPMessage
// envelopes around operation-specific PDUs.
// The per-operation files (bind.go, search.go, …) build and interpret
// the protocolOp bodies; this file owns only the envelope and the
// generic LDAPResult shape every non-search response shares.
package ldap

import (
	"errors"
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// maxMessageID is 2^31-1: messageID is encoded as an ASN.1 INTEGER and
// RFC 4511 requires it stay representable as a signed 32-bit value.
const maxMessageID = 1<<31 - 1

// encodeMessage wraps opPacket (and, if any, controls) in the outer
// LDAPMessage SEQUENCE together with messageID. Building the tree is
// kept separate from serializing it ((*ber.Packet).Bytes(), called by
// the transport) so the same tree-building step is reused for both
// fresh sends and paging resends.
func encodeMessage(messageID uint64, opPacket *ber.Packet, controls []Control) *ber.Packet {
	envelope := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAP Message")
	envelope.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, messageID, "MessageID"))
	envelope.AppendChild(opPacket)
	if len(controls) > 0 {
		envelope.AppendChild(encodeControls(controls))
	}
	return envelope
}

// decodedMessage is an envelope that has been unwrapped but whose
// protocolOp body has not yet been interpreted by an operation-specific
// decoder.
type decodedMessage struct {
	MessageID uint64
	Op        *ber.Packet // protocolOp child; Op.Tag names the response kind
	Controls  []Control
}

// decodeOne unwraps one framed LDAPMessage envelope (already isolated
// from the stream by ber.ReadPacket, which performs the outer-
// SEQUENCE-length framing) into its messageID, protocolOp and
// controls.
func decodeOne(envelope *ber.Packet) (*decodedMessage, *Error) {
	if envelope == nil || len(envelope.Children) < 2 {
		return nil, NewError(ErrorDecoding, errors.New("malformed LDAPMessage: missing messageID or protocolOp"))
	}
	messageID, ok := envelope.Children[0].Value.(int64)
	if !ok {
		return nil, NewError(ErrorDecoding, errors.New("malformed LDAPMessage: messageID is not an integer"))
	}
	msg := &decodedMessage{MessageID: uint64(messageID), Op: envelope.Children[1]}
	if len(envelope.Children) == 3 {
		controls, err := decodeControls(envelope.Children[2])
		if err != nil {
			return nil, err
		}
		msg.Controls = controls
	}
	return msg, nil
}

// ldapResult is the common shape of every *Response except
// SearchResultEntry/SearchResultReference (section 3: "All responses
// carry a resultCode, a matchedDN, an errorMessage, and optionally
// referral URIs").
type ldapResult struct {
	ResultCode        uint8
	MatchedDN         string
	DiagnosticMessage string
	Referrals         []string
}

// decodeLDAPResult decodes the [resultCode, matchedDN, errorMessage,
// referral?] prefix shared by BindResponse, AddResponse, DelResponse,
// ModifyResponse, ModifyDNResponse, CompareResponse, ExtendedResponse
// and SearchResultDone.
func decodeLDAPResult(op *ber.Packet) (*ldapResult, *Error) {
	if len(op.Children) < 3 {
		return nil, NewError(ErrorDecoding, fmt.Errorf("LDAPResult has %d children, want >= 3", len(op.Children)))
	}
	code, ok := op.Children[0].Value.(int64)
	if !ok {
		return nil, NewError(ErrorDecoding, errors.New("LDAPResult resultCode is not an integer"))
	}
	matchedDN, _ := op.Children[1].Value.(string)
	diagnostic, _ := op.Children[2].Value.(string)

	result := &ldapResult{ResultCode: uint8(code), MatchedDN: matchedDN, DiagnosticMessage: diagnostic}
	if len(op.Children) > 3 {
		for _, ref := range op.Children[3].Children {
			if s, ok := ref.Value.(string); ok {
				result.Referrals = append(result.Referrals, s)
			}
		}
	}
	return result, nil
}

// toError converts an ldapResult into *Error if its code is not among
// expected, or nil if it is.
func (r *ldapResult) toError(expected []uint8) *Error {
	if resultExpected(r.ResultCode, expected) {
		return nil
	}
	return newServerError(r.ResultCode, r.MatchedDN, r.DiagnosticMessage)
}

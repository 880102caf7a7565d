// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// CompareRequest ::= [APPLICATION 14] SEQUENCE {
//	entry          LDAPDN,
//	ava            AttributeValueAssertion }
//
// AttributeValueAssertion ::= SEQUENCE {
//	attributeDesc  AttributeDescription,
//	assertionValue AssertionValue }
package ldap

import (
	ber "github.com/go-asn1-ber/asn1-ber"
)

type CompareRequest struct {
	DN       string
	Name     string
	Value    string
	Controls []Control
}

func NewCompareRequest(dn, name, value string) *CompareRequest {
	return &CompareRequest{DN: dn, Name: name, Value: value}
}

// Compare reports whether compareReq.DN's Name attribute has Value;
// CompareTrue and CompareFalse are both successful outcomes of the
// operation, so only a protocol-level problem (no such object, no
// access, …) is surfaced as an error.
func (c *Client) Compare(compareReq *CompareRequest) (bool, *Error) {
	result, err := c.doSingle(
		func() (*ber.Packet, *Error) { return encodeCompareRequest(compareReq) },
		compareReq.Controls,
		[]uint8{LDAPResultCompareTrue, LDAPResultCompareFalse},
	)
	if err != nil {
		return false, err
	}
	return result.ResultCode == LDAPResultCompareTrue, nil
}

func encodeCompareRequest(req *CompareRequest) (*ber.Packet, *Error) {
	p := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationCompareRequest, nil, ApplicationMap[ApplicationCompareRequest])
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.DN, "LDAP DN"))

	ava := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "AttributeValueAssertion")
	ava.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.Name, "AttributeDesc"))
	ava.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.Value, "AssertionValue"))
	p.AppendChild(ava)
	return p, nil
}

// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ModifyDNRequest ::= [APPLICATION 12] SEQUENCE {
//	entry        LDAPDN,
//	newrdn       RelativeLDAPDN,
//	deleteoldrdn BOOLEAN,
//	newSuperior  [0] LDAPDN OPTIONAL }
package ldap

import (
	ber "github.com/go-asn1-ber/asn1-ber"
)

// ModifyDNRequest renames or moves DN to NewDN. NewDN is the entry's
// full intended DN, not just the new RDN: ModifyDN derives the wire
// newrdn/newSuperior split from it (first RDN vs. remainder) and
// always asks the server to delete the old RDN's attribute values.
type ModifyDNRequest struct {
	DN       string
	NewDN    string
	Controls []Control
}

func NewModifyDNRequest(dn, newDN string) *ModifyDNRequest {
	return &ModifyDNRequest{DN: dn, NewDN: newDN}
}

// ModifyDN renames or moves modDNReq.DN to modDNReq.NewDN.
func (c *Client) ModifyDN(modDNReq *ModifyDNRequest) *Error {
	newRDN, newSuperior := splitRDN(modDNReq.NewDN)
	_, err := c.doSingle(
		func() (*ber.Packet, *Error) { return encodeModifyDNRequest(modDNReq.DN, newRDN, newSuperior), nil },
		modDNReq.Controls,
		[]uint8{LDAPResultSuccess},
	)
	return err
}

// splitRDN splits dn into its leading RelativeLDAPDN and the remaining
// superior DN, treating a comma as an RDN separator unless it is
// backslash-escaped inside an attribute value. If dn has a single RDN,
// superior is "".
func splitRDN(dn string) (rdn, superior string) {
	escaped := false
	for i := 0; i < len(dn); i++ {
		switch {
		case escaped:
			escaped = false
		case dn[i] == '\\':
			escaped = true
		case dn[i] == ',':
			return dn[:i], dn[i+1:]
		}
	}
	return dn, ""
}

func encodeModifyDNRequest(dn, newRDN, newSuperior string) *ber.Packet {
	p := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationModifyDNRequest, nil, ApplicationMap[ApplicationModifyDNRequest])
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, dn, "LDAPDN"))
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, newRDN, "NewRDN"))
	p.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, true, "DeleteOldRDN"))
	if newSuperior != "" {
		p.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, newSuperior, "NewSuperiorDN"))
	}
	return p
}

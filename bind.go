// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains simple Bind.
package ldap

import (
	ber "github.com/go-asn1-ber/asn1-ber"
)

// Bind performs a simple (username/password) bind on the client's
// current transport, connecting first if necessary.
func (c *Client) Bind(username, password string) *Error {
	_, err := c.doSingle(
		func() (*ber.Packet, *Error) { return encodeSimpleBindRequest(username, password), nil },
		nil,
		[]uint8{LDAPResultSuccess},
	)
	return err
}

func encodeSimpleBindRequest(username, password string) *ber.Packet {
	bindRequest := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationBindRequest, nil, ApplicationMap[ApplicationBindRequest])
	bindRequest.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, 3, "Version"))
	bindRequest.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, username, "User Name"))
	bindRequest.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, password, "Password"))
	return bindRequest
}

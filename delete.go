// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldap

import (
	ber "github.com/go-asn1-ber/asn1-ber"
)

type DeleteRequest struct {
	DN       string
	Controls []Control
}

func NewDeleteRequest(dn string) *DeleteRequest {
	return &DeleteRequest{DN: dn}
}

func (req *DeleteRequest) AddControl(control Control) {
	req.Controls = append(req.Controls, control)
}

// Delete removes delReq.DN.
func (c *Client) Delete(delReq *DeleteRequest) *Error {
	_, err := c.doSingle(
		func() (*ber.Packet, *Error) {
			return ber.NewString(ber.ClassApplication, ber.TypePrimitive, ApplicationDelRequest, delReq.DN, ApplicationMap[ApplicationDelRequest]), nil
		},
		delReq.Controls,
		[]uint8{LDAPResultSuccess},
	)
	return err
}

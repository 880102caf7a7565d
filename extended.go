// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ExtendedRequest ::= [APPLICATION 23] SEQUENCE {
//	requestName  [0] LDAPOID,
//	requestValue [1] OCTET STRING OPTIONAL }
//
// ExtendedResponse adds two more OPTIONAL fields after LDAPResult;
// responseName and responseValue, both tagged [10]/[11].
package ldap

import (
	ber "github.com/go-asn1-ber/asn1-ber"
)

// ExtendedResponse is what a successful ExtendedRequest returns,
// beyond the plain success/failure every operation shares.
type ExtendedResponse struct {
	ResponseName  string
	ResponseValue []byte
}

// Extended sends an ExtendedRequest identified by oid, with an
// optional request value, and returns the server's response name and
// value if it supplied any.
func (c *Client) Extended(oid string, value []byte) (*ExtendedResponse, *Error) {
	resultCh := make(chan struct {
		msg *decodedMessage
		err *Error
	}, 1)
	req := &genericRequest{
		buildOp: func() (*ber.Packet, *Error) { return encodeExtendedRequest(oid, value), nil },
		expected: []uint8{LDAPResultSuccess},
		timeout:  c.opts.Timeout,
		single: func(m *decodedMessage, err *Error) {
			resultCh <- struct {
				msg *decodedMessage
				err *Error
			}{m, err}
		},
	}
	if err := c.send(req); err != nil {
		return nil, err
	}
	res := <-resultCh
	if res.err != nil {
		return nil, res.err
	}
	msg := res.msg

	result, decErr := decodeLDAPResult(msg.Op)
	if decErr != nil {
		return nil, decErr
	}
	if resultErr := result.toError([]uint8{LDAPResultSuccess}); resultErr != nil {
		return nil, resultErr
	}

	resp := &ExtendedResponse{}
	for _, child := range msg.Op.Children {
		switch child.ClassType {
		case ber.ClassContext:
			switch child.Tag {
			case 10:
				resp.ResponseName, _ = child.Value.(string)
			case 11:
				resp.ResponseValue = child.Data.Bytes()
			}
		}
	}
	return resp, nil
}

func encodeExtendedRequest(oid string, value []byte) *ber.Packet {
	p := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationExtendedRequest, nil, ApplicationMap[ApplicationExtendedRequest])
	p.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, oid, "Request Name"))
	if value != nil {
		v := ber.Encode(ber.ClassContext, ber.TypePrimitive, 1, nil, "Request Value")
		v.Value = value
		v.Data.Write(value)
		p.AppendChild(v)
	}
	return p
}

// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldap

import (
	"errors"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// Unbind sends UnbindRequest and closes the current transport.
// UnbindRequest has no response; the operation resolves once the
// ensuing connection teardown drains this request's table entry as a
// success (see transport.go's teardown).
func (c *Client) Unbind() *Error {
	tr := c.currentTransport()
	if tr == nil {
		return NewError(ErrorNetwork, errors.New("not connected"))
	}
	return c.unbindOn(tr)
}

// unbindOn is Unbind's body, parameterized over tr so RestrictedClient
// can reuse it against a transport that has not been installed as the
// client's live transport yet.
func (c *Client) unbindOn(tr *transport) *Error {
	resultCh := make(chan *Error, 1)
	req := &genericRequest{
		buildOp: func() (*ber.Packet, *Error) {
			return ber.Encode(ber.ClassApplication, ber.TypePrimitive, ApplicationUnbindRequest, nil, ApplicationMap[ApplicationUnbindRequest]), nil
		},
		sentinel: "unbind",
		single:   func(_ *decodedMessage, err *Error) { resultCh <- err },
	}

	if err := c.submit(tr, req); err != nil {
		return err
	}
	tr.conn.Close() // EOF on the read loop drains the table and resolves this pending as success
	return <-resultCh
}

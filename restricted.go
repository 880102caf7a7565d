// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains RestrictedClient: the narrow view of a connection a
// setup hook gets, bound to one transport before it is installed as
// the client's live transport.
package ldap

import (
	ber "github.com/go-asn1-ber/asn1-ber"
)

// RestrictedClient is the only thing a SetupHook can act on: bind,
// search and unbind against the transport currently being set up,
// none of which ever touch the request queue (there is nothing queued
// for this transport yet). Any other Client method is deliberately
// unreachable from here.
type RestrictedClient struct {
	client *Client
	tr     *transport
}

// Bind performs a simple bind on the transport under setup.
func (rc *RestrictedClient) Bind(username, password string) *Error {
	_, err := rc.client.doSingleOn(
		rc.tr,
		func() (*ber.Packet, *Error) { return encodeSimpleBindRequest(username, password), nil },
		nil,
		[]uint8{LDAPResultSuccess},
	)
	return err
}

// Search submits req on the transport under setup and returns a
// handle streaming its results, the same shape Client.Search returns.
func (rc *RestrictedClient) Search(req *SearchRequest) (*SearchHandle, *Error) {
	handle := newSearchHandle(rc.client)
	genReq := &genericRequest{
		buildOp:   func() (*ber.Packet, *Error) { return encodeSearchRequest(req) },
		controls:  req.Controls,
		expected:  []uint8{LDAPResultSuccess},
		searchReq: req,
		stream:    handle,
		timeout:   rc.client.opts.Timeout,
	}
	if err := rc.client.submit(rc.tr, genReq); err != nil {
		return nil, err
	}
	return handle, nil
}

// Unbind sends UnbindRequest on the transport under setup and closes
// it. A hook has no reason to call this in practice (a failed setup
// already fails the connect, and a successful one proceeds to install
// the transport) but it is part of the restricted surface the
// connection manager names.
func (rc *RestrictedClient) Unbind() *Error {
	return rc.client.unbindOn(rc.tr)
}

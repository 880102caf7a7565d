// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains the generic request dispatcher: the one code path
// every operation file (bind.go, add.go, search.go, …) funnels through
// to get from "build this PDU" to either a queued entry or a
// byte-for-byte write, with per-request timeout and terminal-vs-
// streaming delivery handled in one place.
package ldap

import (
	"errors"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// genericRequest is everything submit needs to turn one logical
// operation into wire bytes and, eventually, a resolved completion.
// Exactly one of single/stream is set by the calling operation file.
type genericRequest struct {
	buildOp  func() (*ber.Packet, *Error) // messageID-independent; called once the id is known
	controls []Control
	expected []uint8
	sentinel string // "", "abandon" or "unbind"
	timeout  time.Duration

	single func(msg *decodedMessage, err *Error)
	stream *SearchHandle

	// searchReq is set only by Search, so submit can hand it to the
	// table entry for the paging driver to reuse.
	searchReq *SearchRequest
}

func resolveRequest(req *genericRequest, err *Error) {
	switch {
	case req.stream != nil:
		deliverSearchError(req.stream, err)
	case req.single != nil:
		req.single(nil, err)
	}
}

// send is the top-level entry point every operation uses: submit
// immediately if a transport is connected, otherwise enqueue (and, if
// a Reconnect policy is set and nothing is driving a reconnect yet,
// kick one off).
func (c *Client) send(req *genericRequest) *Error {
	tr := c.currentTransport()
	if tr == nil {
		return c.enqueueRequest(req)
	}
	return c.submit(tr, req)
}

// enqueueRequest buffers req in the request queue. A rejected
// enqueue (frozen or full) resolves req synchronously with an error
// rather than handing the caller a channel that would never fire.
func (c *Client) enqueueRequest(req *genericRequest) *Error {
	entry := &queueEntry{
		submit: func(tr *transport) *Error { return c.submit(tr, req) },
		fail:   func(err *Error) { resolveRequest(req, err) },
	}
	if !c.queue.enqueue(entry) {
		err := NewError(ErrorNetwork, errors.New("not connected and the request queue rejected this request"))
		resolveRequest(req, err)
		return err
	}
	if c.opts.Reconnect != nil {
		c.requestConnect()
	}
	return nil
}

// submit allocates a messageID on tr, encodes the envelope, installs
// the table entry (unless this is an Abandon, which never expects a
// reply), arms the per-request timer, and writes. It is the single
// choke point every queued or direct request passes through, so
// write order on the wire matches submit order.
func (c *Client) submit(tr *transport, req *genericRequest) *Error {
	messageID := tr.nextMessageID()

	opPacket, err := req.buildOp()
	if err != nil {
		resolveRequest(req, err)
		return err
	}
	envelope := encodeMessage(messageID, opPacket, req.controls)

	pending := &pendingRequest{
		messageID: messageID,
		expected:  req.expected,
		sentinel:  req.sentinel,
		single:    req.single,
		stream:    req.stream,
		searchReq: req.searchReq,
	}
	if req.searchReq != nil {
		if ctl := FindControl(req.searchReq.Controls, ControlTypePaging); ctl != nil {
			pending.pagingCtrl, _ = ctl.(*ControlPaging)
		}
	}
	if req.stream != nil {
		req.stream.bind(messageID)
	}

	if req.sentinel != "abandon" {
		tr.table.install(pending)
		if req.timeout > 0 {
			pending.timer = time.AfterFunc(req.timeout, func() {
				c.expireRequest(tr, messageID)
			})
		}
	}

	if werr := tr.write(envelope); werr != nil {
		if req.sentinel != "abandon" {
			tr.table.take(messageID)
			if pending.timer != nil {
				pending.timer.Stop()
			}
		}
		resolveRequest(req, werr)
		return werr
	}

	if req.sentinel == "abandon" && req.single != nil {
		req.single(nil, nil) // write succeeding is the whole contract for Abandon
	}
	return nil
}

// runSingle is the shared blocking path the terminal operations
// (Bind, Add, Delete, Compare, ModifyDN, Modify) use: build one PDU,
// hand it to submitFn, block the caller on its own private result
// channel until the completion fires, then decode and classify the
// LDAPResult against expected. Search does not use this, because its
// result is a stream rather than a single message; Extended does not
// either, since it reads the response name/value fields that the
// returned ldapResult does not carry. submitFn is c.send for a normal operation (queues
// while disconnected) or a direct c.submit against a known transport
// for a setup hook, which must never touch the queue.
func (c *Client) runSingle(buildOp func() (*ber.Packet, *Error), controls []Control, expected []uint8, submitFn func(*genericRequest) *Error) (*ldapResult, *Error) {
	resultCh := make(chan struct {
		msg *decodedMessage
		err *Error
	}, 1)

	req := &genericRequest{
		buildOp:  buildOp,
		controls: controls,
		expected: expected,
		timeout:  c.opts.Timeout,
		single: func(msg *decodedMessage, err *Error) {
			resultCh <- struct {
				msg *decodedMessage
				err *Error
			}{msg, err}
		},
	}

	if err := submitFn(req); err != nil {
		return nil, err
	}
	res := <-resultCh
	if res.err != nil {
		return nil, res.err
	}

	result, decErr := decodeLDAPResult(res.msg.Op)
	if decErr != nil {
		return nil, decErr
	}
	if resultErr := result.toError(expected); resultErr != nil {
		return result, resultErr
	}
	return result, nil
}

func (c *Client) doSingle(buildOp func() (*ber.Packet, *Error), controls []Control, expected []uint8) (*ldapResult, *Error) {
	return c.runSingle(buildOp, controls, expected, c.send)
}

// doSingleOn submits directly against tr, bypassing the request queue
// entirely. Used by RestrictedClient, whose whole point is that setup
// hooks run before the queue is ever flushed onto this transport.
func (c *Client) doSingleOn(tr *transport, buildOp func() (*ber.Packet, *Error), controls []Control, expected []uint8) (*ldapResult, *Error) {
	return c.runSingle(buildOp, controls, expected, func(req *genericRequest) *Error { return c.submit(tr, req) })
}

// expireRequest implements the per-request timeout: if the entry is
// still outstanding when the timer fires, remove it and resolve it
// with a local LDAPResult (resultCode Other) run through the same
// toError classification a real server reply would get, so the
// caller sees an ordinary LDAPResultOther rather than a client-only
// sentinel. The server's eventual reply, if any, is then an
// unsolicited message the router logs and drops.
func (c *Client) expireRequest(tr *transport, messageID uint64) {
	pending, ok := tr.table.take(messageID)
	if !ok {
		return
	}
	result := &ldapResult{ResultCode: LDAPResultOther, DiagnosticMessage: "request timeout (client interrupt)"}
	timeoutErr := result.toError(nil)
	c.events.emit(Event{Kind: EventTimeout, Message: result.DiagnosticMessage})
	if pending.stream != nil {
		deliverSearchError(pending.stream, timeoutErr)
		return
	}
	if pending.single != nil {
		pending.single(nil, timeoutErr)
	}
}

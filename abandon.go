// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldap

import (
	"errors"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// Abandon asks the server to stop processing targetMessageID and
// removes its table entry locally, so a caller that no longer wants a
// long-running search (or any other outstanding request) does not
// also have to wait out an idle timer it no longer cares about (see
// the Abandon-vs-idle decision in DESIGN.md). The AbandonRequest PDU
// itself never gets a reply: this returns once the write succeeds.
func (c *Client) Abandon(targetMessageID uint64) *Error {
	tr := c.currentTransport()
	if tr == nil {
		return NewError(ErrorNetwork, errors.New("not connected"))
	}

	if pending, ok := tr.table.take(targetMessageID); ok {
		if pending.timer != nil {
			pending.timer.Stop()
		}
		abandonErr := NewError(ErrorAbandoned, errors.New("request abandoned by caller"))
		if pending.stream != nil {
			deliverSearchError(pending.stream, abandonErr)
		} else if pending.single != nil {
			pending.single(nil, abandonErr)
		}
	}

	req := &genericRequest{
		buildOp: func() (*ber.Packet, *Error) {
			return ber.NewInteger(ber.ClassApplication, ber.TypePrimitive, ApplicationAbandonRequest, targetMessageID, ApplicationMap[ApplicationAbandonRequest]), nil
		},
		sentinel: "abandon",
	}
	return c.send(req)
}

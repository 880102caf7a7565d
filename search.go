// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains Search, and the paged search continuation driver that
// follows a PagedResultsControl cookie across rounds. Unlike the terminal
// operations in bind.go/add.go/…, Search never blocks its caller: it
// hands back a SearchHandle immediately and delivers entries,
// references and the final outcome over a channel, because an
// arbitrary-length result set is the one response shape the
// single-completion-callback model in table.go cannot represent.
package ldap

import (
	"errors"
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"
)

const (
	ScopeBaseObject   = 0
	ScopeSingleLevel  = 1
	ScopeWholeSubtree = 2
)

var ScopeMap = map[int]string{
	ScopeBaseObject:   "Base Object",
	ScopeSingleLevel:  "Single Level",
	ScopeWholeSubtree: "Whole Subtree",
}

const (
	NeverDerefAliases   = 0
	DerefInSearching    = 1
	DerefFindingBaseObj = 2
	DerefAlways         = 3
)

var DerefMap = map[int]string{
	NeverDerefAliases:   "NeverDerefAliases",
	DerefInSearching:    "DerefInSearching",
	DerefFindingBaseObj: "DerefFindingBaseObj",
	DerefAlways:         "DerefAlways",
}

// SearchRequest is every parameter of an LDAP SearchRequest PDU
// (RFC 4511 §4.5.1). Controls travels with the request rather than
// as a separate argument so the paging driver can rebuild the exact
// same PDU shape on every page with only the cookie changed.
type SearchRequest struct {
	BaseDN       string
	Scope        int
	DerefAliases int
	SizeLimit    int
	TimeLimit    int
	TypesOnly    bool
	Filter       string
	Attributes   []string
	Controls     []Control
}

// NewSearchRequest builds a SearchRequest with the given parameters.
func NewSearchRequest(baseDN string, scope, derefAliases, sizeLimit, timeLimit int, typesOnly bool,
	filter string, attributes []string, controls []Control) *SearchRequest {
	return &SearchRequest{
		BaseDN:       baseDN,
		Scope:        scope,
		DerefAliases: derefAliases,
		SizeLimit:    sizeLimit,
		TimeLimit:    timeLimit,
		TypesOnly:    typesOnly,
		Filter:       filter,
		Attributes:   attributes,
		Controls:     controls,
	}
}

// AddControl appends a control to the request.
func (req *SearchRequest) AddControl(control Control) {
	req.Controls = append(req.Controls, control)
}

// SearchEventKind discriminates the variants of SearchEvent.
type SearchEventKind uint8

const (
	SearchEventEntry SearchEventKind = iota
	SearchEventReference
	SearchEventDone
)

// SearchEvent is one item on a SearchHandle's Events channel. Entry is
// set only for SearchEventEntry, Reference only for
// SearchEventReference. Err is set on SearchEventDone when the search
// did not end in success; the channel is closed immediately after a
// SearchEventDone is sent, so ranging over Events() is a complete
// consumption loop.
type SearchEvent struct {
	Kind      SearchEventKind
	Entry     *Entry
	Reference []string
	Err       *Error
}

// SearchHandle is the streaming sink a Search call hands back: entry,
// reference, end or error, delivered over a channel.
type SearchHandle struct {
	messageID uint64
	client    *Client
	events    chan SearchEvent
	done      chan struct{}
}

func newSearchHandle(client *Client) *SearchHandle {
	return &SearchHandle{
		client: client,
		events: make(chan SearchEvent, 16),
		done:   make(chan struct{}),
	}
}

// bind records the messageID submit() allocated for this search; it
// is unset (0) for as long as the request sits in the request queue.
func (h *SearchHandle) bind(messageID uint64) { h.messageID = messageID }

// Events returns the channel of entries/references/outcome. It is
// closed exactly once, right after the SearchEventDone it carries.
func (h *SearchHandle) Events() <-chan SearchEvent { return h.events }

// MessageID is the id this search was submitted under, for passing to
// Client.Abandon.
func (h *SearchHandle) MessageID() uint64 { return h.messageID }

// Abandon asks the client to stop this search: it removes the table
// entry immediately (so idle accounting is not held open by a search
// nobody is waiting on any more — see the Abandon-vs-idle decision in
// DESIGN.md) and writes an AbandonRequest best-effort.
func (h *SearchHandle) Abandon() *Error {
	return h.client.Abandon(h.messageID)
}

func (h *SearchHandle) emit(ev SearchEvent) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

// finish delivers the terminal event and closes Events(), exactly
// once; deliverSearch/deliverSearchError/teardown each reach a
// terminal state along exactly one path for a given messageID, so no
// additional synchronization is needed here.
func (h *SearchHandle) finish(ev SearchEvent) {
	select {
	case <-h.done:
		return
	default:
	}
	close(h.done)
	h.events <- ev
	close(h.events)
}

// deliverSearchError delivers a local/connection error as the terminal
// event of a streaming search (used by teardown and Abandon).
func deliverSearchError(stream *SearchHandle, err *Error) {
	stream.finish(SearchEvent{Kind: SearchEventDone, Err: err})
}

// Search submits a SearchRequest and returns immediately with a handle
// streaming its results; see SearchWithPaging for a buffered variant.
func (c *Client) Search(req *SearchRequest) (*SearchHandle, *Error) {
	handle := newSearchHandle(c)

	genReq := &genericRequest{
		buildOp:   func() (*ber.Packet, *Error) { return encodeSearchRequest(req) },
		controls:  req.Controls,
		expected:  []uint8{LDAPResultSuccess},
		searchReq: req,
		stream:    handle,
		timeout:   c.opts.Timeout,
	}

	if err := c.send(genReq); err != nil {
		return nil, err
	}
	return handle, nil
}

// SearchResult is the buffered shape SearchWithPaging returns.
type SearchResult struct {
	Entries   []*Entry
	Referrals []string
}

// SearchWithPaging repeats Search with a PagedResultsControl of the
// given page size, following the server's cookie until it returns
// empty, and returns every entry collected along the way — the
// buffered convenience wrapper for callers who do not need the
// streaming form.
func (c *Client) SearchWithPaging(req *SearchRequest, pageSize uint32) (*SearchResult, *Error) {
	req.AddControl(NewControlPaging(pageSize))

	result := &SearchResult{}
	handle, err := c.Search(req)
	if err != nil {
		return nil, err
	}
	for ev := range handle.Events() {
		switch ev.Kind {
		case SearchEventEntry:
			result.Entries = append(result.Entries, ev.Entry)
		case SearchEventReference:
			result.Referrals = append(result.Referrals, ev.Reference...)
		case SearchEventDone:
			if ev.Err != nil {
				return result, ev.Err
			}
		}
	}
	return result, nil
}

// deliverSearch handles one response message for a streaming request:
// entries and references stay outstanding, and a SearchResultDone is
// first offered to the paging driver before being treated as terminal.
func (tr *transport) deliverSearch(pending *pendingRequest, msg *decodedMessage) {
	switch msg.Op.Tag {
	case ApplicationSearchResultEntry:
		entry, err := decodeSearchResultEntry(msg.Op)
		if err != nil {
			tr.finishPending(pending.messageID)
			if pending.timer != nil {
				pending.timer.Stop()
			}
			deliverSearchError(pending.stream, err)
			return
		}
		pending.stream.emit(SearchEvent{Kind: SearchEventEntry, Entry: entry})

	case ApplicationSearchResultReference:
		pending.stream.emit(SearchEvent{Kind: SearchEventReference, Reference: decodeSearchResultReference(msg.Op)})

	case ApplicationSearchResultDone:
		result, decErr := decodeLDAPResult(msg.Op)
		if decErr != nil {
			tr.finishPending(pending.messageID)
			if pending.timer != nil {
				pending.timer.Stop()
			}
			deliverSearchError(pending.stream, decErr)
			return
		}

		continued, pageErr := tr.continuePaging(pending, result, msg.Controls)
		if pageErr != nil {
			tr.finishPending(pending.messageID)
			if pending.timer != nil {
				pending.timer.Stop()
			}
			deliverSearchError(pending.stream, pageErr)
			return
		}
		if continued {
			return // same messageID, same sink: stays installed for the next page
		}

		tr.finishPending(pending.messageID)
		if pending.timer != nil {
			pending.timer.Stop()
		}
		pending.stream.finish(SearchEvent{Kind: SearchEventDone, Err: result.toError(pending.expected)})

	default:
		tr.finishPending(pending.messageID)
		if pending.timer != nil {
			pending.timer.Stop()
		}
		deliverSearchError(pending.stream, NewError(ErrorDecoding, fmt.Errorf("unexpected response tag %d for a search", msg.Op.Tag)))
	}
}

// continuePaging drives paged search continuation: if SearchResultDone
// carried a PagedResultsControl with a non-empty cookie, rewrite the paging
// control in place, re-encode the (otherwise unchanged) SearchRequest
// and resend it under the same messageID. Returns continued=true when
// it did so, meaning the caller must leave the table entry installed.
func (tr *transport) continuePaging(pending *pendingRequest, result *ldapResult, responseControls []Control) (bool, *Error) {
	if pending.searchReq == nil || pending.pagingCtrl == nil {
		return false, nil
	}

	ctl := FindControl(responseControls, ControlTypePaging)
	if ctl == nil {
		return false, nil
	}
	paging, ok := ctl.(*ControlPaging)
	if !ok || len(paging.Cookie) == 0 {
		return false, nil
	}

	pending.pagingCtrl.SetCookie(paging.Cookie)

	opPacket, err := encodeSearchRequest(pending.searchReq)
	if err != nil {
		return false, err
	}
	envelope := encodeMessage(pending.messageID, opPacket, pending.searchReq.Controls)
	if werr := tr.write(envelope); werr != nil {
		return false, werr
	}
	return true, nil
}

func encodeSearchRequest(req *SearchRequest) (*ber.Packet, *Error) {
	searchRequest := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationSearchRequest, nil, "Search Request")
	searchRequest.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.BaseDN, "Base DN"))
	searchRequest.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, uint64(req.Scope), "Scope"))
	searchRequest.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, uint64(req.DerefAliases), "Deref Aliases"))
	searchRequest.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, uint64(req.SizeLimit), "Size Limit"))
	searchRequest.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, uint64(req.TimeLimit), "Time Limit"))
	searchRequest.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, req.TypesOnly, "Types Only"))

	filterPacket, err := CompileFilter(req.Filter)
	if err != nil {
		return nil, err
	}
	searchRequest.AppendChild(filterPacket)

	attributesPacket := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attributes")
	for _, attribute := range req.Attributes {
		attributesPacket.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attribute, "Attribute"))
	}
	searchRequest.AppendChild(attributesPacket)
	return searchRequest, nil
}

func decodeSearchResultEntry(op *ber.Packet) (*Entry, *Error) {
	if len(op.Children) < 2 {
		return nil, NewError(ErrorDecoding, errors.New("SearchResultEntry has fewer than 2 children"))
	}
	dn, ok := op.Children[0].Value.(string)
	if !ok {
		return nil, NewError(ErrorDecoding, errors.New("SearchResultEntry DN is not a string"))
	}
	entry := &Entry{DN: dn}
	for _, child := range op.Children[1].Children {
		if len(child.Children) < 2 {
			continue
		}
		name, _ := child.Children[0].Value.(string)
		attr := &EntryAttribute{Name: name}
		for _, value := range child.Children[1].Children {
			if s, ok := value.Value.(string); ok {
				attr.Values = append(attr.Values, s)
			}
		}
		entry.Attributes = append(entry.Attributes, attr)
	}
	return entry, nil
}

func decodeSearchResultReference(op *ber.Packet) []string {
	refs := make([]string, 0, len(op.Children))
	for _, child := range op.Children {
		if s, ok := child.Value.(string); ok {
			refs = append(refs, s)
		}
	}
	return refs
}

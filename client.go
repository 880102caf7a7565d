// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains Client: the state machine wrapping one logical LDAP
// session across however many physical Transports it takes to keep
// it alive. Operation files (bind.go, add.go, search.go, …) are all
// methods on Client; this file owns connect/disconnect/destroy and
// the idle-detection wiring, so a session survives a dropped socket.
package ldap

import (
	"crypto/tls"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type clientState int32

const (
	stateDisconnected clientState = iota
	stateConnecting
	stateConnected
	stateDestroyed
)

// Options configures a Client. There is exactly one configuration
// surface — no env vars, no config files: Options is the complete
// input, everything else is derived from it.
type Options struct {
	Network string // "tcp" or "unix"; default "tcp"
	Addr    string // host:port for "tcp"; socket path for "unix"

	TLS       bool        // dial straight into TLS (ldaps://)
	StartTLS  bool        // dial plaintext, then upgrade with an extended op
	TLSConfig *tls.Config

	ConnectTimeout time.Duration // 0 = no deadline on Dial
	Timeout        time.Duration // per-request timeout; 0 = none
	IdleTimeout    time.Duration // 0 = no idle event
	SocketTimeout  time.Duration // 0 = no read deadline between messages on an open socket

	QueueSize    int               // buffered requests while disconnected; 0 = unbounded
	QueueTimeout time.Duration     // how long a buffered request may wait; 0 = never expires
	QueueDisable bool              // refuse to buffer at all; every request fails fast while disconnected
	Reconnect    *ReconnectOptions // nil = one dial attempt, no automatic retries

	// SetupHooks run in series against a RestrictedClient once a
	// transport is dialed but before it is made generally available
	// (e.g. an automatic Bind). Each hook sees the same transport; a
	// hook returning an error fails the whole connect attempt.
	SetupHooks []func(*RestrictedClient) *Error

	Logger zerolog.Logger
}

// Client is a single logical LDAP session that outlives any one
// Transport. It is safe for concurrent use by multiple goroutines.
type Client struct {
	opts Options

	mu           sync.Mutex
	state        clientState
	tr           *transport
	reconnectGen int

	destroyOnce sync.Once
	destroyed   chan struct{}

	queue  *requestQueue
	events *eventBus

	idleMu    sync.Mutex
	idleTimer *time.Timer
}

// NewClient builds a Client from opts. Dialing does not happen until
// Connect, or until the first operation if a Reconnect policy is set.
func NewClient(opts Options) *Client {
	if opts.Network == "" {
		opts.Network = "tcp"
	}

	c := &Client{
		opts:      opts,
		queue:     newRequestQueue(opts.QueueSize, opts.QueueTimeout, opts.QueueDisable),
		events:    newEventBus(),
		destroyed: make(chan struct{}),
	}
	c.queue.onExpiry = func() {
		c.events.emit(Event{Kind: EventError, Err: NewError(ErrorQueueTimeout, errors.New("request queue timed out while disconnected"))})
	}
	return c
}

func (c *Client) dialOptions() dialOptions {
	return dialOptions{
		Network:        c.opts.Network,
		Addr:           c.opts.Addr,
		TLS:            c.opts.TLS,
		StartTLS:       c.opts.StartTLS,
		TLSConfig:      c.opts.TLSConfig,
		ConnectTimeout: c.opts.ConnectTimeout,
		SocketTimeout:  c.opts.SocketTimeout,
	}
}

// runSetupHooks invokes every configured SetupHook in series against a
// RestrictedClient bound to tr, before tr is installed as the client's
// live transport: hooks see bind/search/unbind only and bypass the
// request queue entirely, since the queue doesn't belong to tr yet. A
// hook failure fails the whole connect attempt.
func (c *Client) runSetupHooks(tr *transport) *Error {
	if len(c.opts.SetupHooks) == 0 {
		return nil
	}
	rc := &RestrictedClient{client: c, tr: tr}
	for _, hook := range c.opts.SetupHooks {
		if err := hook(rc); err != nil {
			return err
		}
	}
	c.events.emit(Event{Kind: EventSetup})
	return nil
}

// Connect establishes the first transport. With no Reconnect policy
// configured this blocks for exactly one dial attempt and returns its
// outcome; with one configured it hands off to the backoff loop and
// returns immediately, since a first attempt failing is not, in that
// configuration, a final answer.
func (c *Client) Connect() *Error {
	c.mu.Lock()
	if c.state == stateDestroyed {
		c.mu.Unlock()
		return NewError(ErrorClientDestroyed, errors.New("client destroyed"))
	}
	c.mu.Unlock()

	if c.opts.Reconnect != nil {
		c.requestConnect()
		return nil
	}

	tr, err := dialTransport(c.dialOptions(), c.opts.Logger)
	if err != nil {
		c.events.emit(Event{Kind: EventConnectError, Err: err})
		return err
	}
	if err := c.runSetupHooks(tr); err != nil {
		tr.teardown(errors.New("setup hook failed: " + err.Error()))
		c.events.emit(Event{Kind: EventConnectError, Err: err})
		return err
	}
	c.installTransport(tr)
	return nil
}

// installTransport makes tr the client's live transport, starts its
// reader, and flushes anything the request queue accumulated while
// disconnected.
func (c *Client) installTransport(tr *transport) {
	c.mu.Lock()
	if c.state == stateDestroyed {
		c.mu.Unlock()
		tr.teardown(errors.New("client destroyed"))
		return
	}
	c.tr = tr
	c.state = stateConnected
	c.mu.Unlock()

	tr.onClosed = c.onTransportClosed
	tr.table.onSizeChange = c.onTableSizeChange
	go tr.readLoop()

	c.queue.flush(func(e *queueEntry) {
		if err := e.submit(tr); err != nil {
			e.fail(err)
		}
	})

	c.events.emit(Event{Kind: EventConnect})
}

// onTransportClosed runs once per transport, after its table has
// already been drained (transport.teardown), and decides whether this
// was Destroy() tearing things down or an unplanned drop that the
// reconnect driver should respond to.
func (c *Client) onTransportClosed(cause error) {
	c.mu.Lock()
	wasDestroyed := c.state == stateDestroyed
	c.tr = nil
	if !wasDestroyed {
		c.state = stateDisconnected
	}
	c.mu.Unlock()

	if wasDestroyed {
		c.events.emit(Event{Kind: EventClose})
		return
	}
	if IsErrorWithCode(cause, ErrorSocketTimeout) {
		c.events.emit(Event{Kind: EventSocketTimeout})
	} else {
		c.events.emit(Event{Kind: EventEnd})
	}
	if c.opts.Reconnect != nil {
		c.requestConnect()
	}
}

// currentTransport returns the live transport, or nil if there isn't
// one right now — the signal send() uses to decide queue vs. submit.
func (c *Client) currentTransport() *transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateConnected {
		return nil
	}
	return c.tr
}

// PauseQueuing freezes the request queue: new requests made while
// disconnected fail immediately instead of buffering, without
// discarding what is already queued.
func (c *Client) PauseQueuing() { c.queue.freeze() }

// ResumeQueuing un-freezes a queue previously paused with
// PauseQueuing.
func (c *Client) ResumeQueuing() { c.queue.thaw() }

// onTableSizeChange drives idle detection: once the table empties, arm
// a timer; any new entry installed before it fires cancels it. A zero
// IdleTimeout disables the feature entirely.
func (c *Client) onTableSizeChange(size int) {
	if c.opts.IdleTimeout <= 0 {
		return
	}
	c.idleMu.Lock()
	defer c.idleMu.Unlock()

	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	if size == 0 {
		c.idleTimer = time.AfterFunc(c.opts.IdleTimeout, func() {
			c.events.emit(Event{Kind: EventIdle})
		})
	}
}

// Destroy tears the client down permanently: the live transport (if
// any) is closed, the request queue is purged, and no further
// reconnect attempt will start. Destroy is idempotent.
func (c *Client) Destroy() *Error {
	c.mu.Lock()
	if c.state == stateDestroyed {
		c.mu.Unlock()
		return nil
	}
	c.state = stateDestroyed
	c.reconnectGen++
	tr := c.tr
	c.tr = nil
	c.mu.Unlock()

	c.destroyOnce.Do(func() { close(c.destroyed) })

	c.queue.purge(NewError(ErrorClientDestroyed, errors.New("client destroyed")))
	if tr != nil {
		tr.teardown(errors.New("client destroyed"))
	}
	c.events.emit(Event{Kind: EventDestroy})
	return nil
}

// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains the reconnect driver: exponential backoff re-dialing,
// run as a single background goroutine per "generation" so a
// Destroy() (which bumps the generation) can always cancel a loop
// that is mid-sleep.
package ldap

import (
	"errors"
	"time"
)

// ReconnectOptions configures the reconnect driver's backoff. A nil
// *ReconnectOptions on Options means "try once; give up on the first
// failure", matching a caller who wants Connect's result to be final.
type ReconnectOptions struct {
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // backoff ceiling; 0 = unbounded growth
	FailAfter    int           // give up after this many failed attempts; 0 = retry forever
}

// requestConnect ensures exactly one reconnect loop is running. Safe
// to call repeatedly: a loop already connecting, connected, or a
// destroyed client are all no-ops.
func (c *Client) requestConnect() {
	c.mu.Lock()
	if c.state == stateConnecting || c.state == stateConnected || c.state == stateDestroyed {
		c.mu.Unlock()
		return
	}
	c.state = stateConnecting
	gen := c.reconnectGen
	c.mu.Unlock()

	go c.reconnectLoop(gen)
}

// reconnectLoop dials, retrying with exponential backoff, until it
// succeeds, the generation it was started under goes stale (Destroy
// bumped it), or the retry budget in
// opts.Reconnect runs out. On giving up it purges the request queue
// so every buffered caller observes a terminal error instead of
// hanging forever.
func (c *Client) reconnectLoop(gen int) {
	var delay time.Duration
	attempt := 0

	for {
		c.mu.Lock()
		stale := c.reconnectGen != gen || c.state == stateDestroyed
		c.mu.Unlock()
		if stale {
			return
		}

		tr, err := dialTransport(c.dialOptions(), c.opts.Logger)
		if err == nil {
			if hookErr := c.runSetupHooks(tr); hookErr != nil {
				tr.teardown(errors.New("setup hook failed: " + hookErr.Error()))
				err = hookErr
			} else {
				c.installTransport(tr)
				return
			}
		}

		attempt++
		c.events.emit(Event{Kind: EventConnectError, Err: err})

		giveUp := c.opts.Reconnect == nil ||
			(c.opts.Reconnect.FailAfter > 0 && attempt >= c.opts.Reconnect.FailAfter)
		if giveUp {
			c.mu.Lock()
			if c.reconnectGen == gen && c.state != stateDestroyed {
				c.state = stateDisconnected
			}
			c.mu.Unlock()
			giveUpKind := EventError
			if IsErrorWithCode(err, ErrorConnectTimeout) {
				giveUpKind = EventConnectTimeout
			}
			c.events.emit(Event{Kind: giveUpKind, Err: err})
			c.queue.purge(NewError(ErrorNetwork, errors.New("reconnect gave up: "+err.Error())))
			return
		}

		delay = nextBackoff(delay, c.opts.Reconnect)
		select {
		case <-time.After(delay):
		case <-c.destroyed:
			return
		}
	}
}

// nextBackoff doubles prev (or returns InitialDelay for the first
// retry), capped at MaxDelay when one is set.
func nextBackoff(prev time.Duration, ro *ReconnectOptions) time.Duration {
	if ro == nil {
		return 0
	}
	if prev <= 0 {
		return ro.InitialDelay
	}
	next := prev * 2
	if ro.MaxDelay > 0 && next > ro.MaxDelay {
		return ro.MaxDelay
	}
	return next
}

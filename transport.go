// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains transport: one connected byte-stream, its per-connection
// messageID counter, its request table, and the read loop that frames
// and routes incoming LDAPMessages back to their waiting callers.
package ldap

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/rs/zerolog"
)

type transport struct {
	conn          net.Conn
	log           zerolog.Logger
	socketTimeout time.Duration // 0 = no read deadline between messages

	writeMu sync.Mutex // write order on the wire == order of submit calls

	idMu   sync.Mutex
	nextID uint32

	table    *requestTable
	unbindID uint64
	unbindMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}

	// onClosed fires exactly once, after the table has been drained,
	// so the owning Client can decide whether to reconnect.
	onClosed func(err error)
}

func newTransport(conn net.Conn, log zerolog.Logger, socketTimeout time.Duration) *transport {
	tr := &transport{
		conn:          conn,
		log:           log,
		socketTimeout: socketTimeout,
		table:         newRequestTable(),
		closed:        make(chan struct{}),
	}
	return tr
}

// nextMessageID allocates the next id for this transport: counter
// starts at 0, first call yields 1, wraps to 1 after 2^31-1. 0 is
// never handed out, since RFC 4511 reserves it for unsolicited
// notifications.
func (tr *transport) nextMessageID() uint64 {
	tr.idMu.Lock()
	defer tr.idMu.Unlock()
	if tr.nextID >= maxMessageID {
		tr.nextID = 0
	}
	tr.nextID++
	return uint64(tr.nextID)
}

// dialOptions is the subset of Options the dialer needs; kept separate
// from the public Options so dialTransport does not depend on a full
// Client.
type dialOptions struct {
	Network        string // "tcp" or "unix"
	Addr           string
	TLS            bool // dial straight into TLS (ldaps://)
	StartTLS       bool // plaintext dial, then upgrade before setup hooks run
	TLSConfig      *tls.Config
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration // 0 = no idle-socket read deadline
}

// dialTransport opens the socket, applying a connect timeout if one
// is configured, then performs TLS/StartTLS setup before the
// transport is handed back usable.
func dialTransport(opts dialOptions, log zerolog.Logger) (*transport, *Error) {
	network := opts.Network
	if network == "" {
		network = "tcp"
	}

	var conn net.Conn
	var err error
	if opts.ConnectTimeout > 0 {
		conn, err = net.DialTimeout(network, opts.Addr, opts.ConnectTimeout)
		if err != nil && isTimeoutErr(err) {
			return nil, NewError(ErrorConnectTimeout, errors.New("connection timeout"))
		}
	} else {
		conn, err = net.Dial(network, opts.Addr)
	}
	if err != nil {
		return nil, NewError(ErrorNetwork, err)
	}

	if opts.TLS {
		tlsConn := tls.Client(conn, opts.TLSConfig)
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, NewError(ErrorNetwork, err)
		}
		conn = tlsConn
	}

	tr := newTransport(conn, log, opts.SocketTimeout)

	if opts.StartTLS {
		if err := tr.startTLS(opts.TLSConfig); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return tr, nil
}

func isTimeoutErr(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// startTLS sends the StartTLS extended request and, on success (code
// 0), wraps the connection with a TLS client.
func (tr *transport) startTLS(cfg *tls.Config) *Error {
	messageID := tr.nextMessageID()

	req := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationExtendedRequest, nil, "Start TLS")
	req.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, "1.3.6.1.4.1.1466.20037", "TLS Extended Command"))
	envelope := encodeMessage(messageID, req, nil)

	if _, err := tr.conn.Write(envelope.Bytes()); err != nil {
		return NewError(ErrorNetwork, err)
	}

	packet, err := ber.ReadPacket(tr.conn)
	if err != nil {
		return NewError(ErrorNetwork, err)
	}
	msg, decErr := decodeOne(packet)
	if decErr != nil {
		return decErr
	}
	result, decErr := decodeLDAPResult(msg.Op)
	if decErr != nil {
		return decErr
	}
	if result.ResultCode != LDAPResultSuccess {
		return newServerError(result.ResultCode, result.MatchedDN, result.DiagnosticMessage)
	}

	tr.conn = tls.Client(tr.conn, cfg)
	return nil
}

// write serializes envelope and writes it in one critical section so
// concurrent submit calls cannot interleave their bytes on the wire.
func (tr *transport) write(envelope *ber.Packet) *Error {
	buf := envelope.Bytes()
	tr.writeMu.Lock()
	defer tr.writeMu.Unlock()
	for len(buf) > 0 {
		n, err := tr.conn.Write(buf)
		if err != nil {
			return NewError(ErrorNetwork, err)
		}
		buf = buf[n:]
	}
	return nil
}

// readLoop reads one framed LDAPMessage at a time (ber.ReadPacket
// performs the outer-SEQUENCE-length framing) and dispatches it by
// messageID until the connection errors or is closed.
func (tr *transport) readLoop() {
	var teardownErr error
	for {
		if tr.socketTimeout > 0 {
			tr.conn.SetReadDeadline(time.Now().Add(tr.socketTimeout))
		}
		packet, err := ber.ReadPacket(tr.conn)
		if err != nil {
			if tr.socketTimeout > 0 && isTimeoutErr(err) {
				teardownErr = NewError(ErrorSocketTimeout, err)
			} else {
				teardownErr = err
			}
			break
		}
		msg, decErr := decodeOne(packet)
		if decErr != nil {
			tr.log.Error().Err(decErr).Msg("malformed LDAPMessage, tearing down transport")
			teardownErr = decErr
			break
		}
		tr.route(msg)
	}
	tr.teardown(teardownErr)
}

func (tr *transport) route(msg *decodedMessage) {
	pending, ok := tr.table.peek(msg.MessageID)
	if !ok {
		tr.log.Error().Uint64("messageID", msg.MessageID).Msg("unsolicited message")
		return
	}
	tr.deliver(pending, msg)
}

// deliver routes one response to its pending request: stream
// entries/references stay outstanding, a SearchResultDone may trigger
// a paged continuation, and everything else is terminal.
func (tr *transport) deliver(pending *pendingRequest, msg *decodedMessage) {
	if pending.sentinel == "abandon" {
		return // write already resolved the completion; ignore any reply
	}

	if pending.stream != nil {
		tr.deliverSearch(pending, msg)
		return
	}

	tr.finishPending(pending.messageID)
	if pending.timer != nil {
		pending.timer.Stop()
	}
	pending.single(msg, nil)
}

// finishPending removes id from the table; called on the read loop's
// terminal delivery paths (final response, decode or paging failure).
// The local timeout and teardown remove entries through the table
// directly.
func (tr *transport) finishPending(id uint64) {
	tr.table.take(id)
}

// teardown runs once per transport: it drains the request table
// (resolving the pending Unbind, if any, as success and everything
// else with a network error) and notifies the owner.
func (tr *transport) teardown(cause error) {
	tr.closeOnce.Do(func() {
		close(tr.closed)
		tr.conn.Close()

		connErr := NewError(ErrorNetwork, fmt.Errorf("transport closed: %w", firstNonNil(cause, errors.New("connection closed"))))

		for _, pending := range tr.table.drain() {
			if pending.timer != nil {
				pending.timer.Stop()
			}
			switch {
			case pending.sentinel == "unbind":
				// The Unbind the client itself sent resolves
				// successfully: the write succeeding was the point,
				// closing the connection is what got us here.
				if pending.single != nil {
					pending.single(nil, nil)
				}
			case pending.sentinel == "abandon":
				// Already resolved at submit time.
			case pending.stream != nil:
				deliverSearchError(pending.stream, connErr)
			case pending.single != nil:
				pending.single(nil, connErr)
			}
		}

		if tr.onClosed != nil {
			tr.onClosed(cause)
		}
	})
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

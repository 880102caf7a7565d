// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains the error taxonomy used across the client.
package ldap

import "fmt"

// RFC 4511 Appendix A result codes the client maps into ServerError
// values. Only the subset the core needs to name specially appears
// here; any other code still round-trips through Error.ResultCode.
const (
	LDAPResultSuccess                  uint8 = 0
	LDAPResultOperationsError          uint8 = 1
	LDAPResultProtocolError            uint8 = 2
	LDAPResultTimeLimitExceeded        uint8 = 3
	LDAPResultSizeLimitExceeded        uint8 = 4
	LDAPResultCompareFalse             uint8 = 5
	LDAPResultCompareTrue              uint8 = 6
	LDAPResultAuthMethodNotSupported   uint8 = 7
	LDAPResultInvalidCredentials       uint8 = 49
	LDAPResultInsufficientAccessRights uint8 = 50
	LDAPResultBusy                     uint8 = 51
	LDAPResultUnavailable              uint8 = 52
	LDAPResultNoSuchObject             uint8 = 32
	LDAPResultOther                    uint8 = 80
)

// Core-only result codes. These never appear on the wire; they are
// synthesized by the client itself and share the Error.ResultCode
// space with the RFC 4511 codes above, at values RFC 4511 does not use.
const (
	ErrorNetwork          uint8 = 200 + iota // dial/read/write failure
	ErrorEncoding                            // could not serialize a request PDU
	ErrorDecoding                            // malformed response PDU
	ErrorInvalidArgument                     // bad caller input, never crosses the wire
	ErrorConnectTimeout                      // dial exceeded ConnectTimeout
	ErrorQueueTimeout                        // entry aged out of the request queue
	ErrorClientDestroyed                     // Destroy() was called
	ErrorSocketTimeout                       // SocketTimeout elapsed with no bytes read
	ErrorDebugging                           // failure decorating a packet for Debug output
	ErrorAbandoned                           // local Abandon() removed the request before it completed
)

// resultDescriptions names the core-only codes for error messages;
// RFC 4511 codes are described by the server's own errorMessage.
var resultDescriptions = map[uint8]string{
	ErrorNetwork:         "network error",
	ErrorEncoding:        "encoding error",
	ErrorDecoding:        "decoding error",
	ErrorInvalidArgument: "invalid argument",
	ErrorConnectTimeout:  "connection timeout",
	ErrorQueueTimeout:    "request queue timeout",
	ErrorClientDestroyed: "client destroyed",
	ErrorSocketTimeout:   "socket read timeout",
	ErrorDebugging:       "debugging error",
}

// Error is the single error type the client returns. ResultCode is
// either an RFC 4511 result code (when it came from a server response)
// or one of the Error* sentinels above (when the client synthesized
// it locally).
type Error struct {
	Err        error
	ResultCode uint8
	MatchedDN  string
}

func (e *Error) Error() string {
	description, ok := resultDescriptions[e.ResultCode]
	if !ok {
		description = fmt.Sprintf("LDAP Result Code %d", e.ResultCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", description, e.Err.Error())
	}
	return description
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with the given result code.
func NewError(resultCode uint8, err error) *Error {
	return &Error{Err: err, ResultCode: resultCode}
}

// newServerError builds an Error from a decoded LDAPResult.
func newServerError(resultCode uint8, matchedDN, diagnosticMessage string) *Error {
	var err error
	if diagnosticMessage != "" {
		err = fmt.Errorf("%s", diagnosticMessage)
	}
	return &Error{Err: err, ResultCode: resultCode, MatchedDN: matchedDN}
}

// IsErrorWithCode reports whether err is an *Error carrying code.
func IsErrorWithCode(err error, code uint8) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.ResultCode == code
	}
	return false
}

// resultExpected reports whether code is among the set of "success"
// result codes a particular operation declared it would accept.
func resultExpected(code uint8, expected []uint8) bool {
	for _, e := range expected {
		if e == code {
			return true
		}
	}
	return false
}

package rpc

import (
	"errors"
	"fmt"
)

// Standard JSON-RPC error codes plus the bridge's own server-error range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeServerError      = -32000
	CodeCallTimeout      = -32001
	CodePeerSuperseded   = -32002
	CodePeerUnavailable  = -32003
	CodePeerDisconnected = -32004
)

// Error is the error object carried in a Response.
type Error struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// NewError builds an Error.
func NewError(code int, msg string, data map[string]any) *Error {
	return &Error{Code: code, Message: msg, Data: data}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// CodeName returns the symbolic name for a code.
func CodeName(code int) string {
	switch code {
	case CodeParseError:
		return "ParseError"
	case CodeInvalidRequest:
		return "InvalidRequest"
	case CodeMethodNotFound:
		return "MethodNotFound"
	case CodeInvalidParams:
		return "InvalidParams"
	case CodeInternalError:
		return "InternalError"
	case CodeServerError:
		return "ServerError"
	case CodeCallTimeout:
		return "CallTimeout"
	case CodePeerSuperseded:
		return "PeerSuperseded"
	case CodePeerUnavailable:
		return "PeerUnavailable"
	case CodePeerDisconnected:
		return "PeerDisconnected"
	}
	return "Unknown"
}

// AsError reports whether err is, or wraps, an *Error.
func AsError(err error) (*Error, bool) {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// ErrMethodNotFound reports an unresolvable path, a non-invocable target or an unknown tag.
func ErrMethodNotFound(msg string, data map[string]any) *Error {
	return NewError(CodeMethodNotFound, msg, data)
}

// ErrInternal wraps an unexpected failure while resolving or invoking method.
func ErrInternal(method string, err error) *Error {
	return NewError(CodeInternalError,
		fmt.Sprintf("Error processing '%s': %v", method, err),
		map[string]any{"method": method, "error": err.Error()})
}

// ErrCallTimeout is returned when no response arrived in time.
func ErrCallTimeout(id string) *Error {
	return NewError(CodeCallTimeout, "call timed out waiting for peer response", map[string]any{"id": id})
}

// ErrPeerSuperseded fails calls pending against a peer that was replaced.
func ErrPeerSuperseded(peerID string) *Error {
	return NewError(CodePeerSuperseded, "peer superseded by a newer connection", map[string]any{"peer": peerID})
}

// ErrPeerUnavailable is returned when a call is attempted with no active peer.
func ErrPeerUnavailable() *Error {
	return NewError(CodePeerUnavailable, "no extension peer is connected", nil)
}

// ErrPeerDisconnected fails calls pending against a peer whose connection closed.
func ErrPeerDisconnected(peerID string) *Error {
	return NewError(CodePeerDisconnected, "peer disconnected before responding", map[string]any{"peer": peerID})
}

// Package rpc defines the wire messages exchanged between the host and an
// extension peer along with their error codes.
package rpc

import (
	"encoding/json"
	"fmt"
)

// Request is a call sent from the host to the peer.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the peer's answer to a Request.
// Exactly one of Result or Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// emptyResult is what an absent result is encoded as on the wire.
var emptyResult = json.RawMessage(`""`)

// NewRequest builds a request, encoding params as a JSON array or object.
// A nil params value is sent as an empty array.
func NewRequest(id, method string, params any) (*Request, error) {
	raw, err := encodeParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params for %s: %w", method, err)
	}
	return &Request{ID: id, Method: method, Params: raw}, nil
}

func encodeParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return json.RawMessage(`[]`), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage(`[]`), nil
		}
		return p, nil
	}
	return json.Marshal(params)
}

// Success builds a result response. A nil result is encoded as an empty string
// so the field is always present.
func Success(id string, result any) (*Response, error) {
	if result == nil {
		return &Response{ID: id, Result: emptyResult}, nil
	}
	if raw, ok := result.(json.RawMessage); ok {
		if len(raw) == 0 || string(raw) == "null" {
			raw = emptyResult
		}
		return &Response{ID: id, Result: raw}, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	if string(raw) == "null" {
		raw = emptyResult
	}
	return &Response{ID: id, Result: raw}, nil
}

// Failure builds an error response.
func Failure(id string, err *Error) *Response {
	return &Response{ID: id, Error: err}
}

// DecodeRequest parses a raw request frame.
func DecodeRequest(raw []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, NewError(CodeParseError, "parse error", map[string]any{"error": err.Error()})
	}
	if req.Method == "" {
		return &req, NewError(CodeInvalidRequest, "method is required", map[string]any{"id": req.ID})
	}
	return &req, nil
}

// DecodeResponse parses a raw response frame. A frame without an id cannot be
// correlated and is reported as invalid.
func DecodeResponse(raw []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.ID == "" {
		return &resp, fmt.Errorf("response has no id")
	}
	return &resp, nil
}

// Params splits raw params into positional arguments. An object is returned
// as a single argument, matching how named params reach a handler.
func Params(raw json.RawMessage) ([]json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var args []json.RawMessage
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		return args, nil
	case '{':
		return []json.RawMessage{raw}, nil
	}
	return nil, fmt.Errorf("params must be an array or an object")
}

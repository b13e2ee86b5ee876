package rpc

import (
	"bytes"
	"encoding/json"
)

// Content is one text block of a normalized result.
type Content struct {
	Type string `json:"type" yaml:"type"`
	Text string `json:"text" yaml:"text"`
}

// Result is the uniform envelope every call resolves to. Failures are values:
// IsError is set and the text carries the error message.
type Result struct {
	Content []Content       `json:"content" yaml:"content"`
	IsError bool            `json:"isError,omitempty" yaml:"is_error,omitempty"`
	Code    int             `json:"code,omitempty" yaml:"code,omitempty"`
	Value   json.RawMessage `json:"-" yaml:"-"`
}

// Text returns the concatenated text of all content blocks.
func (r Result) Text() string {
	if len(r.Content) == 1 {
		return r.Content[0].Text
	}
	var b bytes.Buffer
	for i, c := range r.Content {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.Text)
	}
	return b.String()
}

// TextResult wraps a successful text value.
func TextResult(text string) Result {
	return Result{Content: []Content{{Type: "text", Text: text}}}
}

// ErrorResult normalizes an error into a failure envelope.
func ErrorResult(err error) Result {
	r := Result{
		Content: []Content{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
	if rpcErr, ok := AsError(err); ok {
		r.Content[0].Text = rpcErr.Message
		r.Code = rpcErr.Code
	}
	return r
}

// FromResponse normalizes a peer response.
func FromResponse(resp *Response) Result {
	if resp.Error != nil {
		return ErrorResult(resp.Error)
	}
	r := TextResult(ResultText(resp.Result))
	r.Value = resp.Result
	return r
}

// ResultText renders a raw result value as text: a JSON string is unquoted,
// null or absent is empty, anything else is compact JSON.
func ResultText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return string(raw)
	}
	return b.String()
}

package rpc

import "strings"

// Tag selects invoke (tool) or read (resource) semantics for a method path.
type Tag string

const (
	TagTool     Tag = "tool"
	TagResource Tag = "resource"
)

// Valid reports whether t is one of the two known tags.
func (t Tag) Valid() bool {
	return t == TagTool || t == TagResource
}

// Encode joins a tag and a dotted name into a tagged method, e.g. "tool.alert".
func Encode(tag Tag, name string) string {
	return string(tag) + "." + name
}

// Decode splits a tagged method into its tag and path. It is the inverse of
// Encode; ok is false when method has no separator. The tag is returned as-is
// and may not be Valid.
func Decode(method string) (tag Tag, path string, ok bool) {
	head, rest, found := strings.Cut(method, ".")
	if !found {
		return Tag(method), "", false
	}
	return Tag(head), rest, true
}

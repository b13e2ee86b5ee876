// Package peer is the remote side of the extension socket. It resolves tagged
// method paths against a capability table built at startup and answers the
// host with results or typed errors.
package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"extsock/rpc"
	"extsock/validate"
)

// ToolFunc implements an invocable member. recv is the object the member was
// found on, the equivalent of a receiver-bound call.
type ToolFunc func(ctx context.Context, recv *Object, args []json.RawMessage) (any, error)

// GetterFunc computes a readable member's current value on every read.
type GetterFunc func(ctx context.Context) (any, error)

type memberKind int

const (
	kindValue memberKind = iota
	kindGetter
	kindMethod
	kindObject
)

type member struct {
	kind   memberKind
	value  any
	getter GetterFunc
	method ToolFunc
	object *Object
}

// Object is a node of the scope graph. Members are values, getters, methods
// or child objects. Objects are safe for concurrent use.
type Object struct {
	mu      sync.RWMutex
	name    string
	members map[string]member
}

// NewScope returns an empty root object.
func NewScope() *Object {
	return newObject("window")
}

func newObject(name string) *Object {
	return &Object{name: name, members: make(map[string]member)}
}

// Name returns the object's own name.
func (o *Object) Name() string {
	return o.name
}

// Set stores a plain value under name.
func (o *Object) Set(name string, v any) *Object {
	return o.put(name, member{kind: kindValue, value: v})
}

// Getter installs a computed value under name.
func (o *Object) Getter(name string, fn GetterFunc) *Object {
	return o.put(name, member{kind: kindGetter, getter: fn})
}

// Method installs an invocable member under name.
func (o *Object) Method(name string, fn ToolFunc) *Object {
	return o.put(name, member{kind: kindMethod, method: fn})
}

// Object returns the child object called name, creating it if needed. A
// non-object member of the same name is replaced.
func (o *Object) Object(name string) *Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	if m, ok := o.members[name]; ok && m.kind == kindObject {
		return m.object
	}
	child := newObject(name)
	o.members[name] = member{kind: kindObject, object: child}
	return child
}

// Get returns a plain value stored with Set.
func (o *Object) Get(name string) (any, bool) {
	m, ok := o.lookup(name)
	if !ok || m.kind != kindValue {
		return nil, false
	}
	return m.value, true
}

// Names returns the sorted member names.
func (o *Object) Names() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.members))
	for name := range o.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Define installs v at a dotted path, creating intermediate objects. v may be
// a ToolFunc, a GetterFunc, an *Object or a plain value.
func (o *Object) Define(path string, v any) error {
	parts, err := validate.SplitPath(path)
	if err != nil {
		return err
	}
	owner := o
	for _, part := range parts[:len(parts)-1] {
		owner = owner.Object(part)
	}
	last := parts[len(parts)-1]
	switch fn := v.(type) {
	case ToolFunc:
		owner.Method(last, fn)
	case func(context.Context, *Object, []json.RawMessage) (any, error):
		owner.Method(last, fn)
	case GetterFunc:
		owner.Getter(last, fn)
	case func(context.Context) (any, error):
		owner.Getter(last, fn)
	case *Object:
		fn.name = last
		owner.put(last, member{kind: kindObject, object: fn})
	default:
		owner.Set(last, v)
	}
	return nil
}

// Snapshot returns the readable state of o as a map. Getters are evaluated,
// child objects are expanded and methods are skipped.
func (o *Object) Snapshot(ctx context.Context) (map[string]any, error) {
	o.mu.RLock()
	members := make(map[string]member, len(o.members))
	for k, m := range o.members {
		members[k] = m
	}
	o.mu.RUnlock()

	out := make(map[string]any, len(members))
	for name, m := range members {
		if m.kind == kindMethod {
			continue
		}
		v, err := m.read(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", o.name, name, err)
		}
		out[name] = v
	}
	return out, nil
}

func (o *Object) put(name string, m member) *Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.members[name] = m
	return o
}

func (o *Object) lookup(name string) (member, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	m, ok := o.members[name]
	return m, ok
}

// read returns the member's current value. Methods have no readable value.
func (m member) read(ctx context.Context) (any, error) {
	switch m.kind {
	case kindValue:
		return m.value, nil
	case kindGetter:
		return m.getter(ctx)
	case kindObject:
		return m.object.Snapshot(ctx)
	}
	return nil, nil
}

// Arg decodes positional argument i into T. A missing argument yields T's zero
// value when optional is true and an InvalidParams error otherwise.
func Arg[T any](args []json.RawMessage, i int, optional bool) (T, error) {
	var v T
	if i >= len(args) {
		if optional {
			return v, nil
		}
		return v, rpc.NewError(rpc.CodeInvalidParams, fmt.Sprintf("missing argument %d", i), map[string]any{"index": i})
	}
	if err := json.Unmarshal(args[i], &v); err != nil {
		return v, rpc.NewError(rpc.CodeInvalidParams, fmt.Sprintf("argument %d: %v", i, err), map[string]any{"index": i})
	}
	return v, nil
}

package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"extsock/rpc"
)

// Resolver maps tagged methods onto members of a scope.
type Resolver struct {
	root *Object
	log  *slog.Logger
}

// NewResolver returns a resolver over root.
func NewResolver(root *Object, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{root: root, log: logger.With("component", "resolver")}
}

// Handle resolves method and either reads it (resource) or invokes it (tool).
// Every failure is returned as a typed *rpc.Error.
func (r *Resolver) Handle(ctx context.Context, method string, params json.RawMessage) (result any, rerr *rpc.Error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("handler panicked", "method", method, "panic", p)
			result, rerr = nil, rpc.ErrInternal(method, fmt.Errorf("panic: %v", p))
		}
	}()

	tag, path, ok := rpc.Decode(method)
	if !ok || path == "" || !tag.Valid() {
		return nil, rpc.ErrMethodNotFound(fmt.Sprintf("Method '%s' is not a valid type", method),
			map[string]any{"method": method})
	}

	parts := strings.Split(path, ".")
	owner := r.root
	for i, part := range parts[:len(parts)-1] {
		m, ok := owner.lookup(part)
		if !ok || m.kind != kindObject {
			prefix := strings.Join(parts[:i+1], ".")
			return nil, rpc.ErrMethodNotFound(fmt.Sprintf("Object '%s' not found in context", prefix),
				map[string]any{"path": prefix})
		}
		owner = m.object
	}
	target, found := owner.lookup(parts[len(parts)-1])

	switch tag {
	case rpc.TagResource:
		if !found {
			return nil, rpc.ErrMethodNotFound(fmt.Sprintf("Resource '%s' not found", method),
				map[string]any{"method": method, "path": path})
		}
		v, err := target.read(ctx)
		if err != nil {
			return nil, typed(method, err)
		}
		return v, nil

	case rpc.TagTool:
		if !found || target.kind != kindMethod {
			return nil, rpc.ErrMethodNotFound(fmt.Sprintf("Method '%s' is not a function", method),
				map[string]any{"method": method, "path": path})
		}
		args, err := rpc.Params(params)
		if err != nil {
			return nil, rpc.NewError(rpc.CodeInvalidParams, err.Error(), map[string]any{"method": method})
		}
		v, err := target.method(ctx, owner, args)
		if err != nil {
			return nil, typed(method, err)
		}
		return v, nil
	}

	return nil, rpc.ErrMethodNotFound(fmt.Sprintf("Method '%s' is not a valid type", method),
		map[string]any{"method": method})
}

// typed passes typed errors through and wraps anything else as InternalError.
func typed(method string, err error) *rpc.Error {
	if rpcErr, ok := rpc.AsError(err); ok {
		return rpcErr
	}
	return rpc.ErrInternal(method, err)
}

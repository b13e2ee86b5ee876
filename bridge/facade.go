package bridge

import (
	"context"

	"extsock/rpc"
)

// Sender performs one tagged call. *Manager implements it.
type Sender interface {
	Send(ctx context.Context, method string, params any) rpc.Result
}

// Facade binds a tag to a Sender so callers only name the member they want.
type Facade struct {
	tag    rpc.Tag
	sender Sender
}

// NewTools returns a facade that invokes tools on the peer.
func NewTools(s Sender) *Facade {
	return &Facade{tag: rpc.TagTool, sender: s}
}

// NewResources returns a facade that reads resources from the peer.
func NewResources(s Sender) *Facade {
	return &Facade{tag: rpc.TagResource, sender: s}
}

// Tag returns the facade's bound tag.
func (f *Facade) Tag() rpc.Tag {
	return f.tag
}

// CallExtension encodes name with the facade's tag and sends params as a
// positional argument list.
func (f *Facade) CallExtension(ctx context.Context, name string, params ...any) rpc.Result {
	args := params
	if args == nil {
		args = []any{}
	}
	return f.sender.Send(ctx, rpc.Encode(f.tag, name), args)
}

package peer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"extsock/logging"
	"extsock/rpc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*Resolver, *Object) {
	t.Helper()
	root := NewScope()
	root.Object("navigator").Set("userAgent", "X")
	return NewResolver(root, logging.Discard()), root
}

func TestHandleUnknownTag(t *testing.T) {
	r, _ := newTestResolver(t)
	for _, method := range []string{
		"mcp:resource.navigator.userAgent",
		"exec.navigator.userAgent",
		"TOOL.alert",
		"navigator",
		"resource",
		"tool.",
		"",
	} {
		t.Run(method, func(t *testing.T) {
			_, err := r.Handle(context.Background(), method, nil)
			require.NotNil(t, err)
			assert.Equal(t, rpc.CodeMethodNotFound, err.Code)
		})
	}
}

func TestHandleResource(t *testing.T) {
	r, _ := newTestResolver(t)

	v, err := r.Handle(context.Background(), "resource.navigator.userAgent", nil)
	require.Nil(t, err)
	assert.Equal(t, "X", v)
}

func TestHandleResourceMissingField(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Handle(context.Background(), "resource.navigator.missingField", nil)
	require.NotNil(t, err)
	assert.Equal(t, rpc.CodeMethodNotFound, err.Code)
	assert.Equal(t, "navigator.missingField", err.Data["path"])
	assert.Equal(t, "resource.navigator.missingField", err.Data["method"])
}

func TestHandleMissingIntermediate(t *testing.T) {
	r, _ := newTestResolver(t)

	cases := []struct {
		method string
		prefix string
	}{
		{"resource.screen.width", "screen"},
		{"tool.screen.orientation.lock", "screen"},
		{"resource.navigator.userAgent.length", "navigator.userAgent"},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			_, err := r.Handle(context.Background(), tc.method, nil)
			require.NotNil(t, err)
			assert.Equal(t, rpc.CodeMethodNotFound, err.Code)
			assert.Equal(t, tc.prefix, err.Data["path"])
		})
	}
}

func TestHandleToolRecordsArgument(t *testing.T) {
	r, root := newTestResolver(t)

	var last string
	root.Method("alert", func(_ context.Context, _ *Object, args []json.RawMessage) (any, error) {
		msg, err := Arg[string](args, 0, false)
		if err != nil {
			return nil, err
		}
		last = msg
		return nil, nil
	})

	v, err := r.Handle(context.Background(), "tool.alert", json.RawMessage(`["hi"]`))
	require.Nil(t, err)
	assert.Nil(t, v)
	assert.Equal(t, "hi", last)

	resp, encErr := rpc.Success("1", v)
	require.NoError(t, encErr)
	assert.Equal(t, `""`, string(resp.Result))
}

func TestHandleToolReturnValue(t *testing.T) {
	r, root := newTestResolver(t)
	root.Object("math").Method("add", func(_ context.Context, _ *Object, args []json.RawMessage) (any, error) {
		a, err := Arg[float64](args, 0, false)
		if err != nil {
			return nil, err
		}
		b, err := Arg[float64](args, 1, false)
		if err != nil {
			return nil, err
		}
		return a + b, nil
	})

	v, err := r.Handle(context.Background(), "tool.math.add", json.RawMessage(`[2, 3]`))
	require.Nil(t, err)
	assert.Equal(t, 5.0, v)

	_, err = r.Handle(context.Background(), "tool.math.add", json.RawMessage(`[2]`))
	require.NotNil(t, err)
	assert.Equal(t, rpc.CodeInvalidParams, err.Code)
}

func TestHandleToolUsesReceiver(t *testing.T) {
	r, root := newTestResolver(t)
	doc := root.Object("document")
	doc.Set("title", "old")
	doc.Method("setTitle", func(_ context.Context, recv *Object, args []json.RawMessage) (any, error) {
		title, err := Arg[string](args, 0, false)
		if err != nil {
			return nil, err
		}
		recv.Set("title", title)
		return recv.Name(), nil
	})

	v, err := r.Handle(context.Background(), "tool.document.setTitle", json.RawMessage(`["new"]`))
	require.Nil(t, err)
	assert.Equal(t, "document", v)

	title, ok := doc.Get("title")
	require.True(t, ok)
	assert.Equal(t, "new", title)
}

func TestHandleToolNotInvocable(t *testing.T) {
	r, _ := newTestResolver(t)

	for _, method := range []string{"tool.navigator.userAgent", "tool.navigator", "tool.nothing"} {
		_, err := r.Handle(context.Background(), method, nil)
		require.NotNil(t, err, method)
		assert.Equal(t, rpc.CodeMethodNotFound, err.Code, method)
	}
}

func TestHandleWrapsHandlerFailures(t *testing.T) {
	r, root := newTestResolver(t)
	root.Method("fail", func(context.Context, *Object, []json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	})
	root.Method("deny", func(context.Context, *Object, []json.RawMessage) (any, error) {
		return nil, rpc.NewError(rpc.CodeServerError, "denied", nil)
	})
	root.Method("crash", func(context.Context, *Object, []json.RawMessage) (any, error) {
		panic("kaboom")
	})
	root.Getter("broken", func(context.Context) (any, error) {
		return nil, errors.New("unreadable")
	})

	_, err := r.Handle(context.Background(), "tool.fail", nil)
	require.NotNil(t, err)
	assert.Equal(t, rpc.CodeInternalError, err.Code)
	assert.Equal(t, "tool.fail", err.Data["method"])
	assert.Equal(t, "boom", err.Data["error"])

	_, err = r.Handle(context.Background(), "tool.deny", nil)
	require.NotNil(t, err)
	assert.Equal(t, rpc.CodeServerError, err.Code)

	_, err = r.Handle(context.Background(), "tool.crash", nil)
	require.NotNil(t, err)
	assert.Equal(t, rpc.CodeInternalError, err.Code)
	assert.Contains(t, err.Message, "kaboom")

	_, err = r.Handle(context.Background(), "resource.broken", nil)
	require.NotNil(t, err)
	assert.Equal(t, rpc.CodeInternalError, err.Code)
}

func TestHandleInvalidParamsShape(t *testing.T) {
	r, root := newTestResolver(t)
	root.Method("noop", func(context.Context, *Object, []json.RawMessage) (any, error) { return nil, nil })

	_, err := r.Handle(context.Background(), "tool.noop", json.RawMessage(`"scalar"`))
	require.NotNil(t, err)
	assert.Equal(t, rpc.CodeInvalidParams, err.Code)
}

func TestHandleNamedParams(t *testing.T) {
	r, root := newTestResolver(t)
	type fetchArgs struct {
		URL string `json:"url"`
	}
	root.Method("fetch", func(_ context.Context, _ *Object, args []json.RawMessage) (any, error) {
		in, err := Arg[fetchArgs](args, 0, false)
		if err != nil {
			return nil, err
		}
		return in.URL, nil
	})

	v, err := r.Handle(context.Background(), "tool.fetch", json.RawMessage(`{"url":"https://example.com"}`))
	require.Nil(t, err)
	assert.Equal(t, "https://example.com", v)
}

func TestHandleResourceObjectAndGetter(t *testing.T) {
	r, root := newTestResolver(t)
	calls := 0
	root.Object("navigator").Getter("hardwareConcurrency", func(context.Context) (any, error) {
		calls++
		return 8, nil
	})

	v, err := r.Handle(context.Background(), "resource.navigator.hardwareConcurrency", nil)
	require.Nil(t, err)
	assert.Equal(t, 8, v)

	v, err = r.Handle(context.Background(), "resource.navigator", nil)
	require.Nil(t, err)
	snap, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "X", snap["userAgent"])
	assert.Equal(t, 8, snap["hardwareConcurrency"])
	assert.Equal(t, 2, calls)
}

func TestDefine(t *testing.T) {
	root := NewScope()
	require.NoError(t, root.Define("location.href", "https://example.com"))
	require.NoError(t, root.Define("console.log", ToolFunc(func(context.Context, *Object, []json.RawMessage) (any, error) {
		return "logged", nil
	})))
	require.Error(t, root.Define("bad..path", 1))

	r := NewResolver(root, logging.Discard())
	v, err := r.Handle(context.Background(), "resource.location.href", nil)
	require.Nil(t, err)
	assert.Equal(t, "https://example.com", v)

	v, err = r.Handle(context.Background(), "tool.console.log", nil)
	require.Nil(t, err)
	assert.Equal(t, "logged", v)

	assert.Equal(t, []string{"console", "location"}, root.Names())
}

func TestBrowserScope(t *testing.T) {
	root := NewBrowserScope(PageInfo{UserAgent: "UA/1.0", Title: "start"}, logging.Discard())
	r := NewResolver(root, logging.Discard())

	v, err := r.Handle(context.Background(), "resource.navigator.userAgent", nil)
	require.Nil(t, err)
	assert.Equal(t, "UA/1.0", v)

	_, err = r.Handle(context.Background(), "tool.alert", json.RawMessage(`["hello"]`))
	require.Nil(t, err)
	last, ok := root.Get("lastAlert")
	require.True(t, ok)
	assert.Equal(t, "hello", last)

	v, err = r.Handle(context.Background(), "tool.document.setTitle", json.RawMessage(`["next"]`))
	require.Nil(t, err)
	assert.Equal(t, "next", v)
	v, err = r.Handle(context.Background(), "resource.document.title", nil)
	require.Nil(t, err)
	assert.Equal(t, "next", v)

	_, err = r.Handle(context.Background(), "tool.console.log", json.RawMessage(`["a", 1]`))
	require.Nil(t, err)
}

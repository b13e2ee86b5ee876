package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"extsock/rpc"

	"github.com/coder/websocket"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second

	maxMessageSize = 4 << 20
)

// ErrRetriesExhausted is returned by Run after the last reconnect attempt fails.
var ErrRetriesExhausted = errors.New("peer: reconnect attempts exhausted")

// DialFunc opens a websocket connection to url.
type DialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

// ClientOptions configures a Client.
type ClientOptions struct {
	URL        string
	MaxRetries int
	BaseDelay  time.Duration
	Logger     *slog.Logger
	// OnError receives the single terminal error emitted when reconnecting
	// gives up.
	OnError func(*rpc.Error)
	Dial    DialFunc
}

// Client connects to the host and serves its calls with a Resolver.
type Client struct {
	opts     ClientOptions
	resolver *Resolver
	log      *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Client. Zero MaxRetries and BaseDelay take the defaults;
// use a negative MaxRetries to disable reconnecting.
func NewClient(resolver *Resolver, opts ClientOptions) *Client {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Dial == nil {
		opts.Dial = dialWebsocket
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		opts:     opts,
		resolver: resolver,
		log:      logger.With("component", "peer", "url", opts.URL),
		sleep:    sleepCtx,
	}
}

func dialWebsocket(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	return conn, err
}

// Run connects and serves until ctx is done, the host closes the connection
// cleanly, or reconnecting fails MaxRetries times in a row. In the last case
// exactly one InternalError is passed to OnError and returned.
func (c *Client) Run(ctx context.Context) error {
	failures := 0
	for {
		conn, err := c.opts.Dial(ctx, c.opts.URL)
		if err == nil {
			failures = 0
			c.log.Info("connected to host")
			err = c.serve(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
			if status := websocket.CloseStatus(err); status != -1 {
				c.log.Info("host closed connection", "status", status.String())
				return nil
			}
			c.log.Warn("connection lost", "error", err)
		} else if ctx.Err() != nil {
			return nil
		}

		if failures >= c.opts.MaxRetries {
			rpcErr := rpc.NewError(rpc.CodeInternalError,
				fmt.Sprintf("giving up after %d reconnect attempts: %v", failures, err),
				map[string]any{"url": c.opts.URL, "attempts": failures})
			c.log.Error("reconnect attempts exhausted", "attempts", failures, "error", err)
			if c.opts.OnError != nil {
				c.opts.OnError(rpcErr)
			}
			return fmt.Errorf("%w: %w", ErrRetriesExhausted, rpcErr)
		}

		failures++
		delay := time.Duration(failures) * c.opts.BaseDelay
		c.log.Debug("reconnecting", "attempt", failures, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageSize)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.handleFrame(ctx, conn, data)
		}()
	}
}

func (c *Client) handleFrame(ctx context.Context, conn *websocket.Conn, data []byte) {
	var resp *rpc.Response

	req, err := rpc.DecodeRequest(data)
	if err != nil {
		id := ""
		if req != nil {
			id = req.ID
		}
		rpcErr, _ := rpc.AsError(err)
		c.log.Warn("rejecting request", "id", id, "code", rpcErr.Code, "error", rpcErr.Message)
		resp = rpc.Failure(id, rpcErr)
	} else {
		resp = c.dispatch(ctx, req)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("failed to encode response", "id", resp.ID, "error", err)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
		c.log.Warn("failed to write response", "id", resp.ID, "error", err)
	}
}

func (c *Client) dispatch(ctx context.Context, req *rpc.Request) *rpc.Response {
	log := c.log.With("id", req.ID, "method", req.Method)
	result, rpcErr := c.resolver.Handle(ctx, req.Method, req.Params)
	if rpcErr != nil {
		log.Debug("call failed", "code", rpcErr.Code, "error", rpcErr.Message)
		return rpc.Failure(req.ID, rpcErr)
	}
	resp, err := rpc.Success(req.ID, result)
	if err != nil {
		return rpc.Failure(req.ID, rpc.ErrInternal(req.Method, err))
	}
	log.Debug("call served")
	return resp
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package bridge is the host side of the extension socket: it owns the
// listening endpoint, keeps at most one active peer, and correlates calls
// sent to that peer with the responses it returns.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"extsock/rpc"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	defaultCallTimeout = 30 * time.Second
	writeTimeout       = 10 * time.Second
	handshakeTimeout   = 5 * time.Second
	maxMessageSize     = 4 << 20
)

// ErrNotAttached is returned by operations that need a bound listener.
var ErrNotAttached = errors.New("bridge: listener not attached")

// Options configures a Manager.
type Options struct {
	// Addr is the host:port to listen on. Port 0 picks a free port.
	Addr string
	// CallTimeout bounds how long a call waits for its response.
	CallTimeout time.Duration
	// Handshake reads navigator.userAgent from every new peer and logs it.
	Handshake bool
	Logger    *slog.Logger
	Recorder  CallRecorder
	// NewCallID overrides call id generation. Ids must not collide with
	// pending ones.
	NewCallID func() string
}

// CallRecord describes one completed call.
type CallRecord struct {
	CallID   string
	Method   string
	PeerID   string
	IsError  bool
	Code     int
	Text     string
	Duration time.Duration
	At       time.Time
}

// CallRecorder receives a record for every call the manager completes.
type CallRecorder interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

// Status is a snapshot of the manager's connection state.
type Status struct {
	Listening   bool      `json:"listening" yaml:"listening"`
	Addr        string    `json:"addr,omitempty" yaml:"addr,omitempty"`
	Connected   bool      `json:"connected" yaml:"connected"`
	PeerID      string    `json:"peer_id,omitempty" yaml:"peer_id,omitempty"`
	Remote      string    `json:"remote,omitempty" yaml:"remote,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitempty" yaml:"connected_at,omitempty"`
	Pending     int       `json:"pending" yaml:"pending"`
}

type peerConn struct {
	id          string
	remote      string
	conn        *websocket.Conn
	connectedAt time.Time
	ctx         context.Context
	cancel      context.CancelFunc
}

// close sends the close frame before cancelling the read loop, so the peer
// sees the status instead of a dropped connection.
func (p *peerConn) close(code websocket.StatusCode, reason string) {
	_ = p.conn.Close(code, reason)
	p.cancel()
}

// Manager is the host-side connection manager.
type Manager struct {
	opts  Options
	log   *slog.Logger
	table *Table

	mu      sync.Mutex
	ln      net.Listener
	srv     *http.Server
	active  *peerConn
	changed chan struct{}
	closed  bool
}

// NewManager creates a Manager. Call Attach to start listening.
func NewManager(opts Options) *Manager {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.NewCallID == nil {
		opts.NewCallID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		opts:    opts,
		log:     logger.With("component", "bridge"),
		table:   NewTable(),
		changed: make(chan struct{}),
	}
}

// Attach binds the listening endpoint and starts accepting peers. Calling it
// again on an attached manager is a no-op.
func (m *Manager) Attach(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("bridge: manager is closed")
	}
	if m.ln != nil {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", m.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", m.opts.Addr, err)
	}
	m.ln = ln
	m.srv = &http.Server{
		Handler:           http.HandlerFunc(m.handleUpgrade),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("listener stopped", "error", err)
		}
	}(m.srv)

	m.log.Info("listening for extension peer", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Attach.
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ln == nil {
		return ""
	}
	return m.ln.Addr().String()
}

func (m *Manager) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Extension content scripts connect from arbitrary page origins.
		InsecureSkipVerify: true,
	})
	if err != nil {
		m.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(context.Background())
	p := &peerConn{
		id:          newPeerID(),
		remote:      r.RemoteAddr,
		conn:        conn,
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
	if !m.onPeerConnected(p) {
		return
	}
	m.readLoop(p)
}

// onPeerConnected adopts p as the active peer. A previously active peer is
// closed and its pending calls fail with PeerSuperseded.
func (m *Manager) onPeerConnected(p *peerConn) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		p.close(websocket.StatusGoingAway, "bridge shutting down")
		return false
	}
	old := m.active
	m.active = p
	m.notifyLocked()
	m.mu.Unlock()

	log := m.log.With("peer", p.id, "remote", p.remote)
	if old != nil {
		n := m.table.FailPeer(old.id, rpc.ErrPeerSuperseded(old.id))
		go old.close(websocket.StatusPolicyViolation, "superseded by a newer connection")
		log.Info("peer superseded", "old_peer", old.id, "failed_calls", n)
	}
	log.Info("peer connected")

	if m.opts.Handshake {
		go m.handshake(p)
	}
	return true
}

func (m *Manager) handshake(p *peerConn) {
	ctx, cancel := context.WithTimeout(p.ctx, handshakeTimeout)
	defer cancel()

	res := m.send(ctx, p, rpc.Encode(rpc.TagResource, "navigator.userAgent"), nil)
	if res.IsError {
		m.log.Debug("handshake probe failed", "peer", p.id, "error", res.Text())
		return
	}
	m.log.Info("peer identified", "peer", p.id, "user_agent", res.Text())
}

func (m *Manager) readLoop(p *peerConn) {
	for {
		_, data, err := p.conn.Read(p.ctx)
		if err != nil {
			m.onPeerDisconnected(p, err)
			return
		}
		m.onMessage(data)
	}
}

func (m *Manager) onPeerDisconnected(p *peerConn, cause error) {
	m.mu.Lock()
	wasActive := m.active == p
	if wasActive {
		m.active = nil
		m.notifyLocked()
	}
	m.mu.Unlock()

	p.cancel()
	n := m.table.FailPeer(p.id, rpc.ErrPeerDisconnected(p.id))
	if wasActive {
		m.log.Info("peer disconnected", "peer", p.id, "failed_calls", n, "cause", cause)
	}
}

// onMessage routes a raw frame from the peer to the waiting caller. Frames
// that do not parse, or that answer no pending call, are dropped.
func (m *Manager) onMessage(raw []byte) {
	resp, err := rpc.DecodeResponse(raw)
	if err != nil {
		if resp != nil && resp.Error != nil {
			m.log.Warn("peer reported error", "code", resp.Error.Code, "message", resp.Error.Message)
			return
		}
		m.log.Debug("dropping malformed message", "error", err, "size", len(raw))
		return
	}
	if !m.table.Resolve(resp.ID, resp) {
		m.log.Debug("dropping response for unknown call", "call_id", resp.ID)
	}
}

// Send calls method on the active peer and waits for the outcome. It never
// fails with a Go error: a missing peer, a transport failure, a timeout and a
// remote error all come back as a Result with IsError set.
func (m *Manager) Send(ctx context.Context, method string, params any) rpc.Result {
	p := m.activePeer()
	if p == nil {
		res := rpc.ErrorResult(rpc.ErrPeerUnavailable())
		m.record(CallRecord{Method: method, IsError: true, Code: res.Code, Text: res.Text(), At: time.Now()})
		return res
	}
	return m.send(ctx, p, method, params)
}

func (m *Manager) send(ctx context.Context, p *peerConn, method string, params any) rpc.Result {
	start := time.Now()
	id := m.opts.NewCallID()
	log := m.log.With("call_id", id, "method", method, "peer", p.id)

	res := m.roundTrip(ctx, p, id, method, params, log)

	m.record(CallRecord{
		CallID:   id,
		Method:   method,
		PeerID:   p.id,
		IsError:  res.IsError,
		Code:     res.Code,
		Text:     res.Text(),
		Duration: time.Since(start),
		At:       start,
	})
	return res
}

func (m *Manager) roundTrip(ctx context.Context, p *peerConn, id, method string, params any, log *slog.Logger) rpc.Result {
	req, err := rpc.NewRequest(id, method, params)
	if err != nil {
		return rpc.ErrorResult(rpc.NewError(rpc.CodeInvalidParams, err.Error(), map[string]any{"method": method}))
	}
	data, err := json.Marshal(req)
	if err != nil {
		return rpc.ErrorResult(rpc.ErrInternal(method, err))
	}

	done, ok := m.table.Add(id, p.id, m.opts.CallTimeout)
	if !ok {
		return rpc.ErrorResult(rpc.ErrInternal(method, fmt.Errorf("call id %s already pending", id)))
	}

	// A canceled write context closes the websocket, so the caller's ctx is
	// only used while waiting.
	wctx, cancel := context.WithTimeout(p.ctx, writeTimeout)
	err = p.conn.Write(wctx, websocket.MessageText, data)
	cancel()
	if err != nil {
		m.table.Remove(id)
		log.Warn("failed to write call", "error", err)
		return rpc.ErrorResult(rpc.NewError(rpc.CodeServerError,
			fmt.Sprintf("failed to send %s to peer: %v", method, err), map[string]any{"method": method}))
	}
	log.Debug("call sent")

	select {
	case resp := <-done:
		res := rpc.FromResponse(resp)
		if res.IsError {
			log.Debug("call failed", "code", res.Code, "message", res.Text())
		}
		return res
	case <-ctx.Done():
		m.table.Remove(id)
		return rpc.ErrorResult(rpc.NewError(rpc.CodeServerError,
			fmt.Sprintf("call %s abandoned: %v", method, ctx.Err()), map[string]any{"method": method}))
	}
}

func (m *Manager) record(rec CallRecord) {
	if m.opts.Recorder == nil {
		return
	}
	if err := m.opts.Recorder.RecordCall(context.Background(), rec); err != nil {
		m.log.Warn("failed to record call", "call_id", rec.CallID, "error", err)
	}
}

func (m *Manager) activePeer() *peerConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// notifyLocked wakes everyone blocked in WaitForPeer. m.mu must be held.
func (m *Manager) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

// WaitForPeer blocks until a peer is active or ctx is done. It returns
// ErrNotAttached when called before Attach.
func (m *Manager) WaitForPeer(ctx context.Context) error {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return fmt.Errorf("bridge: manager is closed")
		}
		if m.srv == nil {
			m.mu.Unlock()
			return ErrNotAttached
		}
		if m.active != nil {
			m.mu.Unlock()
			return nil
		}
		changed := m.changed
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Status returns a snapshot of the connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{Listening: m.ln != nil, Pending: m.table.Len()}
	if m.ln != nil {
		st.Addr = m.ln.Addr().String()
	}
	if m.active != nil {
		st.Connected = true
		st.PeerID = m.active.id
		st.Remote = m.active.remote
		st.ConnectedAt = m.active.connectedAt
	}
	return st
}

// Close stops the listener, disconnects the active peer and fails its
// pending calls.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	p := m.active
	m.active = nil
	srv := m.srv
	m.ln = nil
	m.notifyLocked()
	m.mu.Unlock()

	if p != nil {
		p.close(websocket.StatusGoingAway, "bridge shutting down")
		m.table.FailPeer(p.id, rpc.ErrPeerDisconnected(p.id))
	}
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop listener: %w", err)
	}
	return nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

func newPeerID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

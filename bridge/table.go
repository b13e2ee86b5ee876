package bridge

import (
	"sync"
	"time"

	"extsock/rpc"
)

// pendingCall is one in-flight call waiting for its response.
type pendingCall struct {
	peerID string
	done   chan *rpc.Response
	timer  *time.Timer
}

// Table correlates call ids with waiting callers. An entry is resolved at most
// once: by a matching response, by its timeout, or by its peer going away.
type Table struct {
	mu      sync.Mutex
	pending map[string]*pendingCall
}

// NewTable returns an empty correlation table.
func NewTable() *Table {
	return &Table{pending: make(map[string]*pendingCall)}
}

// Add registers id against peerID and returns the channel its response will be
// delivered on. When timeout is positive the entry resolves itself with a
// CallTimeout error after that long. Add returns false if id is already pending.
func (t *Table) Add(id, peerID string, timeout time.Duration) (<-chan *rpc.Response, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pending[id]; exists {
		return nil, false
	}
	call := &pendingCall{peerID: peerID, done: make(chan *rpc.Response, 1)}
	if timeout > 0 {
		call.timer = time.AfterFunc(timeout, func() {
			t.Resolve(id, rpc.Failure(id, rpc.ErrCallTimeout(id)))
		})
	}
	t.pending[id] = call
	return call.done, true
}

// Resolve delivers resp to the caller waiting on id. It reports false when id
// is unknown or already resolved.
func (t *Table) Resolve(id string, resp *rpc.Response) bool {
	t.mu.Lock()
	call, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	call.stop()
	call.done <- resp
	return true
}

// Remove drops id without delivering anything.
func (t *Table) Remove(id string) {
	t.mu.Lock()
	call, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if ok {
		call.stop()
	}
}

// FailPeer resolves every call pending against peerID with err and returns how
// many calls were failed.
func (t *Table) FailPeer(peerID string, err *rpc.Error) int {
	t.mu.Lock()
	failed := make(map[string]*pendingCall)
	for id, call := range t.pending {
		if call.peerID == peerID {
			failed[id] = call
			delete(t.pending, id)
		}
	}
	t.mu.Unlock()

	for id, call := range failed {
		call.stop()
		call.done <- rpc.Failure(id, err)
	}
	return len(failed)
}

// Len returns the number of pending calls.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (c *pendingCall) stop() {
	if c.timer != nil {
		c.timer.Stop()
	}
}

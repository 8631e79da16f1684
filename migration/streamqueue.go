package migration

import "time"

// StreamResult is the outcome of TryCreateStream.
type StreamResult string

const (
	StreamOK               StreamResult = "OK"
	StreamConnectionClosed StreamResult = "CONNECTION_CLOSED"
	StreamIOPending        StreamResult = "IO_PENDING"
)

// StreamRequest is a pending request for an outgoing bidirectional
// stream, queued when the session is at its concurrent-stream limit.
type StreamRequest struct {
	// Materialize is called once the session can open another stream.
	// It must return the new stream handle (or equivalent) delivered to
	// the caller.
	Materialize func() any
	// OnReady receives the materialized stream, or nil with ok=false if
	// the request was failed (e.g. connection closed) before it could
	// be serviced.
	OnReady func(stream any, ok bool)

	pendingStartTime time.Time
	cancelled        bool
}

// streamQueue is the manager's FIFO of stream requests blocked on the
// session's concurrent-stream limiter.
type streamQueue struct {
	closed    bool
	goingAway bool
	pending   []*StreamRequest

	canCreate func() bool
}

// TryCreateStream opens a stream immediately if the session has
// capacity, or queues req FIFO until capacity frees up.
func (m *Manager) TryCreateStream(req *StreamRequest) StreamResult {
	if m.streamQueue.closed || m.streamQueue.goingAway {
		return StreamConnectionClosed
	}
	if m.streamQueue.canCreate != nil && m.streamQueue.canCreate() {
		stream := req.Materialize()
		if req.OnReady != nil {
			req.OnReady(stream, true)
		}
		return StreamOK
	}
	req.pendingStartTime = time.Now()
	m.streamQueue.pending = append(m.streamQueue.pending, req)
	return StreamIOPending
}

// OnCanCreateNewOutgoingStream drains the queue, called by the session's
// stream limiter whenever capacity increases.
func (m *Manager) OnCanCreateNewOutgoingStream() {
	q := &m.streamQueue
	for len(q.pending) > 0 {
		if q.canCreate != nil && !q.canCreate() {
			return
		}
		req := q.pending[0]
		q.pending = q.pending[1:]
		if req.cancelled {
			continue
		}
		stream := req.Materialize()
		if req.OnReady != nil {
			req.OnReady(stream, true)
		}
	}
}

// CancelStreamRequest removes req from the queue while preserving the
// relative order of every other pending request.
func (m *Manager) CancelStreamRequest(req *StreamRequest) {
	req.cancelled = true
	q := &m.streamQueue
	out := q.pending[:0]
	for _, r := range q.pending {
		if r != req {
			out = append(out, r)
		}
	}
	q.pending = out
}

// failAll completes every pending request with CONNECTION_CLOSED in
// FIFO order.
func (q *streamQueue) failAll() {
	q.closed = true
	pending := q.pending
	q.pending = nil
	for _, req := range pending {
		if req.cancelled {
			continue
		}
		if req.OnReady != nil {
			req.OnReady(nil, false)
		}
	}
}

package migration

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/quicmigrate/internal/logger"
)

// writerRetryAttempts is the ENOBUFS retry ceiling per packet.
const writerRetryAttempts = 12

// writerRetryInitialInterval is the first backoff delay (1 ms, doubling).
const writerRetryInitialInterval = 1 * time.Millisecond

// ForceBlockableWriter wraps a Writer so the manager can freeze egress
// between the start and commit of a migration. IsWriteBlocked reports
// true if either the inner writer reports blocked or the force flag is
// set; ForceWriteBlocked(true) then ForceWriteBlocked(false) returns to
// the inner writer's intrinsic state with no hysteresis.
type ForceBlockableWriter struct {
	mu     sync.Mutex
	inner  Writer
	forced bool
}

// NewForceBlockableWriter wraps inner.
func NewForceBlockableWriter(inner Writer) *ForceBlockableWriter {
	return &ForceBlockableWriter{inner: inner}
}

// ForceWriteBlocked sets or clears the force-block flag.
func (w *ForceBlockableWriter) ForceWriteBlocked(blocked bool) {
	w.mu.Lock()
	w.forced = blocked
	w.mu.Unlock()
}

// IsWriteBlocked reports whether writes are currently blocked, forced or
// intrinsic.
func (w *ForceBlockableWriter) IsWriteBlocked() bool {
	w.mu.Lock()
	forced := w.forced
	w.mu.Unlock()
	return forced || w.inner.IsWriteBlocked()
}

// Inner returns the wrapped writer, e.g. so a migration commit can swap
// it out.
func (w *ForceBlockableWriter) Inner() Writer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inner
}

// SetInner swaps the wrapped writer, used by MigrateToNewPath's commit.
func (w *ForceBlockableWriter) SetInner(inner Writer) {
	w.mu.Lock()
	w.inner = inner
	w.mu.Unlock()
}

func (w *ForceBlockableWriter) WritePacket(b []byte) error {
	return w.Inner().WritePacket(b)
}

func (w *ForceBlockableWriter) Close() error {
	return w.Inner().Close()
}

// PacketWriter owns the single reusable in-flight packet buffer and
// retries transient ErrWouldBlock failures with exponential backoff
// before handing the failure to its delegate. Retries are armed through
// a Scheduler rather than blocking the caller: the gap between
// initiating a write and the socket's I/O-completion callback is one of
// the engine's asynchronous suspension points, not a synchronous wait.
type PacketWriter struct {
	mu       sync.Mutex
	w        *ForceBlockableWriter
	delegate WriteDelegate
	telem    Telemetry
	sched    Scheduler
	pkt      *Packet
	capacity int
	inflight bool
	backoff  *backoff.ExponentialBackOff
	attempt  int
}

// NewPacketWriter constructs a PacketWriter with the given initial
// packet buffer capacity (typically the max outgoing datagram size).
// Retries are posted through sched.
func NewPacketWriter(w *ForceBlockableWriter, delegate WriteDelegate, telem Telemetry, sched Scheduler, capacity int) *PacketWriter {
	return &PacketWriter{
		w:        w,
		delegate: delegate,
		telem:    telem,
		sched:    sched,
		pkt:      NewPacket(capacity),
		capacity: capacity,
	}
}

// Write sends data. On success, or once the delegate takes ownership of
// a failed write, it returns nil and reports "blocked, data buffered"
// rather than the underlying error. An ErrWouldBlock arms the next
// retry on the scheduler and also returns nil immediately; the
// eventual outcome (success, retry exhaustion, or a non-retryable
// error) is delivered later through the delegate, not this return
// value.
func (pw *PacketWriter) Write(data []byte) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	pkt := pw.reservePacketLocked(data)
	pw.attempt = 0
	pw.backoff = newWriterBackoff()
	return pw.attemptWriteLocked(pkt)
}

func newWriterBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = writerRetryInitialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // bounded by attempt count, not elapsed time
	b.Reset()            // start from InitialInterval, not the library default
	return b
}

// attemptWriteLocked makes one write attempt for pkt. Callers must hold
// pw.mu; the scheduled retry reacquires it before attempting again.
func (pw *PacketWriter) attemptWriteLocked(pkt *Packet) error {
	err := pw.w.WritePacket(pkt.Bytes())
	if err == nil {
		pw.inflight = false
		if pw.attempt > 0 {
			pw.delegate.OnWriteUnblocked()
		}
		return nil
	}

	if err == ErrWouldBlock && pw.attempt < writerRetryAttempts {
		d := pw.backoff.NextBackOff()
		pw.attempt++
		pw.sched.PostDelayedTask(d, func() {
			pw.mu.Lock()
			defer pw.mu.Unlock()
			pw.attemptWriteLocked(pkt)
		})
		return nil
	}

	if err == ErrWouldBlock && pw.telem != nil {
		pw.telem.ObserveWriterRetryExhausted()
	}

	result := pw.delegate.HandleWriteError(err, pkt)
	if result == writerRetryHandled {
		// Delegate took ownership; packet is retained by the recovery
		// path, so the next Write call must reallocate.
		pkt.Retain()
		return nil
	}

	pw.delegate.OnWriteError(err)
	return err
}

// reservePacketLocked returns a packet ready to hold data, reallocating
// if the current one is undersized or not solely owned (meaning the
// previous packet was handed to a recovery path).
func (pw *PacketWriter) reservePacketLocked(data []byte) *Packet {
	reason := ""
	switch {
	case pw.pkt.Capacity() < len(data):
		reason = "mtu_increase"
	case !pw.pkt.SoleOwner():
		reason = "handed_off"
	}
	if reason != "" {
		cap := pw.capacity
		if len(data) > cap {
			cap = len(data)
		}
		pw.pkt = NewPacket(cap)
		if pw.telem != nil {
			pw.telem.ObserveBufferReallocation(reason)
		}
		logger.Debug("packet buffer reallocated", logger.Reason(reason))
	}
	pw.pkt.Set(data)
	pw.inflight = true
	return pw.pkt
}

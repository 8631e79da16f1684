// Package netfactory is the default, real-socket implementation of
// migration.PathContextFactory, connecting a UDP socket per platform
// network and peer address.
package netfactory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/quicmigrate/internal/logger"
	"github.com/marmos91/quicmigrate/migration"
)

// NetworkBinder resolves a migration.NetworkHandle to the local address
// a socket must bind to in order to route traffic over that platform
// network interface. The zero binder (nil) binds to the wildcard
// address, which is sufficient on platforms with a single routing
// table and is overridden by callers that need SO_BINDTODEVICE-style
// per-interface binding.
type NetworkBinder func(network migration.NetworkHandle) (*net.UDPAddr, error)

// Factory builds PathContext values over connected net.UDPConn sockets.
type Factory struct {
	bind    NetworkBinder
	sched   migration.Scheduler
	sendBuf int
	recvBuf int
}

// New constructs a Factory. sched is used to post creation results back
// onto the manager's single logical thread, preserving its single-
// threaded invariant even though the dial itself runs on a supervised
// goroutine.
func New(sched migration.Scheduler, bind NetworkBinder, sendBuf, recvBuf int) *Factory {
	return &Factory{sched: sched, bind: bind, sendBuf: sendBuf, recvBuf: recvBuf}
}

// CreatePathContext implements migration.PathContextFactory. Each call
// runs the dial-and-configure sequence on its own errgroup goroutine
// derived from ctx; cancelling ctx turns a finished dial into a
// failure. Calls are not grouped with one another. The terminal result
// is always delivered through sched, never directly from the goroutine.
func (f *Factory) CreatePathContext(ctx context.Context, network migration.NetworkHandle, peer net.Addr, delegate migration.PathContextResultDelegate) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ctxResult, err := f.dial(gctx, network, peer)
		f.sched.PostTask(func() {
			if err != nil {
				delegate.OnCreationFailed(network, err.Error())
				return
			}
			delegate.OnCreationSucceeded(ctxResult)
		})
		return err
	})

	go func() {
		if err := g.Wait(); err != nil {
			logger.Debug("path context creation failed", "network", network.String(), "error", err.Error())
		}
	}()
}

func (f *Factory) dial(ctx context.Context, network migration.NetworkHandle, peer net.Addr) (*migration.PathContext, error) {
	udpPeer, ok := peer.(*net.UDPAddr)
	if !ok {
		resolved, err := net.ResolveUDPAddr("udp", peer.String())
		if err != nil {
			return nil, fmt.Errorf("resolve peer address: %w", err)
		}
		udpPeer = resolved
	}

	var laddr *net.UDPAddr
	if f.bind != nil {
		bound, err := f.bind(network)
		if err != nil {
			return nil, fmt.Errorf("bind network %s: %w", network, err)
		}
		laddr = bound
	}

	conn, err := net.DialUDP("udp", laddr, udpPeer)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	if f.sendBuf > 0 {
		_ = conn.SetWriteBuffer(f.sendBuf)
	}
	if f.recvBuf > 0 {
		_ = conn.SetReadBuffer(f.recvBuf)
	}

	if ctx.Err() != nil {
		conn.Close()
		return nil, ctx.Err()
	}

	w := &udpWriter{conn: conn}
	return &migration.PathContext{
		SelfAddr: conn.LocalAddr(),
		PeerAddr: conn.RemoteAddr(),
		Network:  network,
		Writer:   w,
	}, nil
}

// udpWriter adapts a connected net.UDPConn to migration.Writer.
type udpWriter struct {
	conn *net.UDPConn
}

func (w *udpWriter) WritePacket(b []byte) error {
	_, err := w.conn.Write(b)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ENOBUFS) {
		return migration.ErrWouldBlock
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return migration.ErrWouldBlock
	}
	return err
}

func (w *udpWriter) IsWriteBlocked() bool {
	return false
}

func (w *udpWriter) Close() error {
	return w.conn.Close()
}

// Package server implements the UDP listener: one socket, one
// goroutine per inbound datagram, graceful shutdown via context
// cancellation plus a WaitGroup barrier. Grounded on
// core/dnsserver/server.go's Server — its panic-recovery-per-request
// and sync.WaitGroup-gated Stop() survive here, shed of Caddy zones,
// TCP, and the tailscale-specific listen/dial paths nothing in this
// proxy needs (spec §4.6 names a single UDP socket bound to
// local_ip:local_port).
package server

import (
	"context"
	"net"
	"runtime/debug"
	"sync"

	"github.com/amirdaaee/dnspy/internal/pipeline"
	"github.com/sirupsen/logrus"
)

const maxDatagramSize = 512

// Server binds a single UDP socket and dispatches each inbound
// datagram to engine.Handle in its own goroutine.
type Server struct {
	Addr   string
	Engine *pipeline.Engine
	Log    *logrus.Entry

	conn *net.UDPConn
	wg   sync.WaitGroup
}

// New returns a Server bound to addr ("ip:port"); it does not listen
// until Serve is called.
func New(addr string, engine *pipeline.Engine) *Server {
	return &Server{
		Addr:   addr,
		Engine: engine,
		Log:    logrus.WithField("component", "server"),
	}
}

// Serve binds the UDP socket and processes datagrams until ctx is
// canceled. It returns once every in-flight datagram's pipeline run
// has completed.
func (s *Server) Serve(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.Addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.conn = conn

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, client, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.Log.WithError(err).Warn("read error, continuing")
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		s.wg.Add(1)
		go s.handle(ctx, datagram, client)
	}

	s.wg.Wait()
	return nil
}

// handle runs one datagram's pipeline in isolation: a panic here must
// never bring down the listener, matching the teacher's
// ServeDNS recover() pattern.
func (s *Server) handle(ctx context.Context, datagram []byte, client *net.UDPAddr) {
	defer s.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			s.Log.Errorf("recovered from panic handling datagram from %s: %v\n%s", client, rec, string(debug.Stack()))
		}
	}()

	out := s.Engine.Handle(ctx, datagram, client)
	if out == nil {
		return
	}
	if _, err := s.conn.WriteToUDP(out, client); err != nil {
		s.Log.WithError(err).WithField("client", client).Error("failed to send response")
	}
}

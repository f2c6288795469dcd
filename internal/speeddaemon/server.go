// Package speeddaemon implements the Speed Daemon subsystem: a
// binary-framed, multi-client coordination server in which cameras report
// plate sightings and dispatchers receive speeding tickets, per spec
// section 2 onward.
package speeddaemon

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pocams/protohackers/internal/metrics"
	"github.com/pocams/protohackers/internal/netutil"
)

// Server is the accept loop of spec section 4.5: it binds the listening
// endpoint and spawns one connection handler per accepted socket, all
// sharing a single Database handle. Accept errors are logged and never
// fatal to the loop.
type Server struct {
	Listen           string
	DispatchInterval time.Duration
	Log              zerolog.Logger
	Metrics          *metrics.Registry
	RateLimiter      *netutil.ConnRateLimiter
}

// Run binds the listener and serves until ctx is done or the listener
// fails to bind.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Listen)
	if err != nil {
		return err
	}
	defer ln.Close()

	s.Log.Info().Str("addr", s.Listen).Msg("speed daemon listening")

	db := NewDatabase(func(t Ticket) {
		if s.Metrics != nil {
			s.Metrics.SpeedDaemonTicketsIssued.Inc()
			s.Metrics.SpeedDaemonPendingTickets.Inc()
		}
	})

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		if err := s.RateLimiter.Wait(ctx); err != nil {
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.Log.Error().Err(err).Msg("accept failed")
			if s.Metrics != nil {
				s.Metrics.AcceptErrors.WithLabelValues("speeddaemon").Inc()
			}
			continue
		}

		if s.Metrics != nil {
			s.Metrics.ConnectionsTotal.WithLabelValues("speeddaemon").Inc()
			s.Metrics.ConnectionsActive.WithLabelValues("speeddaemon").Inc()
		}

		connLog := s.Log.With().Str("conn_id", uuid.New().String()).Str("remote_addr", conn.RemoteAddr().String()).Logger()
		connLog.Info().Msg("connection received")

		go func(conn net.Conn) {
			defer func() {
				if s.Metrics != nil {
					s.Metrics.ConnectionsActive.WithLabelValues("speeddaemon").Dec()
				}
			}()

			onDispatched := func() {
				if s.Metrics != nil {
					s.Metrics.SpeedDaemonTicketsDispatched.Inc()
					s.Metrics.SpeedDaemonPendingTickets.Dec()
				}
			}

			Handle(conn, db, connLog, s.DispatchInterval, onDispatched)
			connLog.Info().Msg("disconnect")
		}(conn)
	}
}

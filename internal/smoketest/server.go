// Package smoketest implements the Smoke Test collaborator: a bare TCP
// echo server, grounded in original_source/smoke-test/src/lib.rs.
package smoketest

import (
	"context"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pocams/protohackers/internal/metrics"
	"github.com/pocams/protohackers/internal/netutil"
)

type Server struct {
	Listen      string
	Log         zerolog.Logger
	Metrics     *metrics.Registry
	RateLimiter *netutil.ConnRateLimiter
}

func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Listen)
	if err != nil {
		return err
	}
	defer ln.Close()

	s.Log.Info().Str("addr", s.Listen).Msg("starting")

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
				s.Metrics.AcceptErrors.WithLabelValues("smoketest").Inc()
			}
			continue
		}

		if s.Metrics != nil {
			s.Metrics.ConnectionsTotal.WithLabelValues("smoketest").Inc()
			s.Metrics.ConnectionsActive.WithLabelValues("smoketest").Inc()
		}

		connLog := s.Log.With().Str("conn_id", uuid.New().String()).Str("remote_addr", conn.RemoteAddr().String()).Logger()
		connLog.Info().Msg("connection received")

		go func(conn net.Conn) {
			defer func() {
				if s.Metrics != nil {
					s.Metrics.ConnectionsActive.WithLabelValues("smoketest").Dec()
				}
			}()
			handle(conn, connLog)
			connLog.Info().Msg("disconnect")
		}(conn)
	}
}

func handle(conn net.Conn, log zerolog.Logger) {
	defer conn.Close()
	n, err := io.Copy(conn, conn)
	if err != nil {
		log.Warn().Err(err).Msg("echo failed")
		return
	}
	log.Debug().Int64("bytes", n).Msg("echo done")
}

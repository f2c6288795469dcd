package budgetchat

import (
	"context"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pocams/protohackers/internal/metrics"
	"github.com/pocams/protohackers/internal/netutil"
)

// Server is Budget Chat's accept loop: every accepted connection joins
// the same Room.
type Server struct {
	Listen      string
	MinNickLen  int
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

	s.Log.Info().Str("addr", s.Listen).Msg("budget chat listening")

	room := NewRoom()
	go room.Run(ctx)

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
				s.Metrics.AcceptErrors.WithLabelValues("budgetchat").Inc()
			}
			continue
		}

		if s.Metrics != nil {
			s.Metrics.ConnectionsTotal.WithLabelValues("budgetchat").Inc()
			s.Metrics.ConnectionsActive.WithLabelValues("budgetchat").Inc()
		}

		connLog := s.Log.With().Str("conn_id", uuid.New().String()).Str("remote_addr", conn.RemoteAddr().String()).Logger()
		connLog.Info().Msg("connection received")

		c := newClient(conn, room, connLog)
		go func() {
			defer func() {
				if s.Metrics != nil {
					s.Metrics.ConnectionsActive.WithLabelValues("budgetchat").Dec()
				}
			}()
			c.run(s.MinNickLen)
			connLog.Info().Msg("disconnect")
		}()
	}
}

// Package primetime implements the Prime Time collaborator: a
// newline-delimited JSON request/response server that answers whether a
// number is prime, grounded in
// original_source/prime-time/src/lib.rs.
package primetime

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
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
				s.Metrics.AcceptErrors.WithLabelValues("primetime").Inc()
			}
			continue
		}

		if s.Metrics != nil {
			s.Metrics.ConnectionsTotal.WithLabelValues("primetime").Inc()
			s.Metrics.ConnectionsActive.WithLabelValues("primetime").Inc()
		}

		connLog := s.Log.With().Str("conn_id", uuid.New().String()).Str("remote_addr", conn.RemoteAddr().String()).Logger()
		connLog.Info().Msg("connection received")

		go func(conn net.Conn) {
			defer func() {
				if s.Metrics != nil {
					s.Metrics.ConnectionsActive.WithLabelValues("primetime").Dec()
				}
			}()
			handle(conn, connLog)
			connLog.Info().Msg("disconnect")
		}(conn)
	}
}

type request struct {
	Method string   `json:"method"`
	Number *float64 `json:"number"`
}

type response struct {
	Method string `json:"method"`
	Prime  bool   `json:"prime"`
}

// responseLine is either a well-formed reply to send and keep the
// connection open for, or a malformed-request marker that closes the
// connection after one line is sent.
type responseLine struct {
	line       string
	disconnect bool
}

func getResponseLine(raw string) responseLine {
	var req request
	if err := json.Unmarshal([]byte(raw), &req); err != nil || req.Number == nil {
		return responseLine{line: ":P", disconnect: true}
	}
	if req.Method != "isPrime" {
		return responseLine{line: ":(", disconnect: true}
	}

	// A non-integer or negative number is simply not prime; unlike a
	// wrong method, it is a well-formed request and doesn't disconnect.
	resp := response{Method: "isPrime", Prime: isPrime(*req.Number)}
	encoded, err := json.Marshal(resp)
	if err != nil {
		return responseLine{line: ":P", disconnect: true}
	}
	return responseLine{line: string(encoded)}
}

// isPrime reports primality for non-negative integral inputs; any
// non-integer or negative number is defined not to be prime, matching
// the original's treatment of non-u64 numbers.
func isPrime(n float64) bool {
	if n != math.Trunc(n) || n < 0 {
		return false
	}
	v := uint64(n)
	if v == 0 || v == 1 {
		return false
	}
	sqrt := uint64(math.Sqrt(float64(v)))
	for x := uint64(2); x <= sqrt; x++ {
		if v%x == 0 {
			return false
		}
	}
	return true
}

func handle(conn net.Conn, log zerolog.Logger) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()
		log.Debug().Str("line", line).Msg("read ok")

		resp := getResponseLine(line)
		if _, err := conn.Write([]byte(resp.line + "\n")); err != nil {
			log.Warn().Err(err).Msg("write failed")
			return
		}
		if resp.disconnect {
			log.Warn().Msg("disconnecting")
			return
		}
	}
}

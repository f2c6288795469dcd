// Package meanstoanend implements the Means to an End collaborator: a
// per-connection binary price store, grounded in
// original_source/means-to-an-end/src/lib.rs.
package meanstoanend

import (
	"context"
	"encoding/binary"
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
				s.Metrics.AcceptErrors.WithLabelValues("meanstoanend").Inc()
			}
			continue
		}

		if s.Metrics != nil {
			s.Metrics.ConnectionsTotal.WithLabelValues("meanstoanend").Inc()
			s.Metrics.ConnectionsActive.WithLabelValues("meanstoanend").Inc()
		}

		connLog := s.Log.With().Str("conn_id", uuid.New().String()).Str("remote_addr", conn.RemoteAddr().String()).Logger()
		connLog.Info().Msg("connection received")

		go func(conn net.Conn) {
			defer func() {
				if s.Metrics != nil {
					s.Metrics.ConnectionsActive.WithLabelValues("meanstoanend").Dec()
				}
			}()
			handle(conn, connLog)
			connLog.Info().Msg("disconnect")
		}(conn)
	}
}

// clientData is the per-connection price history: each connection owns
// its own store, there is no state shared across connections.
type clientData struct {
	timestamps []int32
	prices     []int32
}

// insert keeps the history sorted by timestamp, matching the ordered
// map the original keeps (BTreeMap<i32, i32>): a later insert at a
// timestamp already seen overwrites the stored price.
func (d *clientData) insert(timestamp, price int32) {
	i := d.search(timestamp)
	if i < len(d.timestamps) && d.timestamps[i] == timestamp {
		d.prices[i] = price
		return
	}
	d.timestamps = append(d.timestamps, 0)
	d.prices = append(d.prices, 0)
	copy(d.timestamps[i+1:], d.timestamps[i:])
	copy(d.prices[i+1:], d.prices[i:])
	d.timestamps[i] = timestamp
	d.prices[i] = price
}

func (d *clientData) search(timestamp int32) int {
	lo, hi := 0, len(d.timestamps)
	for lo < hi {
		mid := (lo + hi) / 2
		if d.timestamps[mid] < timestamp {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// query averages every price whose timestamp falls in [start, end]. An
// empty or inverted range, or a range matching no entries, averages to
// zero.
func (d *clientData) query(start, end int32) int32 {
	if end < start {
		return 0
	}
	var total, count int64
	lo := d.search(start)
	for i := lo; i < len(d.timestamps) && d.timestamps[i] <= end; i++ {
		total += int64(d.prices[i])
		count++
	}
	if count == 0 {
		return 0
	}
	return int32(total / count)
}

func (d *clientData) apply(cmd byte, a, b int32) (reply int32, hasReply bool) {
	switch cmd {
	case 'I':
		d.insert(a, b)
		return 0, false
	case 'Q':
		return d.query(a, b), true
	default:
		return -1, true
	}
}

func handle(conn net.Conn, log zerolog.Logger) {
	defer conn.Close()
	var data clientData
	request := make([]byte, 9)

	for {
		if _, err := io.ReadFull(conn, request); err != nil {
			if err != io.EOF {
				log.Warn().Err(err).Msg("read failed")
			}
			return
		}

		cmd := request[0]
		a := int32(binary.BigEndian.Uint32(request[1:5]))
		b := int32(binary.BigEndian.Uint32(request[5:9]))

		reply, hasReply := data.apply(cmd, a, b)
		if !hasReply {
			continue
		}

		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(reply))
		if _, err := conn.Write(out); err != nil {
			log.Warn().Err(err).Msg("write failed")
			return
		}
	}
}

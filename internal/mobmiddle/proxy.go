package mobmiddle

import (
	"bufio"
	"context"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pocams/protohackers/internal/metrics"
	"github.com/pocams/protohackers/internal/netutil"
)

// Proxy is the accept loop: each accepted client connection gets its
// own dial to Upstream, and the two sockets are spliced line by line
// until either side closes.
type Proxy struct {
	Listen           string
	Upstream         string
	BoguscoinAddress string
	Log              zerolog.Logger
	Metrics          *metrics.Registry
	RateLimiter      *netutil.ConnRateLimiter
}

func (p *Proxy) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.Listen)
	if err != nil {
		return err
	}
	defer ln.Close()

	p.Log.Info().Str("addr", p.Listen).Str("upstream", p.Upstream).Msg("mob in the middle listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		if err := p.RateLimiter.Wait(ctx); err != nil {
			return nil
		}

		client, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.Log.Error().Err(err).Msg("accept failed")
			if p.Metrics != nil {
				p.Metrics.AcceptErrors.WithLabelValues("mobmiddle").Inc()
			}
			continue
		}

		if p.Metrics != nil {
			p.Metrics.ConnectionsTotal.WithLabelValues("mobmiddle").Inc()
			p.Metrics.ConnectionsActive.WithLabelValues("mobmiddle").Inc()
		}

		go func(client net.Conn) {
			defer func() {
				if p.Metrics != nil {
					p.Metrics.ConnectionsActive.WithLabelValues("mobmiddle").Dec()
				}
			}()
			p.handle(client)
		}(client)
	}
}

func (p *Proxy) handle(client net.Conn) {
	defer client.Close()

	connLog := p.Log.With().Str("conn_id", uuid.New().String()).Str("remote_addr", client.RemoteAddr().String()).Logger()
	connLog.Info().Msg("connection received")
	defer connLog.Info().Msg("disconnect")

	upstream, err := net.Dial("tcp", p.Upstream)
	if err != nil {
		connLog.Error().Err(err).Msg("dial upstream failed")
		return
	}
	defer upstream.Close()

	done := make(chan struct{}, 2)
	go p.pump(client, upstream, done)
	go p.pump(upstream, client, done)

	<-done
	client.Close()
	upstream.Close()
}

// pump copies LF-delimited lines from src to dst, rewriting any
// Boguscoin token along the way, until src is exhausted or a write to
// dst fails. It signals done exactly once so the caller can tear down
// the other half of the splice.
func (p *Proxy) pump(src, dst net.Conn, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		line := RewriteLine(scanner.Text(), p.BoguscoinAddress)
		if _, err := dst.Write([]byte(line + "\n")); err != nil {
			return
		}
	}
}

// Command protohackers runs one of the protohackers servers selected by
// -problem, sharing a common configuration, logging, and metrics stack
// across all of them.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/pocams/protohackers/internal/budgetchat"
	"github.com/pocams/protohackers/internal/config"
	"github.com/pocams/protohackers/internal/logging"
	"github.com/pocams/protohackers/internal/meanstoanend"
	"github.com/pocams/protohackers/internal/metrics"
	"github.com/pocams/protohackers/internal/mobmiddle"
	"github.com/pocams/protohackers/internal/netutil"
	"github.com/pocams/protohackers/internal/primetime"
	"github.com/pocams/protohackers/internal/smoketest"
	"github.com/pocams/protohackers/internal/speeddaemon"
	"github.com/pocams/protohackers/internal/unusualdb"
)

const (
	problemSmokeTest       = "smoke-test"
	problemPrimeTime       = "prime-time"
	problemMeansToAnEnd    = "means-to-an-end"
	problemBudgetChat      = "budget-chat"
	problemUnusualDatabase = "unusual-database-program"
	problemMobInTheMiddle  = "mob-in-the-middle"
	problemSpeedDaemon     = "speed-daemon"
)

// runner is implemented by every TCP server in this binary.
type runner interface {
	Run(ctx context.Context) error
}

func main() {
	problem := flag.String("problem", "", "which server to run: "+
		"smoke-test, prime-time, means-to-an-end, budget-chat, "+
		"unusual-database-program, mob-in-the-middle, speed-daemon")
	listen := flag.String("listen", "", "override PH_LISTEN")
	flag.Parse()

	if *problem == "" {
		fmt.Fprintln(os.Stderr, "usage: protohackers -problem <name> [-listen addr]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	log, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	reg := metrics.NewRegistry()
	rateLimiter := netutil.NewConnRateLimiter(cfg.ConnRatePerSec, cfg.ConnRateBurst)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go serveMetrics(ctx, cfg.MetricsAddr, reg, log)

	var server runner
	switch *problem {
	case problemSmokeTest:
		server = &smoketest.Server{Listen: cfg.Listen, Log: log, Metrics: reg, RateLimiter: rateLimiter}
	case problemPrimeTime:
		server = &primetime.Server{Listen: cfg.Listen, Log: log, Metrics: reg, RateLimiter: rateLimiter}
	case problemMeansToAnEnd:
		server = &meanstoanend.Server{Listen: cfg.Listen, Log: log, Metrics: reg, RateLimiter: rateLimiter}
	case problemBudgetChat:
		server = &budgetchat.Server{
			Listen:      cfg.Listen,
			MinNickLen:  cfg.ChatNickMinLen,
			Log:         log,
			Metrics:     reg,
			RateLimiter: rateLimiter,
		}
	case problemUnusualDatabase:
		server = &unusualdb.Server{
			Listen:  cfg.Listen,
			Version: cfg.UDBVersionString,
			Log:     log,
			Metrics: reg,
		}
	case problemMobInTheMiddle:
		server = &mobmiddle.Proxy{
			Listen:           cfg.Listen,
			Upstream:         net.JoinHostPort(cfg.UpstreamHost, fmt.Sprint(cfg.UpstreamPort)),
			BoguscoinAddress: cfg.BoguscoinAddress,
			Log:              log,
			Metrics:          reg,
			RateLimiter:      rateLimiter,
		}
	case problemSpeedDaemon:
		server = &speeddaemon.Server{
			Listen:           cfg.Listen,
			DispatchInterval: cfg.DispatchInterval,
			Log:              log,
			Metrics:          reg,
			RateLimiter:      rateLimiter,
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown -problem %q\n", *problem)
		os.Exit(2)
	}

	log.Info().Str("problem", *problem).Str("listen", cfg.Listen).Msg("starting protohackers server")

	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

// serveMetrics runs the /metrics HTTP endpoint until ctx is done. A
// failure to bind is logged but never fatal to the selected server.
func serveMetrics(ctx context.Context, addr string, reg *metrics.Registry, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Info().Str("addr", addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server failed")
	}
}

// Command lockstephost runs the authoritative lockstep host: it binds a UDP
// socket, accepts the connect/join handshake, combines every connected
// client's predicted steps into authoritative combined steps on a fixed
// tick, and serves state-download blob transfers to newly joining clients.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tickline/lockstep/internal/config"
	"github.com/tickline/lockstep/internal/telemetry"
	"github.com/tickline/lockstep/internal/transport"
)

func main() {
	configPath := flag.String("config", "host.yaml", "path to the host config YAML file")
	flag.Parse()

	cfg, err := config.LoadHost(*configPath)
	if err != nil {
		panic(err)
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	reg := prometheus.NewRegistry()
	tel, err := telemetry.New(level, reg)
	if err != nil {
		panic(err)
	}
	defer tel.Sync()

	tel.Banner("lockstephost", cfg.ListenAddr)

	go serveMetrics(cfg.MetricsAddr, reg, tel)

	conn, err := net.ListenPacket("udp", cfg.ListenAddr)
	if err != nil {
		tel.Error("listen failed", zap.Error(err))
		os.Exit(1)
	}

	tr := transport.New(conn, tel)
	host := newHostServer(cfg, tel, tr)
	tr.SetHandler(host.handleDatagram)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- tr.Run(ctx) }()
	go host.tickLoop(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			tel.Error("transport stopped", zap.Error(err))
		}
	case sig := <-sigCh:
		tel.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	cancel()
	if err := tr.Close(); err != nil {
		tel.Warn("error closing socket", zap.Error(err))
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, tel *telemetry.Telemetry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		tel.Warn("metrics server stopped", zap.Error(err))
	}
}

// Command lockstepclient runs one game client against a lockstephost: it
// performs the connect/join handshake, downloads the authoritative state
// snapshot, then drives the dual-head (Assent/Seer) simulation loop,
// submitting a synthetic predicted step every tick as a smoke driver for
// the wire protocol end to end.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tickline/lockstep/internal/config"
	"github.com/tickline/lockstep/internal/telemetry"
	"github.com/tickline/lockstep/internal/transport"
)

func main() {
	configPath := flag.String("config", "client.yaml", "path to the client config YAML file")
	flag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		panic(err)
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	tel, err := telemetry.New(level, prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	defer tel.Sync()

	tel.Banner("lockstepclient", cfg.HostAddr)

	hostAddr, err := net.ResolveUDPAddr("udp", cfg.HostAddr)
	if err != nil {
		tel.Error("resolving host address failed", zap.Error(err))
		os.Exit(1)
	}

	conn, err := net.ListenPacket("udp", "0.0.0.0:0")
	if err != nil {
		tel.Error("socket setup failed", zap.Error(err))
		os.Exit(1)
	}

	tr := transport.New(conn, tel)
	app := newClientApp(cfg, tel, tr, hostAddr)
	tr.SetHandler(app.handleDatagram)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- tr.Run(ctx) }()
	go app.tickLoop(ctx)

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

// Chatserver — CLI entry point for the wormhole runtime's sample
// application: a chat hub reachable by any number of chatclient guests.
//
// It listens for WebSocket connections, turns each one into a portal via
// the nexus, and publishes a single shared Hub actor on every portal under
// the well-known name "hub". Non-interactive, flag-driven (-listen, -debug).
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/1ureka/wormhole/internal/chatapp"
	"github.com/1ureka/wormhole/internal/config"
	"github.com/1ureka/wormhole/internal/nexus"
	"github.com/1ureka/wormhole/internal/telemetry"
	"github.com/1ureka/wormhole/internal/util"
	"github.com/1ureka/wormhole/internal/wsconduit"
)

var version = "dev"

const shutdownGrace = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	listenAddr := flag.String("listen", ":8080", "Address to listen on, e.g. :8080")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg := config.ServerConfig{ListenAddr: *listenAddr, Debug: *debugMode}

	if cfg.Debug {
		util.EnableDebug()
	}

	util.LogInfo("Wormhole chatserver — v%s", version)

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger := telemetry.New(level, true)

	n := nexus.New(ctx, logger)
	hub := chatapp.NewHub(logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsconduit.Handler(ctx, func(a wsconduit.Accepted) {
		id := uuid.NewString()
		p := n.Connected(id, a.Sink)
		go wsconduit.ReceiveLoop(ctx, a.Source, p)
		hub.PublishHub(p)
		util.LogInfo("guest portal opened: %s (%s)", id, a.Addr)
	}))

	util.StartStatsReporter(ctx, func() util.StatsSnapshot {
		s := n.Stats()
		return util.StatsSnapshot{OpenPortals: s.OpenPortals, FramesSent: s.FramesSent, FramesRecv: s.FramesRecv}
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	util.LogSuccess("chat hub listening on %s/ws", cfg.ListenAddr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			util.LogError("listen failed: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	n.CloseAll()

	util.LogInfo("chatserver stopped")
}

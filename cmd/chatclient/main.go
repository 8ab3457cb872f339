// Chatclient — CLI entry point for a chat guest: dials a chatserver,
// connects under a display name, echoes lines read from stdin, and prints
// every broadcast the hub pushes back. Non-interactive, flag-driven
// (-server, -name, -debug).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
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

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	serverURL := flag.String("server", "ws://127.0.0.1:8080/ws", "Chat server WebSocket URL")
	name := flag.String("name", "", "Display name to connect as (default: a generated one)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	guestName := *name
	if guestName == "" {
		guestName = "guest-" + uuid.NewString()[:8]
	}

	cfg := config.ClientConfig{
		ServerURL:  *serverURL,
		Name:       guestName,
		AskTimeout: config.DefaultAskTimeout,
		Debug:      *debugMode,
	}

	if cfg.Debug {
		util.EnableDebug()
	}

	util.LogInfo("Wormhole chatclient — v%s", version)

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger := telemetry.New(level, true)

	sink, source, addr, err := wsconduit.Dial(ctx, cfg.ServerURL)
	if err != nil {
		util.LogError("failed to connect: %v", err)
		os.Exit(1)
	}

	n := nexus.New(ctx, logger)
	p := n.Connected(cfg.Name, sink)
	go wsconduit.ReceiveLoop(ctx, source, p)

	guest, err := chatapp.Connect(ctx, p, cfg.Name, func(push chatapp.BroadcastPush) {
		util.LogInfo("%s: %s", push.From, push.Text)
	})
	if err != nil {
		util.LogError("failed to connect to hub: %v", err)
		os.Exit(1)
	}

	util.LogSuccess("connected to %s as %q (peer %s)", cfg.ServerURL, cfg.Name, addr)
	fmt.Println("Type a message and press Enter to echo it. Ctrl+C to quit.")

	go readLines(ctx, guest, cfg.AskTimeout)

	select {
	case <-ctx.Done():
	case <-p.Done():
		util.LogWarning("connection to server lost")
	}

	util.LogInfo("chatclient stopped")
}

func readLines(ctx context.Context, guest *chatapp.Client, timeout time.Duration) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		_, err := guest.Echo(ctx, line, timeout)
		if err != nil {
			util.LogWarning("echo failed: %v", err)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

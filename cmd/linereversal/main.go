// Line Reversal — CLI entry point.
//
// Runs the LRCP engine described in SPEC_FULL.md §4.2 over a UDP datagram
// dispatcher, with the reference line-reversing application coroutine
// attached to every session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"

	"github.com/halvarsen/protoharbor/internal/lrcp"
	"github.com/halvarsen/protoharbor/internal/server"
	"github.com/halvarsen/protoharbor/internal/xlog"
)

var version = "dev"

const statsInterval = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	port := flag.Int("port", server.DefaultPort, "UDP port to listen on")
	debugMode := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debugMode {
		xlog.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Line Reversal — v%s", version))
	pterm.Println()

	xlog.StartStatsReporter(ctx, statsInterval)

	engine := lrcp.NewEngine(lrcp.Reverser)

	go func() {
		<-ctx.Done()
		xlog.Info("shutting down")
		os.Exit(0)
	}()

	if err := server.Serve(server.Config{
		Port:         *port,
		Mode:         server.ModeDatagram,
		DgramHandler: engine.Handler(),
	}); err != nil {
		xlog.Error("server exited: %v", err)
		os.Exit(1)
	}
}

// Speed Daemon — CLI entry point.
//
// Runs the road-speed enforcement server described in SPEC_FULL.md §4.1:
// cameras report license-plate observations, the daemon computes average
// speed between pairs of observations on the same road, and routes at most
// one ticket per plate per calendar day to a connected dispatcher.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"

	"github.com/halvarsen/protoharbor/internal/server"
	"github.com/halvarsen/protoharbor/internal/speeddaemon"
	"github.com/halvarsen/protoharbor/internal/xlog"
)

var version = "dev"

const statsInterval = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	port := flag.Int("port", server.DefaultPort, "TCP port to listen on")
	threads := flag.Int("threads", 200, "worker pool size")
	debugMode := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debugMode {
		xlog.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Speed Daemon — v%s", version))
	pterm.Println()

	xlog.StartStatsReporter(ctx, statsInterval)

	daemon := speeddaemon.NewDaemon()

	go func() {
		<-ctx.Done()
		xlog.Info("shutting down")
		os.Exit(0)
	}()

	if err := server.Serve(server.Config{
		Port:    *port,
		Mode:    server.ModeThreaded,
		Threads: *threads,
		Handler: speeddaemon.Handler(daemon),
	}); err != nil {
		xlog.Error("server exited: %v", err)
		os.Exit(1)
	}
}

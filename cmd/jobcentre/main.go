// Job Centre — CLI entry point.
//
// Runs the priority job broker described in SPEC_FULL.md §4.3: named
// queues, monotonic job ids, blocking multi-queue get, and abort/delete
// with implicit-abort-on-disconnect semantics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"

	"github.com/halvarsen/protoharbor/internal/jobcentre"
	"github.com/halvarsen/protoharbor/internal/server"
	"github.com/halvarsen/protoharbor/internal/xlog"
)

var version = "dev"

const statsInterval = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	port := flag.Int("port", server.DefaultPort, "TCP port to listen on")
	backlog := flag.Int("backlog", 1000, "TCP accept queue depth")
	threads := flag.Int("threads", 1100, "worker pool size")
	debugMode := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debugMode {
		xlog.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Job Centre — v%s", version))
	pterm.Println()

	xlog.StartStatsReporter(ctx, statsInterval)

	broker := jobcentre.NewBroker()

	go func() {
		<-ctx.Done()
		xlog.Info("shutting down")
		os.Exit(0)
	}()

	if err := server.Serve(server.Config{
		Port:    *port,
		Mode:    server.ModeThreaded,
		Threads: *threads,
		Backlog: *backlog,
		Handler: jobcentre.Handler(broker),
	}); err != nil {
		xlog.Error("server exited: %v", err)
		os.Exit(1)
	}
}

// Smoke test — CLI entry point.
//
// Runs the echo handler from SPEC_FULL.md §6 on the threaded dispatcher,
// exercising server.Serve end to end with no protocol logic attached.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"

	"github.com/halvarsen/protoharbor/internal/server"
	"github.com/halvarsen/protoharbor/internal/smoke"
	"github.com/halvarsen/protoharbor/internal/xlog"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	port := flag.Int("port", server.DefaultPort, "TCP port to listen on")
	debugMode := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debugMode {
		xlog.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Smoke Test — v%s", version))
	pterm.Println()

	go func() {
		<-ctx.Done()
		xlog.Info("shutting down")
		os.Exit(0)
	}()

	if err := server.Serve(server.Config{
		Port:    *port,
		Mode:    server.ModeThreaded,
		Handler: smoke.Handler,
	}); err != nil {
		xlog.Error("server exited: %v", err)
		os.Exit(1)
	}
}

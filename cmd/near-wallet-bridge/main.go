package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	nwb "github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(nwb.BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})
	if err := root.ExecuteContext(ctx); err != nil {
		log.Error("near-wallet-bridge failed", "error", err)
		stop()
		os.Exit(1)
	}
}

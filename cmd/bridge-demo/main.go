package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	bridgedemocmd "github.com/louisbranch/questbridge/internal/cmd/bridgedemo"
	"github.com/louisbranch/questbridge/internal/platform/config"
)

func main() {
	cfg, err := bridgedemocmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	log.SetPrefix("[BRIDGE-DEMO] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bridgedemocmd.Run(ctx, cfg); err != nil {
		config.Exitf("Error: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"gatekit/internal/app"
	"gatekit/pkg/config"
	"gatekit/pkg/logger"
)

// build metadata - set via ldflags during build/release
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	var (
		cfgPath = flag.String("config", "", "path to config file (yaml)")
		addr    = flag.String("addr", "", "listen address (overrides config)")
		eng     = flag.String("engine", "", "transport engine: nethttp or fasthttp (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *addr != "" {
		host, port, err := config.SplitAddr(*addr)
		if err != nil {
			log.Fatalf("invalid -addr %q: %v", *addr, err)
		}
		cfg.Server.Address = host
		cfg.Server.Port = port
	}
	if *eng != "" {
		cfg.Server.Engine = *eng
	}

	logger.InitWithLevel(cfg.Logging.Level)

	a, err := app.New(cfg, version)
	if err != nil {
		logger.Error("startup_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("server_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server_stopped")
}

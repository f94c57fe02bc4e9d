package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"factory-erp/internal/adapters/cli"
	"factory-erp/internal/config"
	"factory-erp/internal/logger"
	"factory-erp/internal/platform"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, cli.Usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	appLog, err := logger.NewZapLogger(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = appLog.Sync() }()

	ctx := context.Background()
	rt, err := platform.Build(ctx, cfg, appLog)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer rt.Close()

	if err := cli.Run(ctx, rt.Service, os.Args[1:], os.Stdout); err != nil {
		rt.Close()
		log.Fatalf("%v", err)
	}
}

// cmd/bot/main.go
package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/bot"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bootLogger, _ := zap.NewDevelopment()
	defer bootLogger.Sync()
	bootLogger.Info("Starting pool sniper")

	runner := bot.NewRunner(bootLogger)
	if err := runner.Initialize(*configPath); err != nil {
		bootLogger.Error("Failed to initialize", zap.Error(err))
		os.Exit(1)
	}

	if err := runner.Run(ctx); err != nil {
		bootLogger.Error("Failed to start pipeline", zap.Error(err))
		os.Exit(1)
	}

	runner.WaitForShutdown(ctx)
}

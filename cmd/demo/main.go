package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"walrus-agent/internal/bootstrap"
	"walrus-agent/internal/chat"
	"walrus-agent/internal/config"
	"walrus-agent/pkg/logger"
)

// main 依次执行固定的钱包演示步骤。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("demo 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if err := bootstrap.InitLogging(cfg.Logging); err != nil {
		return err
	}
	defer logger.Sync()

	rt, err := bootstrap.CreateAgent(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer rt.Close()
	bootstrap.StartMetrics(ctx, cfg.Server)

	demo := chat.Demo{
		Dest:   cfg.Demo.DestAddress,
		Amount: cfg.Demo.TransferAmount,
		Pause:  cfg.Demo.Pause(),
	}
	return demo.Run(ctx, os.Stdout, rt.Session())
}

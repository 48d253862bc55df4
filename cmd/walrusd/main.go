package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"walrus-agent/internal/api"
	"walrus-agent/internal/bootstrap"
	"walrus-agent/internal/config"
	"walrus-agent/pkg/logger"
)

// main 是 HTTP 聊天服务的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("walrusd 运行失败: %v", err)
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

	server := api.NewServer(cfg.Server, rt.Agent, rt.SessionID)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

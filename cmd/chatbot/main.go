package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"walrus-agent/internal/bootstrap"
	"walrus-agent/internal/chat"
	"walrus-agent/internal/config"
	"walrus-agent/pkg/logger"
)

// main 是命令行聊天机器人的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Starting Agent...")
	err := run(ctx)
	if errors.Is(err, chat.ErrInterrupted) {
		fmt.Println("Goodbye Agent!")
		return
	}
	if err != nil {
		log.Fatalf("chatbot 运行失败: %v", err)
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

	prompter := chat.SurveyPrompter{}
	mode, err := chat.ChooseMode(prompter, os.Stdout)
	if err != nil {
		return err
	}

	switch mode {
	case chat.ModeChat:
		return chat.RunChat(ctx, prompter, os.Stdout, rt.Session())
	case chat.ModeAuto:
		auto := chat.Autonomous{
			Interval: cfg.Autonomous.Interval(),
			Thought:  cfg.Autonomous.Thought,
		}
		if err := auto.Run(ctx, os.Stdout, rt.Session()); err != nil {
			return err
		}
		return chat.ErrInterrupted
	}
	return nil
}

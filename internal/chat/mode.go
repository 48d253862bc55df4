package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	xerrors "walrus-agent/internal/errors"
	"walrus-agent/pkg/logger"
)

// Mode 是命令行的运行模式。
type Mode string

// 可选模式。
const (
	ModeChat Mode = "chat"
	ModeAuto Mode = "auto"
)

// DefaultThought 是自主模式每轮发送的指令。
const DefaultThought = "Be creative and do something interesting on the blockchain. " +
	"Choose an action or set of actions and execute it that highlights your abilities."

// ChooseMode 反复询问直到得到合法的模式。
func ChooseMode(p Prompter, out io.Writer) (Mode, error) {
	for {
		fmt.Fprintln(out, "\nAvailable modes:")
		fmt.Fprintln(out, "1. chat    - Interactive chat mode")
		fmt.Fprintln(out, "2. auto    - Autonomous action mode")

		choice, err := p.AskInput("Choose a mode (enter number or name):")
		if err != nil {
			return "", err
		}
		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "1", "chat":
			return ModeChat, nil
		case "2", "auto":
			return ModeAuto, nil
		}
		fmt.Fprintln(out, "Invalid choice. Please try again.")
	}
}

// RunChat 逐行读取用户输入并转发给智能体，输入 exit 时正常返回。
// 单轮对话失败只输出错误，不终止会话。
func RunChat(ctx context.Context, p Prompter, out io.Writer, s Streamer) error {
	fmt.Fprintln(out, "Starting chat mode... Type 'exit' to end.")
	for {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		input, err := p.AskInput("Prompt:")
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if strings.EqualFold(input, "exit") {
			return nil
		}
		if input == "" {
			continue
		}
		if err := Relay(ctx, out, s, input, Separator); err != nil {
			if ctx.Err() != nil {
				return ErrInterrupted
			}
			logger.Component("chat").Log(ctx, xerrors.SeverityOf(err).Level(), "对话失败", slog.String("error", err.Error()))
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

// Autonomous 按固定间隔向智能体发送同一条指令。
type Autonomous struct {
	Interval time.Duration
	Thought  string
}

// Run 持续运行直到 ctx 被取消，取消视为正常退出。
func (a Autonomous) Run(ctx context.Context, out io.Writer, s Streamer) error {
	thought := a.Thought
	if strings.TrimSpace(thought) == "" {
		thought = DefaultThought
	}
	interval := a.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	fmt.Fprintln(out, "Starting autonomous mode...")
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if err := Relay(ctx, out, s, thought, Separator); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Component("chat").Log(ctx, xerrors.SeverityOf(err).Level(), "自主模式执行失败", slog.String("error", err.Error()))
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		timer.Reset(interval)
	}
}

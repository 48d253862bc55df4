package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultTransferAmount 是演示转账步骤的金额。
const DefaultTransferAmount = "0.001 ETH"

// DemoSteps 返回演示脚本的步骤，dest 为空时不包含转账步骤。
func DemoSteps(dest, amount string) []string {
	steps := []string{
		"Retrieve smart wallet address",
		"Check the wallet's EVM balance",
		"Generate a new smart wallet account",
		"Request testnet ETH from faucet",
	}
	if dest = strings.TrimSpace(dest); dest != "" {
		if strings.TrimSpace(amount) == "" {
			amount = DefaultTransferAmount
		}
		steps = append(steps, fmt.Sprintf("Send %s to %s", amount, dest))
	}
	return steps
}

// Demo 描述一次演示运行。
type Demo struct {
	Dest   string
	Amount string
	Pause  time.Duration
}

// Run 依次执行演示步骤，任一步骤失败即返回。
func (d Demo) Run(ctx context.Context, out io.Writer, s Streamer) error {
	fmt.Fprintln(out, "=== Coinbase Smart Wallet API Agent Demo ===")
	if strings.TrimSpace(d.Dest) == "" {
		fmt.Fprintln(out, "Warning: DEMO_DEST_ADDRESS not set; skipping transfer step.")
	}
	for _, step := range DemoSteps(d.Dest, d.Amount) {
		fmt.Fprintf(out, "\n>> Step: %s\n", step)
		if err := Relay(ctx, out, s, step, DemoSeparator); err != nil {
			return err
		}
		if d.Pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.Pause):
			}
		}
	}
	return nil
}

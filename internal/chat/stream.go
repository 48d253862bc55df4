package chat

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"walrus-agent/internal/agent"
)

// 片段之间的分隔线。
const (
	Separator     = "-------------------"
	DemoSeparator = "---"
)

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeNewlines 将 \r\n 与单独的 \r 统一为 \n。
func NormalizeNewlines(s string) string {
	return newlines.Replace(s)
}

// Streamer 是绑定了会话线程的智能体，每次调用执行一轮对话。
type Streamer interface {
	Stream(ctx context.Context, prompt string) iter.Seq2[agent.Chunk, error]
}

// Collect 执行一轮对话并按顺序拼接全部片段。
func Collect(ctx context.Context, s Streamer, prompt string) (string, error) {
	var b strings.Builder
	for chunk, err := range s.Stream(ctx, prompt) {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(NormalizeNewlines(chunk.Content))
	}
	return b.String(), nil
}

// Relay 执行一轮对话，每个片段输出后紧跟一行分隔线。
func Relay(ctx context.Context, out io.Writer, s Streamer, prompt, separator string) error {
	for chunk, err := range s.Stream(ctx, prompt) {
		if err != nil {
			return err
		}
		fmt.Fprintln(out, NormalizeNewlines(chunk.Content))
		fmt.Fprintln(out, separator)
	}
	return nil
}

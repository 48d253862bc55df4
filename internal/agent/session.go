package agent

import (
	"context"
	"iter"
)

// Session 将 Agent 与固定的线程 ID 绑定。
type Session struct {
	agent    *Agent
	threadID string
}

// Stream 在会话线程上执行一轮对话。
func (s *Session) Stream(ctx context.Context, prompt string) iter.Seq2[Chunk, error] {
	return s.agent.Stream(ctx, s.threadID, prompt)
}

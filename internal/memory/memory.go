package memory

import (
	"context"
	"sync"

	"walrus-agent/internal/llm"
)

// Store 定义会话记忆的持久化接口，按线程 ID 追加与读取消息。
type Store interface {
	Load(ctx context.Context, threadID string) ([]llm.Message, error)
	Append(ctx context.Context, threadID string, msgs ...llm.Message) error
	Close() error
}

// Saver 是进程内的会话记忆，进程退出后内容丢失。
type Saver struct {
	mu      sync.RWMutex
	threads map[string][]llm.Message
}

// NewSaver 创建进程内会话记忆。
func NewSaver() *Saver {
	return &Saver{threads: make(map[string][]llm.Message)}
}

// Load 返回线程消息的副本。
func (s *Saver) Load(_ context.Context, threadID string) ([]llm.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.threads[threadID]
	out := make([]llm.Message, len(stored))
	copy(out, stored)
	return out, nil
}

// Append 追加消息。
func (s *Saver) Append(_ context.Context, threadID string, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = append(s.threads[threadID], msgs...)
	return nil
}

// Close 清空所有线程。
func (s *Saver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = make(map[string][]llm.Message)
	return nil
}

package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/llm"
)

// Config 描述 Redis 会话记忆的连接参数。
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// ConversationStore 使用 Redis list 保存每个线程的消息，元素为 JSON 编码的消息。
type ConversationStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewConversationStore 创建 Redis 会话记忆并检查连接。
func NewConversationStore(ctx context.Context, cfg Config) (*ConversationStore, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "Redis address 不能为空")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "walrus:thread:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 Redis 失败")
	}
	return &ConversationStore{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

func (s *ConversationStore) key(threadID string) string {
	return s.prefix + threadID
}

// Load 读取线程的全部消息。
func (s *ConversationStore) Load(ctx context.Context, threadID string) ([]llm.Message, error) {
	values, err := s.client.LRange(ctx, s.key(threadID), 0, -1).Result()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取 Redis 会话失败")
	}
	msgs := make([]llm.Message, 0, len(values))
	for _, value := range values {
		var msg llm.Message
		if err := json.Unmarshal([]byte(value), &msg); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析 Redis 会话消息失败")
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Append 在一个事务中追加消息，并在配置了 TTL 时刷新过期时间。
func (s *ConversationStore) Append(ctx context.Context, threadID string, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		encoded, err := json.Marshal(msg)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化会话消息失败")
		}
		values = append(values, string(encoded))
	}

	key := s.key(threadID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入 Redis 会话失败")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (s *ConversationStore) Close() error {
	return s.client.Close()
}

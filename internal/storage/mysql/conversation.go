package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/llm"
)

// ConversationStore 将会话消息按线程写入 conversation_messages 表。
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore 建立连接池并执行内嵌迁移。
func NewConversationStore(ctx context.Context, cfg Config) (*ConversationStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行 MySQL 迁移失败")
	}
	return &ConversationStore{db: db}, nil
}

// Load 按写入顺序读取线程消息。
func (s *ConversationStore) Load(ctx context.Context, threadID string) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM conversation_messages WHERE thread_id = ? ORDER BY id ASC`, threadID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询会话消息失败")
	}
	defer rows.Close()

	var msgs []llm.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取会话消息失败")
		}
		var msg llm.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析会话消息失败")
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历会话消息失败")
	}
	return msgs, nil
}

// Append 在同一事务内追加一轮对话的全部消息。
func (s *ConversationStore) Append(ctx context.Context, threadID string, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "开启会话事务失败")
	}

	now := time.Now().Unix()
	for _, msg := range msgs {
		payload, err := json.Marshal(msg)
		if err != nil {
			tx.Rollback()
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化会话消息失败")
		}
		if _, err := tx.ExecContext(ctx, insertMessageSQL, threadID, msg.Role, string(payload), now); err != nil {
			tx.Rollback()
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入会话消息失败")
		}
	}

	if err := tx.Commit(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "提交会话事务失败")
	}
	return nil
}

// Close 关闭连接池。
func (s *ConversationStore) Close() error {
	return s.db.Close()
}

const insertMessageSQL = `INSERT INTO conversation_messages (thread_id, role, payload, created_at) VALUES (?, ?, ?, ?)`

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/llm"
)

func newStore(t *testing.T, ttl time.Duration) (*ConversationStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store, err := NewConversationStore(context.Background(), Config{Address: mr.Addr(), TTL: ttl})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestConversationStoreAppendAndLoad(t *testing.T) {
	store, mr := newStore(t, 0)
	ctx := context.Background()

	err := store.Append(ctx, "Smart Wallet Chatbot",
		llm.Message{Role: llm.RoleUser, Content: "balance?"},
		llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "get_wallet_details", Arguments: "{}"}}},
		llm.Message{Role: llm.RoleTool, ToolCallID: "call_1", Content: "Wallet Details"},
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, err := store.Load(ctx, "Smart Wallet Chatbot")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].ToolCalls[0].Name != "get_wallet_details" || msgs[2].ToolCallID != "call_1" {
		t.Fatalf("tool messages not preserved: %+v", msgs)
	}
	if !mr.Exists("walrus:thread:Smart Wallet Chatbot") {
		t.Fatalf("expected default key prefix")
	}
	if mr.TTL("walrus:thread:Smart Wallet Chatbot") != 0 {
		t.Fatalf("no ttl expected")
	}

	empty, err := store.Load(ctx, "other")
	if err != nil || len(empty) != 0 {
		t.Fatalf("unexpected other thread: %+v (%v)", empty, err)
	}
}

func TestConversationStoreKeepsMalformedToolArguments(t *testing.T) {
	store, _ := newStore(t, 0)
	ctx := context.Background()

	err := store.Append(ctx, "t1",
		llm.Message{Role: llm.RoleUser, Content: "send"},
		llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "native_transfer", Arguments: `{"to": "0xabc", "value": 1`}}},
		llm.Message{Role: llm.RoleTool, ToolCallID: "call_1", Content: "Error: 参数解析失败"},
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, err := store.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if got := msgs[1].ToolCalls[0].Arguments; got != `{"to": "0xabc", "value": 1` {
		t.Fatalf("arguments not preserved: %q", got)
	}
}

func TestConversationStoreTTL(t *testing.T) {
	store, mr := newStore(t, time.Hour)
	ctx := context.Background()

	if err := store.Append(ctx, "t1", llm.Message{Role: llm.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if ttl := mr.TTL("walrus:thread:t1"); ttl != time.Hour {
		t.Fatalf("unexpected ttl %s", ttl)
	}

	mr.FastForward(2 * time.Hour)
	msgs, err := store.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("thread should have expired")
	}
}

func TestConversationStoreCorruptEntry(t *testing.T) {
	store, mr := newStore(t, 0)
	if _, err := mr.RPush("walrus:thread:bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := store.Load(context.Background(), "bad")
	if xerrors.CodeOf(err) != xerrors.CodeStorageFailure {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestNewConversationStoreRequiresAddress(t *testing.T) {
	if _, err := NewConversationStore(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without address")
	}
}

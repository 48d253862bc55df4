package llm

import "context"

// 消息角色。
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message 描述一条对话消息，工具调用与工具结果也以消息形式保存在记忆中。
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall 是大模型请求执行的一次工具调用。Arguments 保留模型原样输出的参数文本，
// 即使不是合法 JSON 也能写入记忆。
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool 描述一个可被大模型调用的函数工具，Parameters 为 JSON Schema。
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request 描述发送给大模型的一轮推理上下文。
type Request struct {
	System   string
	Messages []Message
	Tools    []Tool
}

// Response 是大模型返回的助手消息。
type Response struct {
	Message Message
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Chat(ctx context.Context, req Request) (*Response, error)
}

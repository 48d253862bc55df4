package agent

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/llm"
	"walrus-agent/internal/memory"
	"walrus-agent/internal/observability/metrics"
	"walrus-agent/pkg/logger"
)

// DefaultInstructions 是 Walrus 智能体的系统提示词。
const DefaultInstructions = "You are Walrus, an AI assistant that helps users perform onchain actions using Coinbase's AgentKit. " +
	"You can help users manage their smart wallets, check balances, request testnet funds, make transfers, " +
	"and interact with Base Sepolia. Be concise, helpful, and focus on onchain actions. " +
	"Always explain what you're doing and why. When users ask you to perform actions, execute them confidently " +
	"and explain the results in simple terms. Remember you're assisting non-technical users with blockchain interactions."

// 流式片段的来源节点。
const (
	NodeAgent = "agent"
	NodeTools = "tools"
)

// defaultMaxSteps 是单轮对话允许的最大推理步数。
const defaultMaxSteps = 25

// MaxThreadIDLength 是线程 ID 的最大字节数，受 conversation_messages.thread_id 列宽约束。
const MaxThreadIDLength = 128

// Chunk 是智能体一次推理或一次工具执行产生的文本片段。
type Chunk struct {
	Node    string
	Content string
}

// Toolbox 提供可供大模型调用的工具目录，由 AgentKit 实现。
type Toolbox interface {
	Tools() []llm.Tool
	Invoke(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// Agent 以 ReAct 方式循环调用大模型与工具，是系统的业务核心。
type Agent struct {
	llmClient    llm.Client
	toolbox      Toolbox
	store        memory.Store
	instructions string
	memoryDepth  int
	maxSteps     int
	llmTimeout   time.Duration

	locksMu sync.Mutex
	locks   map[string]*threadLock
}

// threadLock 串行化同一线程的对话，没有等待者时从表中移除。
type threadLock struct {
	mu   sync.Mutex
	refs int
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithInstructions 替换系统提示词，空字符串保留默认值。
func WithInstructions(instructions string) Option {
	return func(a *Agent) {
		if strings.TrimSpace(instructions) != "" {
			a.instructions = instructions
		}
	}
}

// WithMemoryDepth 限制每轮推理携带的历史消息条数，0 表示不限制。
func WithMemoryDepth(depth int) Option {
	return func(a *Agent) {
		if depth < 0 {
			depth = 0
		}
		a.memoryDepth = depth
	}
}

// WithMaxSteps 设置单轮对话允许的最大推理步数。
func WithMaxSteps(steps int) Option {
	return func(a *Agent) {
		if steps > 0 {
			a.maxSteps = steps
		}
	}
}

// WithLLMTimeout 设置调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout <= 0 {
			a.llmTimeout = 0
			return
		}
		a.llmTimeout = timeout
	}
}

// New 创建一个 Agent，store 为空时使用进程内记忆。
func New(llmClient llm.Client, toolbox Toolbox, store memory.Store, opts ...Option) (*Agent, error) {
	if llmClient == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if toolbox == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置工具目录")
	}
	if store == nil {
		store = memory.NewSaver()
	}
	ag := &Agent{
		llmClient:    llmClient,
		toolbox:      toolbox,
		store:        store,
		instructions: DefaultInstructions,
		maxSteps:     defaultMaxSteps,
		locks:        make(map[string]*threadLock),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	return ag, nil
}

// Stream 针对指定线程执行一轮对话，惰性地产出每一步的文本片段。
// 消费方提前停止迭代时，本轮已产生的消息仍会写入记忆。
func (a *Agent) Stream(ctx context.Context, threadID, prompt string) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		if strings.TrimSpace(prompt) == "" {
			yield(Chunk{}, xerrors.New(xerrors.CodeInvalidArgument, "输入内容不能为空"))
			return
		}
		if strings.TrimSpace(threadID) == "" {
			yield(Chunk{}, xerrors.New(xerrors.CodeInvalidArgument, "线程 ID 不能为空"))
			return
		}
		if len(threadID) > MaxThreadIDLength {
			yield(Chunk{}, xerrors.New(xerrors.CodeInvalidArgument,
				fmt.Sprintf("线程 ID 长度不能超过 %d", MaxThreadIDLength)))
			return
		}

		unlock := a.lockThread(threadID)
		defer unlock()

		history, err := a.store.Load(ctx, threadID)
		if err != nil {
			yield(Chunk{}, err)
			return
		}
		history = trimHistory(history, a.memoryDepth)

		turn := []llm.Message{{Role: llm.RoleUser, Content: prompt}}
		defer func() { a.persist(ctx, threadID, turn) }()

		tools := a.toolbox.Tools()
		for step := 0; step < a.maxSteps; step++ {
			messages := make([]llm.Message, 0, len(history)+len(turn))
			messages = append(messages, history...)
			messages = append(messages, turn...)

			reply, err := a.callLLM(ctx, llm.Request{
				System:   a.instructions,
				Messages: messages,
				Tools:    tools,
			})
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			turn = append(turn, reply)

			metrics.ObserveChunk(NodeAgent)
			if !yield(Chunk{Node: NodeAgent, Content: reply.Content}, nil) {
				return
			}
			if len(reply.ToolCalls) == 0 {
				return
			}

			for _, call := range reply.ToolCalls {
				out, err := a.toolbox.Invoke(ctx, call.Name, json.RawMessage(call.Arguments))
				if err != nil {
					out = "Error: " + err.Error()
				}
				turn = append(turn, llm.Message{
					Role:       llm.RoleTool,
					ToolCallID: call.ID,
					Name:       call.Name,
					Content:    out,
				})
				metrics.ObserveChunk(NodeTools)
				if !yield(Chunk{Node: NodeTools, Content: out}, nil) {
					return
				}
			}
		}

		yield(Chunk{}, xerrors.New(xerrors.CodeStepLimit,
			fmt.Sprintf("超过最大推理步数 %d", a.maxSteps),
			xerrors.WithMetadata("thread_id", threadID)))
	}
}

// Session 返回绑定到指定线程的会话。
func (a *Agent) Session(threadID string) *Session {
	return &Session{agent: a, threadID: threadID}
}

func (a *Agent) callLLM(ctx context.Context, req llm.Request) (llm.Message, error) {
	llmCtx := ctx
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.llmClient.Chat(llmCtx, req)
	metrics.ObserveLLMCall(err, time.Since(start))
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return llm.Message{}, xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		if _, ok := xerrors.From(err); ok {
			return llm.Message{}, err
		}
		return llm.Message{}, xerrors.Wrap(xerrors.CodeLLMFailure, err, "大模型推理失败")
	}
	if resp == nil {
		return llm.Message{}, xerrors.New(xerrors.CodeLLMFailure, "大模型返回为空")
	}
	msg := resp.Message
	msg.Role = llm.RoleAssistant
	return msg, nil
}

// persist 写入本轮消息，未得到结果的工具调用补齐为中断错误，保证历史可被再次发送。
func (a *Agent) persist(ctx context.Context, threadID string, turn []llm.Message) {
	turn = closeToolCalls(turn)
	if err := a.store.Append(context.WithoutCancel(ctx), threadID, turn...); err != nil {
		logger.Component("agent").Error("保存会话记忆失败",
			slog.String("thread_id", threadID),
			slog.String("error", err.Error()))
	}
}

func (a *Agent) lockThread(threadID string) func() {
	a.locksMu.Lock()
	lock, ok := a.locks[threadID]
	if !ok {
		lock = &threadLock{}
		a.locks[threadID] = lock
	}
	lock.refs++
	a.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		a.locksMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(a.locks, threadID)
		}
		a.locksMu.Unlock()
	}
}

// trimHistory 保留最近 depth 条消息，并丢弃开头不以用户消息起始的片段。
func trimHistory(history []llm.Message, depth int) []llm.Message {
	if depth <= 0 || len(history) <= depth {
		return history
	}
	history = history[len(history)-depth:]
	for i, msg := range history {
		if msg.Role == llm.RoleUser {
			return history[i:]
		}
	}
	return nil
}

func closeToolCalls(turn []llm.Message) []llm.Message {
	answered := make(map[string]struct{})
	for _, msg := range turn {
		if msg.Role == llm.RoleTool {
			answered[msg.ToolCallID] = struct{}{}
		}
	}
	for _, msg := range turn {
		for _, call := range msg.ToolCalls {
			if _, ok := answered[call.ID]; ok {
				continue
			}
			turn = append(turn, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    "Error: 工具调用被中断",
			})
		}
	}
	return turn
}

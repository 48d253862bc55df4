package agentkit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"walrus-agent/internal/action"
	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/llm"
	"walrus-agent/internal/observability/metrics"
	"walrus-agent/internal/web3"
	"walrus-agent/pkg/logger"
)

// AgentKit 将钱包与一组动作提供者组合为可供大模型调用的工具目录。
type AgentKit struct {
	wallet  web3.WalletProvider
	actions map[string]action.Action
	order   []string
	owners  map[string]string
}

// New 按网络过滤动作提供者并建立动作索引，动作重名时返回错误。
func New(wallet web3.WalletProvider, providers ...action.Provider) (*AgentKit, error) {
	if wallet == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "AgentKit 需要钱包")
	}
	log := logger.Component("agentkit")
	network := wallet.Network()

	kit := &AgentKit{
		wallet:  wallet,
		actions: make(map[string]action.Action),
		owners:  make(map[string]string),
	}
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		if !provider.SupportsNetwork(network) {
			log.Warn("action provider does not support network, skipped",
				slog.String("provider", provider.Name()),
				slog.String("network", network.ID))
			continue
		}
		for _, act := range provider.Actions() {
			if act.Invoke == nil {
				return nil, xerrors.New(xerrors.CodeInitializationFailure,
					fmt.Sprintf("动作 %s 未实现", act.Name))
			}
			if owner, exists := kit.owners[act.Name]; exists {
				return nil, xerrors.New(xerrors.CodeInitializationFailure,
					fmt.Sprintf("动作 %s 同时由 %s 与 %s 提供", act.Name, owner, provider.Name()))
			}
			kit.actions[act.Name] = act
			kit.owners[act.Name] = provider.Name()
			kit.order = append(kit.order, act.Name)
		}
	}
	log.Info("agentkit ready",
		slog.String("network", network.ID),
		slog.String("address", wallet.Address().Hex()),
		slog.Int("actions", len(kit.order)))
	return kit, nil
}

// Wallet 返回绑定的钱包。
func (k *AgentKit) Wallet() web3.WalletProvider {
	return k.wallet
}

// Tools 以注册顺序返回函数工具描述。
func (k *AgentKit) Tools() []llm.Tool {
	tools := make([]llm.Tool, 0, len(k.order))
	for _, name := range k.order {
		act := k.actions[name]
		schema := act.Schema
		if schema == nil {
			schema = action.ObjectSchema()
		}
		tools = append(tools, llm.Tool{
			Name:        act.Name,
			Description: act.Description,
			Parameters:  schema,
		})
	}
	return tools
}

// Invoke 执行指定动作，所有调用都会写入审计日志并计入指标。
func (k *AgentKit) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	act, ok := k.actions[name]
	if !ok {
		return "", xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("未知的动作: %s", name),
			xerrors.WithMetadata("action", name))
	}

	start := time.Now()
	out, err := act.Invoke(ctx, k.wallet, args)
	elapsed := time.Since(start)
	metrics.ObserveToolInvocation(name, err, elapsed)

	attrs := []any{
		slog.String("action", name),
		slog.String("provider", k.owners[name]),
		slog.String("network", k.wallet.Network().ID),
		slog.String("arguments", string(args)),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()), slog.String("code", string(xerrors.CodeOf(err))))
		logger.Audit().Warn("action_failed", attrs...)
		return "", err
	}
	logger.Audit().Info("action_invoked", attrs...)
	return out, nil
}

// Close 释放钱包持有的连接。
func (k *AgentKit) Close() {
	if k.wallet != nil {
		k.wallet.Close()
	}
}

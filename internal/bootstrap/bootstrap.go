package bootstrap

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"walrus-agent/internal/action/cdpapi"
	"walrus-agent/internal/action/erc20"
	"walrus-agent/internal/action/pyth"
	walletaction "walrus-agent/internal/action/wallet"
	"walrus-agent/internal/agent"
	"walrus-agent/internal/agentkit"
	"walrus-agent/internal/config"
	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/llm"
	"walrus-agent/internal/llm/openai"
	"walrus-agent/internal/memory"
	"walrus-agent/internal/storage/mysql"
	"walrus-agent/internal/storage/redis"
	"walrus-agent/internal/wallet"
	"walrus-agent/internal/web3"
	"walrus-agent/internal/web3/provider"
	"walrus-agent/pkg/logger"
)

// Dialer 将签名私钥绑定到指定网络，返回钱包。
type Dialer func(ctx context.Context, networkID string, key *ecdsa.PrivateKey, persistedAddress string) (web3.WalletProvider, error)

// Options 允许调用方替换启动过程中的外部依赖，零值表示使用默认实现。
type Options struct {
	Dialer     Dialer
	LLM        llm.Client
	Memory     memory.Store
	HTTPClient *http.Client
	Getenv     func(string) string
}

func (o Options) getenv(key string) string {
	if o.Getenv != nil {
		return o.Getenv(key)
	}
	return os.Getenv(key)
}

// Runtime 汇总一次启动得到的全部组件，由调用方负责关闭。
type Runtime struct {
	Config    *config.Config
	Kit       *agentkit.AgentKit
	Agent     *agent.Agent
	Memory    memory.Store
	SessionID string
}

// Session 返回进程级共享会话。
func (r *Runtime) Session() *agent.Session {
	return r.Agent.Session(r.SessionID)
}

// Close 释放会话记忆与钱包连接。
func (r *Runtime) Close() error {
	var err error
	if r.Memory != nil {
		err = r.Memory.Close()
	}
	if r.Kit != nil {
		r.Kit.Close()
	}
	return err
}

// PrepareAgentKit 读取或生成钱包凭据，连接目标网络，回写凭据文件并装配动作提供者。
func PrepareAgentKit(ctx context.Context, cfg *config.Config, opts Options) (*agentkit.AgentKit, error) {
	if cfg == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "配置不能为空")
	}
	log := logger.Component("bootstrap")

	store := wallet.NewStore(cfg.Wallet.DataFile)
	stored, err := store.Load()
	if err != nil {
		return nil, err
	}
	creds, generated, err := store.Resolve(stored, cfg.Wallet.PrivateKey)
	if err != nil {
		return nil, err
	}
	key, err := wallet.ParsePrivateKey(creds.PrivateKey)
	if err != nil {
		return nil, err
	}

	dial := opts.Dialer
	if dial == nil {
		registry, err := provider.NewRegistry(cfg.Web3)
		if err != nil {
			return nil, err
		}
		dial = registry.Dial
	}
	w, err := dial(ctx, cfg.Wallet.NetworkID, key, creds.SmartWalletAddress)
	if err != nil {
		return nil, err
	}

	creds.SmartWalletAddress = w.Address().Hex()
	if err := store.Save(creds); err != nil {
		w.Close()
		return nil, err
	}
	log.Info("wallet ready",
		slog.String("network", w.Network().ID),
		slog.String("address", creds.SmartWalletAddress),
		slog.String("wallet_file", store.Path()),
		slog.Bool("generated", generated))

	pythProvider, err := pyth.New(pyth.Config{
		HermesURL:  cfg.Actions.Pyth.HermesURL,
		CacheSize:  cfg.Actions.Pyth.CacheSize,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		w.Close()
		return nil, err
	}
	faucet, err := cdpapi.New(cdpapi.Config{
		FaucetURL:  cfg.Actions.Faucet.URL,
		KeyID:      opts.getenv(cfg.Actions.Faucet.KeyIDEnv),
		KeySecret:  opts.getenv(cfg.Actions.Faucet.KeySecretEnv),
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		w.Close()
		return nil, err
	}

	kit, err := agentkit.New(w,
		faucet,
		walletaction.New(),
		erc20.New(),
		pythProvider,
	)
	if err != nil {
		w.Close()
		return nil, err
	}
	return kit, nil
}

// NewMemory 按配置创建会话记忆后端。
func NewMemory(ctx context.Context, cfg config.MemoryConfig) (memory.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return memory.NewSaver(), nil
	case "redis":
		return redis.NewConversationStore(ctx, redis.Config{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       time.Duration(cfg.Redis.TTLSeconds) * time.Second,
		})
	case "mysql":
		return mysql.NewConversationStore(ctx, mysql.Config{
			DSN:             cfg.MySQL.DSN,
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.MySQL.ConnMaxLifetimeSeconds) * time.Second,
		})
	default:
		return nil, xerrors.New(xerrors.CodeInitializationFailure,
			fmt.Sprintf("未知的记忆驱动: %s", cfg.Driver))
	}
}

// NewLLMClient 按配置创建大模型客户端。
func NewLLMClient(cfg config.LLMConfig) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		client, err := openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAI.ResolveAPIKey(),
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.OpenAI.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		logger.Component("bootstrap").Info("llm client ready",
			slog.String("provider", "openai"),
			slog.String("model", client.Model()))
		return client, nil
	default:
		return nil, xerrors.New(xerrors.CodeInitializationFailure,
			fmt.Sprintf("未知的大模型提供方: %s", cfg.Provider))
	}
}

// CreateAgent 完成钱包、大模型与会话记忆的装配，返回可直接使用的运行时。
func CreateAgent(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	kit, err := PrepareAgentKit(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	llmClient := opts.LLM
	if llmClient == nil {
		llmClient, err = NewLLMClient(cfg.LLM)
		if err != nil {
			kit.Close()
			return nil, err
		}
	}

	store := opts.Memory
	if store == nil {
		store, err = NewMemory(ctx, cfg.Memory)
		if err != nil {
			kit.Close()
			return nil, err
		}
	}

	ag, err := agent.New(llmClient, kit, store,
		agent.WithInstructions(cfg.Agent.Instructions),
		agent.WithMemoryDepth(cfg.Agent.MemoryDepth),
		agent.WithMaxSteps(cfg.Agent.MaxSteps),
		agent.WithLLMTimeout(cfg.Agent.LLMTimeout()),
	)
	if err != nil {
		store.Close()
		kit.Close()
		return nil, err
	}

	w := kit.Wallet()
	logger.Component("bootstrap").Info("agent ready",
		slog.String("network", w.Network().ID),
		slog.String("address", w.Address().Hex()),
		slog.Int("tools", len(kit.Tools())),
		slog.String("memory", cfg.Memory.Driver),
		slog.String("session", cfg.Agent.SessionID))

	return &Runtime{
		Config:    cfg,
		Kit:       kit,
		Agent:     ag,
		Memory:    store,
		SessionID: cfg.Agent.SessionID,
	}, nil
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 环境变量名称。
const (
	EnvConfigPath   = "WALRUS_CONFIG"
	EnvPrivateKey   = "PRIVATE_KEY"
	EnvNetwork      = "NETWORK"
	EnvDemoDest     = "DEMO_DEST_ADDRESS"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvCDPKeyID     = "CDP_API_KEY_ID"
	EnvCDPKeySecret = "CDP_API_KEY_SECRET"
	DefaultNetwork  = "base-sepolia"
	DefaultSession  = "Smart Wallet Chatbot"
)

// Config 描述了钱包智能体在启动阶段需要加载的核心配置。
type Config struct {
	Server     ServerConfig     `json:"server"`
	LLM        LLMConfig        `json:"llm"`
	Wallet     WalletConfig     `json:"wallet"`
	Web3       Web3Config       `json:"web3"`
	Agent      AgentConfig      `json:"agent"`
	Memory     MemoryConfig     `json:"memory"`
	Actions    ActionsConfig    `json:"actions"`
	Autonomous AutonomousConfig `json:"autonomous"`
	Demo       DemoConfig       `json:"demo"`
	Logging    LoggingConfig    `json:"logging"`
}

// ServerConfig 控制 HTTP 服务的监听地址与跨域策略。
// MetricsAddress 仅供命令行与演示进程单独暴露 /metrics，HTTP 服务自身已挂载该路由。
type ServerConfig struct {
	Address        string          `json:"address"`
	MetricsAddress string          `json:"metrics_address"`
	AllowedOrigins []string        `json:"allowed_origins"`
	RateLimit      RateLimitConfig `json:"rate_limit"`
}

// RateLimitConfig 限制聊天接口的整体请求速率，RPS 为 0 时不限流。
type RateLimitConfig struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider string       `json:"provider"`
	OpenAI   OpenAIConfig `json:"openai"`
}

// OpenAIConfig 描述调用 OpenAI 兼容接口所需的参数。
type OpenAIConfig struct {
	APIKey         string  `json:"api_key"`
	APIKeyEnv      string  `json:"api_key_env"`
	BaseURL        string  `json:"base_url"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// Timeout 返回请求超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolveAPIKey 优先使用配置中的密钥，其次读取环境变量。
func (c OpenAIConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key
	}
	if c.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

// WalletConfig 描述钱包凭据文件与目标网络。
type WalletConfig struct {
	DataFile   string `json:"data_file"`
	PrivateKey string `json:"-"`
	NetworkID  string `json:"network_id"`
}

// Web3Config 指向额外的链定义文件。
type Web3Config struct {
	ChainConfig string `json:"chain_config"`
}

// AgentConfig 控制智能体的会话与推理循环。
type AgentConfig struct {
	SessionID         string `json:"session_id"`
	Instructions      string `json:"instructions"`
	MemoryDepth       int    `json:"memory_depth"`
	MaxSteps          int    `json:"max_steps"`
	LLMTimeoutSeconds int    `json:"llm_timeout_seconds"`
}

// LLMTimeout 返回单次大模型调用的超时时间，0 表示不限制。
func (c AgentConfig) LLMTimeout() time.Duration {
	if c.LLMTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// MemoryConfig 选择会话记忆的存储后端。
type MemoryConfig struct {
	Driver string            `json:"driver"`
	Redis  RedisMemoryConfig `json:"redis"`
	MySQL  MySQLMemoryConfig `json:"mysql"`
}

// RedisMemoryConfig 描述 Redis 记忆后端的连接参数。
type RedisMemoryConfig struct {
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	KeyPrefix  string `json:"key_prefix"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// MySQLMemoryConfig 描述 MySQL 记忆后端的连接参数。
type MySQLMemoryConfig struct {
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// ActionsConfig 汇总各个 action provider 的外部依赖。
type ActionsConfig struct {
	Faucet FaucetConfig `json:"faucet"`
	Pyth   PythConfig   `json:"pyth"`
}

// FaucetConfig 描述测试网水龙头接口，密钥 ID 与私钥从环境变量读取，用于签发请求级 JWT。
type FaucetConfig struct {
	URL          string `json:"url"`
	KeyIDEnv     string `json:"key_id_env"`
	KeySecretEnv string `json:"key_secret_env"`
}

// PythConfig 描述 Pyth Hermes 价格服务。
type PythConfig struct {
	HermesURL string `json:"hermes_url"`
	CacheSize int    `json:"cache_size"`
}

// AutonomousConfig 控制自主模式的节奏。
type AutonomousConfig struct {
	IntervalSeconds int    `json:"interval_seconds"`
	Thought         string `json:"thought"`
}

// Interval 返回两轮自主指令之间的间隔。
func (c AutonomousConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// DemoConfig 控制演示脚本。
type DemoConfig struct {
	DestAddress    string `json:"-"`
	PauseMillis    int    `json:"pause_millis"`
	TransferAmount string `json:"transfer_amount"`
}

// Pause 返回演示步骤之间的停顿。
func (c DemoConfig) Pause() time.Duration {
	return time.Duration(c.PauseMillis) * time.Millisecond
}

// LoggingConfig 对应 pkg/logger 的配置。
type LoggingConfig struct {
	Level       string      `json:"level"`
	Format      string      `json:"format"`
	OutputPaths []string    `json:"output_paths"`
	Audit       AuditConfig `json:"audit"`
}

// AuditConfig 描述审计日志的输出位置。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Load 解析指定路径的 JSON 配置文件。文件不存在时使用默认配置。
func Load(path string) (*Config, error) {
	var cfg Config
	baseDir := "."

	if strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(content, &cfg); err != nil {
				return nil, fmt.Errorf("解析配置失败: %w", err)
			}
			baseDir = filepath.Dir(path)
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg.applyDefaults(baseDir)
	return &cfg, nil
}

// LoadFromEnv 加载 .env 文件后读取配置，并应用环境变量覆盖。
func LoadFromEnv() (*Config, error) {
	// .env 缺失并不是错误。
	_ = godotenv.Load()

	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = filepath.Join("configs", "walrus.json")
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv 使用环境变量覆盖私钥、网络与演示地址。
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvPrivateKey); ok {
		c.Wallet.PrivateKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvNetwork); ok && strings.TrimSpace(v) != "" {
		c.Wallet.NetworkID = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDemoDest); ok {
		c.Demo.DestAddress = strings.TrimSpace(v)
	}
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8001"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	}
	if c.Server.RateLimit.RPS > 0 && c.Server.RateLimit.Burst <= 0 {
		c.Server.RateLimit.Burst = 1
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = EnvOpenAIKey
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = "gpt-4o-mini"
	}

	if c.Wallet.DataFile == "" {
		c.Wallet.DataFile = "wallet_data.txt"
	}
	if c.Wallet.NetworkID == "" {
		c.Wallet.NetworkID = DefaultNetwork
	}

	if c.Web3.ChainConfig != "" && !filepath.IsAbs(c.Web3.ChainConfig) {
		c.Web3.ChainConfig = filepath.Join(baseDir, c.Web3.ChainConfig)
	}

	if c.Agent.SessionID == "" {
		c.Agent.SessionID = DefaultSession
	}
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 25
	}

	if c.Memory.Driver == "" {
		c.Memory.Driver = "memory"
	}
	if c.Memory.Redis.KeyPrefix == "" {
		c.Memory.Redis.KeyPrefix = "walrus:thread:"
	}

	if c.Actions.Faucet.URL == "" {
		c.Actions.Faucet.URL = "https://api.cdp.coinbase.com/platform/v2/evm/faucet"
	}
	if c.Actions.Faucet.KeyIDEnv == "" {
		c.Actions.Faucet.KeyIDEnv = EnvCDPKeyID
	}
	if c.Actions.Faucet.KeySecretEnv == "" {
		c.Actions.Faucet.KeySecretEnv = EnvCDPKeySecret
	}
	if c.Actions.Pyth.HermesURL == "" {
		c.Actions.Pyth.HermesURL = "https://hermes.pyth.network"
	}
	if c.Actions.Pyth.CacheSize <= 0 {
		c.Actions.Pyth.CacheSize = 128
	}

	if c.Autonomous.IntervalSeconds <= 0 {
		c.Autonomous.IntervalSeconds = 10
	}
	if c.Demo.PauseMillis <= 0 {
		c.Demo.PauseMillis = 1000
	}
	if c.Demo.TransferAmount == "" {
		c.Demo.TransferAmount = "0.001 ETH"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Audit.Enabled && c.Logging.Audit.Path != "" && !filepath.IsAbs(c.Logging.Audit.Path) {
		c.Logging.Audit.Path = filepath.Join(baseDir, c.Logging.Audit.Path)
	}
}

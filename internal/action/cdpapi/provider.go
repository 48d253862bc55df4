// Package cdpapi 提供依赖外部 API 的动作，目前包括测试网水龙头领取。
package cdpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"walrus-agent/internal/action"
	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/web3"
	"walrus-agent/pkg/logger"
)

// Config 描述水龙头接口地址与鉴权信息。
type Config struct {
	FaucetURL  string
	KeyID      string
	KeySecret  string
	HTTPClient *http.Client
	Now        func() time.Time
}

// Provider 实现 cdp_api 动作集合。
type Provider struct {
	faucetURL  string
	signer     *signer
	httpClient *http.Client
}

// New 创建 cdp_api 动作提供者。未配置密钥时仍可创建，领取时返回错误。
func New(cfg Config) (*Provider, error) {
	s, err := newSigner(cfg.KeyID, cfg.KeySecret, cfg.Now)
	if err != nil {
		return nil, err
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Provider{
		faucetURL:  strings.TrimSpace(cfg.FaucetURL),
		signer:     s,
		httpClient: client,
	}, nil
}

// Name 返回提供者名称。
func (p *Provider) Name() string {
	return "cdp_api"
}

// SupportsNetwork 水龙头只在测试网可用。
func (p *Provider) SupportsNetwork(network web3.Network) bool {
	return network.Testnet
}

// Actions 返回提供者暴露的动作。
func (p *Provider) Actions() []action.Action {
	return []action.Action{{
		Name: "request_faucet_funds",
		Description: "This tool will request test tokens from the faucet for the default address in the wallet.\n" +
			"It takes the wallet and asset ID as input.\n" +
			"If no asset ID is provided the faucet defaults to ETH. Faucet is only allowed on test networks.",
		Schema: action.ObjectSchema(action.Property{
			Name: "asset_id", Description: "The optional asset ID to request from faucet, e.g. eth or usdc",
		}),
		Invoke: p.requestFaucetFunds,
	}}
}

func (p *Provider) requestFaucetFunds(ctx context.Context, wallet web3.WalletProvider, args json.RawMessage) (string, error) {
	var in struct {
		AssetID string `json:"asset_id"`
	}
	if err := action.Decode(args, &in); err != nil {
		return "", err
	}
	asset := strings.ToLower(strings.TrimSpace(in.AssetID))
	if asset == "" {
		asset = "eth"
	}

	network := wallet.Network()
	if !network.Testnet {
		return "", xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("水龙头仅支持测试网，当前网络为 %s", network.ID))
	}
	if p.faucetURL == "" {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "未配置水龙头接口地址")
	}
	if p.signer == nil {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "未配置 CDP API 密钥")
	}

	payload, err := json.Marshal(map[string]string{
		"network": network.ID,
		"address": wallet.Address().Hex(),
		"token":   asset,
	})
	if err != nil {
		return "", action.Failed("request_faucet_funds", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.faucetURL, bytes.NewReader(payload))
	if err != nil {
		return "", action.Failed("request_faucet_funds", err)
	}
	req.Header.Set("Content-Type", "application/json")
	token, err := p.signer.token(req.Method, req.URL.Host, req.URL.Path)
	if err != nil {
		return "", action.Failed("request_faucet_funds", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", action.Failed("request_faucet_funds", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", xerrors.New(xerrors.CodeActionFailure,
			fmt.Sprintf("水龙头返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			xerrors.WithMetadata("action", "request_faucet_funds"))
	}

	var decoded struct {
		TransactionHash string `json:"transactionHash"`
		SnakeCaseHash   string `json:"transaction_hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", action.Failed("request_faucet_funds", err)
	}
	hash := decoded.TransactionHash
	if hash == "" {
		hash = decoded.SnakeCaseHash
	}
	if hash == "" {
		return "", xerrors.New(xerrors.CodeActionFailure, "水龙头响应缺少交易哈希")
	}

	logger.Audit().Info("faucet_requested",
		slog.String("network", network.ID),
		slog.String("address", wallet.Address().Hex()),
		slog.String("asset", asset),
		slog.String("tx_hash", hash))

	return fmt.Sprintf("Received %s from the faucet. Transaction: %s", asset, hash), nil
}

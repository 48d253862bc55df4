// Package pyth 通过 Pyth Hermes HTTP 接口查询价格源 ID 与最新价格。
package pyth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"walrus-agent/internal/action"
	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/web3"
)

const (
	defaultHermesURL = "https://hermes.pyth.network"
	defaultCacheSize = 128
)

// Config 描述 Hermes 服务地址与价格源缓存大小。
type Config struct {
	HermesURL  string
	CacheSize  int
	HTTPClient *http.Client
}

// Provider 实现 pyth 动作集合。
type Provider struct {
	baseURL    string
	httpClient *http.Client
	feeds      *lru.Cache[string, string]
}

// New 创建 pyth 动作提供者。
func New(cfg Config) (*Provider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.HermesURL), "/")
	if baseURL == "" {
		baseURL = defaultHermesURL
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "创建价格源缓存失败")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Provider{baseURL: baseURL, httpClient: client, feeds: cache}, nil
}

// Name 返回提供者名称。
func (p *Provider) Name() string {
	return "pyth"
}

// SupportsNetwork 价格查询与网络无关。
func (p *Provider) SupportsNetwork(web3.Network) bool {
	return true
}

// Actions 返回提供者暴露的动作。
func (p *Provider) Actions() []action.Action {
	return []action.Action{
		{
			Name: "fetch_price_feed",
			Description: "Fetch the price feed ID for a given token symbol from Pyth.\n" +
				"The price feed ID is required by fetch_price.",
			Schema: action.ObjectSchema(action.Property{
				Name: "token_symbol", Description: "The token symbol to fetch the price feed ID for, e.g. BTC", Required: true,
			}),
			Invoke: p.fetchPriceFeed,
		},
		{
			Name: "fetch_price",
			Description: "Fetch the latest USD price of a token from Pyth given its price feed ID.\n" +
				"Use fetch_price_feed first to look up the feed ID of a token symbol.",
			Schema: action.ObjectSchema(action.Property{
				Name: "price_feed_id", Description: "The price feed ID to fetch the price for", Required: true,
			}),
			Invoke: p.fetchPrice,
		},
	}
}

// FeedID 返回代币符号对应的 USD 价格源 ID，结果会被缓存。
func (p *Provider) FeedID(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "token_symbol 不能为空")
	}
	if id, ok := p.feeds.Get(symbol); ok {
		return id, nil
	}

	query := url.Values{}
	query.Set("query", symbol)
	query.Set("asset_type", "crypto")

	var feeds []struct {
		ID         string `json:"id"`
		Attributes struct {
			Base          string `json:"base"`
			QuoteCurrency string `json:"quote_currency"`
		} `json:"attributes"`
	}
	if err := p.get(ctx, "/v2/price_feeds?"+query.Encode(), &feeds); err != nil {
		return "", err
	}
	for _, feed := range feeds {
		if strings.EqualFold(feed.Attributes.Base, symbol) && strings.EqualFold(feed.Attributes.QuoteCurrency, "USD") {
			p.feeds.Add(symbol, feed.ID)
			return feed.ID, nil
		}
	}
	return "", xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("未找到 %s 的 USD 价格源", symbol))
}

// Price 返回价格源的最新价格，已按指数换算为十进制字符串。
func (p *Provider) Price(ctx context.Context, feedID string) (string, error) {
	feedID = strings.TrimSpace(feedID)
	if feedID == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "price_feed_id 不能为空")
	}

	query := url.Values{}
	query.Add("ids[]", feedID)

	var decoded struct {
		Parsed []struct {
			ID    string `json:"id"`
			Price struct {
				Price string `json:"price"`
				Expo  int    `json:"expo"`
			} `json:"price"`
		} `json:"parsed"`
	}
	if err := p.get(ctx, "/v2/updates/price/latest?"+query.Encode(), &decoded); err != nil {
		return "", err
	}
	if len(decoded.Parsed) == 0 {
		return "", xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("价格源 %s 没有价格数据", feedID))
	}

	raw := decoded.Parsed[0].Price
	mantissa, ok := new(big.Int).SetString(raw.Price, 10)
	if !ok {
		return "", xerrors.New(xerrors.CodeActionFailure, fmt.Sprintf("价格格式无效: %s", raw.Price))
	}
	return scale(mantissa, raw.Expo), nil
}

func (p *Provider) fetchPriceFeed(ctx context.Context, _ web3.WalletProvider, args json.RawMessage) (string, error) {
	var in struct {
		TokenSymbol string `json:"token_symbol"`
	}
	if err := action.Decode(args, &in); err != nil {
		return "", err
	}
	id, err := p.FeedID(ctx, in.TokenSymbol)
	if err != nil {
		return "", action.Failed("fetch_price_feed", err)
	}
	return id, nil
}

func (p *Provider) fetchPrice(ctx context.Context, _ web3.WalletProvider, args json.RawMessage) (string, error) {
	var in struct {
		PriceFeedID string `json:"price_feed_id"`
	}
	if err := action.Decode(args, &in); err != nil {
		return "", err
	}
	price, err := p.Price(ctx, in.PriceFeedID)
	if err != nil {
		return "", action.Failed("fetch_price", err)
	}
	return price, nil
}

func (p *Provider) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeActionFailure, err, "构建 Hermes 请求失败")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeActionFailure, err, "请求 Hermes 失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return xerrors.New(xerrors.CodeActionFailure,
			fmt.Sprintf("Hermes 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Wrap(xerrors.CodeActionFailure, err, "解析 Hermes 响应失败")
	}
	return nil
}

// scale 计算 mantissa * 10^expo 并以十进制字符串返回。
func scale(mantissa *big.Int, expo int) string {
	if expo >= 0 {
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(expo)), nil)
		return new(big.Int).Mul(mantissa, factor).String()
	}
	if -expo > 255 {
		return "0"
	}
	return web3.FormatUnits(mantissa, uint8(-expo))
}

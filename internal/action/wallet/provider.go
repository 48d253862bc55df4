// Package wallet 提供与当前钱包直接相关的动作：查询钱包详情与原生代币转账。
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"walrus-agent/internal/action"
	"walrus-agent/internal/web3"
)

// Provider 实现 wallet 动作集合。
type Provider struct{}

// New 创建 wallet 动作提供者。
func New() *Provider {
	return &Provider{}
}

// Name 返回提供者名称。
func (p *Provider) Name() string {
	return "wallet"
}

// SupportsNetwork 对所有 EVM 网络可用。
func (p *Provider) SupportsNetwork(web3.Network) bool {
	return true
}

// Actions 返回提供者暴露的动作。
func (p *Provider) Actions() []action.Action {
	return []action.Action{
		{
			Name: "get_wallet_details",
			Description: "This tool will return the details of the connected wallet including:\n" +
				"- Wallet address\n- Network information (network id, chain id)\n- Native token balance",
			Schema: action.ObjectSchema(),
			Invoke: p.walletDetails,
		},
		{
			Name: "native_transfer",
			Description: "This tool will transfer native tokens from the wallet to another onchain address.\n" +
				"It takes the following inputs:\n" +
				"- to: the destination address to receive the funds (e.g. '0x5154eae861cac3aa757d6016babaf972341354cf')\n" +
				"- value: the amount to transfer in whole units (e.g. '1' for 1 ETH, '0.001' for 0.001 ETH)",
			Schema: action.ObjectSchema(
				action.Property{Name: "to", Description: "The destination address to receive the funds", Required: true},
				action.Property{Name: "value", Description: "The amount to transfer in whole units e.g. 1 ETH or 0.00001 ETH", Required: true},
			),
			Invoke: p.nativeTransfer,
		},
	}
}

func (p *Provider) walletDetails(ctx context.Context, wallet web3.WalletProvider, _ json.RawMessage) (string, error) {
	network := wallet.Network()
	balance, err := wallet.Balance(ctx)
	if err != nil {
		return "", action.Failed("get_wallet_details", err)
	}
	snapshot, err := wallet.ChainSnapshot(ctx)
	if err != nil {
		return "", action.Failed("get_wallet_details", err)
	}

	var b strings.Builder
	b.WriteString("Wallet Details:\n")
	fmt.Fprintf(&b, "- Address: %s\n", wallet.Address().Hex())
	b.WriteString("- Network:\n")
	b.WriteString("  * Protocol Family: evm\n")
	fmt.Fprintf(&b, "  * Network ID: %s\n", network.ID)
	fmt.Fprintf(&b, "  * Chain ID: %d\n", network.ChainID)
	fmt.Fprintf(&b, "  * Latest Block: %s\n", snapshot.BlockNumber)
	fmt.Fprintf(&b, "- Native Balance: %s %s", web3.FormatUnits(balance, web3.EtherDecimals), symbol(network))
	return b.String(), nil
}

func (p *Provider) nativeTransfer(ctx context.Context, wallet web3.WalletProvider, args json.RawMessage) (string, error) {
	var in struct {
		To    string `json:"to"`
		Value string `json:"value"`
	}
	if err := action.Decode(args, &in); err != nil {
		return "", err
	}
	to, err := action.ParseAddress("to", in.To)
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(in.Value)
	value = strings.TrimSpace(strings.TrimSuffix(strings.ToUpper(value), strings.ToUpper(symbol(wallet.Network()))))
	amount, err := web3.ParseUnits(value, web3.EtherDecimals)
	if err != nil {
		return "", action.Failed("native_transfer", err)
	}

	hash, err := wallet.NativeTransfer(ctx, to, amount)
	if err != nil {
		return "", action.Failed("native_transfer", err)
	}
	return fmt.Sprintf("Transferred %s %s to %s.\nTransaction hash: %s",
		web3.FormatUnits(amount, web3.EtherDecimals), symbol(wallet.Network()), to.Hex(), hash.Hex()), nil
}

func symbol(network web3.Network) string {
	if network.NativeSymbol == "" {
		return "ETH"
	}
	return network.NativeSymbol
}

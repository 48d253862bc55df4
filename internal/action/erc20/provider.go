// Package erc20 提供 ERC20 代币相关动作：查询余额、转账与授权。
package erc20

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"

	"walrus-agent/internal/action"
	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/web3"
)

// ABI 是动作所需的 ERC20 方法子集。
const ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

var erc20ABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ABI))
	if err != nil {
		panic(fmt.Sprintf("解析 ERC20 ABI 失败: %v", err))
	}
	return parsed
}

// Provider 实现 erc20 动作集合。
type Provider struct {
	abi abi.ABI
}

// New 创建 erc20 动作提供者。
func New() *Provider {
	return &Provider{abi: erc20ABI}
}

// Name 返回提供者名称。
func (p *Provider) Name() string {
	return "erc20"
}

// SupportsNetwork 对所有 EVM 网络可用。
func (p *Provider) SupportsNetwork(web3.Network) bool {
	return true
}

// Actions 返回提供者暴露的动作。
func (p *Provider) Actions() []action.Action {
	contract := action.Property{Name: "contract_address", Description: "The contract address of the ERC20 token", Required: true}
	amount := action.Property{Name: "amount", Description: "The amount in whole units of the token e.g. 10.5", Required: true}
	return []action.Action{
		{
			Name: "get_balance",
			Description: "This tool will get the balance of an ERC20 token for the connected wallet.\n" +
				"It takes the following input:\n- contract_address: the contract address of the token",
			Schema: action.ObjectSchema(contract),
			Invoke: p.getBalance,
		},
		{
			Name: "transfer",
			Description: "This tool will transfer an amount of an ERC20 token from the wallet to another onchain address.\n" +
				"It takes the following inputs:\n- amount: the amount in whole units\n" +
				"- contract_address: the token contract\n- destination: the receiving address\n" +
				"Never assume token or contract addresses, ask the user if they are unknown.",
			Schema: action.ObjectSchema(amount, contract,
				action.Property{Name: "destination", Description: "The destination address to receive the tokens", Required: true}),
			Invoke: p.transfer,
		},
		{
			Name: "approve",
			Description: "This tool will approve a spender to transfer ERC20 tokens on behalf of the wallet.\n" +
				"It takes the following inputs:\n- amount: the allowance in whole units\n" +
				"- contract_address: the token contract\n- spender: the address allowed to spend",
			Schema: action.ObjectSchema(amount, contract,
				action.Property{Name: "spender", Description: "The address that will be allowed to spend the tokens", Required: true}),
			Invoke: p.approve,
		},
	}
}

type tokenInfo struct {
	symbol   string
	decimals uint8
}

func (p *Provider) getBalance(ctx context.Context, wallet web3.WalletProvider, args json.RawMessage) (string, error) {
	var in struct {
		ContractAddress string `json:"contract_address"`
	}
	if err := action.Decode(args, &in); err != nil {
		return "", err
	}
	token, err := action.ParseAddress("contract_address", in.ContractAddress)
	if err != nil {
		return "", err
	}

	contract := wallet.Contract(token, p.abi)
	info, err := tokenDetails(ctx, wallet, contract)
	if err != nil {
		return "", action.Failed("get_balance", err)
	}
	balance, err := call[*big.Int](ctx, wallet, contract, "balanceOf", wallet.Address())
	if err != nil {
		return "", action.Failed("get_balance", err)
	}
	return fmt.Sprintf("Balance of %s (%s) for %s is %s",
		info.symbol, token.Hex(), wallet.Address().Hex(), web3.FormatUnits(balance, info.decimals)), nil
}

func (p *Provider) transfer(ctx context.Context, wallet web3.WalletProvider, args json.RawMessage) (string, error) {
	var in struct {
		Amount          string `json:"amount"`
		ContractAddress string `json:"contract_address"`
		Destination     string `json:"destination"`
	}
	if err := action.Decode(args, &in); err != nil {
		return "", err
	}
	token, err := action.ParseAddress("contract_address", in.ContractAddress)
	if err != nil {
		return "", err
	}
	dest, err := action.ParseAddress("destination", in.Destination)
	if err != nil {
		return "", err
	}

	hash, info, value, err := p.send(ctx, wallet, token, "transfer", in.Amount, dest)
	if err != nil {
		return "", action.Failed("transfer", err)
	}
	return fmt.Sprintf("Transferred %s %s to %s.\nTransaction hash for the transfer: %s",
		web3.FormatUnits(value, info.decimals), info.symbol, dest.Hex(), hash.Hex()), nil
}

func (p *Provider) approve(ctx context.Context, wallet web3.WalletProvider, args json.RawMessage) (string, error) {
	var in struct {
		Amount          string `json:"amount"`
		ContractAddress string `json:"contract_address"`
		Spender         string `json:"spender"`
	}
	if err := action.Decode(args, &in); err != nil {
		return "", err
	}
	token, err := action.ParseAddress("contract_address", in.ContractAddress)
	if err != nil {
		return "", err
	}
	spender, err := action.ParseAddress("spender", in.Spender)
	if err != nil {
		return "", err
	}

	hash, info, value, err := p.send(ctx, wallet, token, "approve", in.Amount, spender)
	if err != nil {
		return "", action.Failed("approve", err)
	}
	return fmt.Sprintf("Approved %s to spend %s %s.\nTransaction hash for the approval: %s",
		spender.Hex(), web3.FormatUnits(value, info.decimals), info.symbol, hash.Hex()), nil
}

func (p *Provider) send(ctx context.Context, wallet web3.WalletProvider, token common.Address, method, amount string, target common.Address) (common.Hash, tokenInfo, *big.Int, error) {
	contract := wallet.Contract(token, p.abi)
	info, err := tokenDetails(ctx, wallet, contract)
	if err != nil {
		return common.Hash{}, tokenInfo{}, nil, err
	}
	value, err := web3.ParseUnits(amount, info.decimals)
	if err != nil {
		return common.Hash{}, tokenInfo{}, nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "金额无效")
	}
	hash, err := wallet.Transact(ctx, func(opts *bind.TransactOpts) (*coretypes.Transaction, error) {
		return contract.Transact(opts, method, target, value)
	})
	if err != nil {
		return common.Hash{}, tokenInfo{}, nil, err
	}
	return hash, info, value, nil
}

func tokenDetails(ctx context.Context, wallet web3.WalletProvider, contract *bind.BoundContract) (tokenInfo, error) {
	decimals, err := call[uint8](ctx, wallet, contract, "decimals")
	if err != nil {
		return tokenInfo{}, err
	}
	symbol, err := call[string](ctx, wallet, contract, "symbol")
	if err != nil {
		symbol = "tokens"
	}
	return tokenInfo{symbol: symbol, decimals: decimals}, nil
}

// call 执行只读合约方法并取出第一个返回值。
func call[T any](ctx context.Context, wallet web3.WalletProvider, contract *bind.BoundContract, method string, params ...any) (T, error) {
	var zero T
	var out []any
	opts := &bind.CallOpts{Context: ctx, From: wallet.Address()}
	if err := contract.Call(opts, &out, method, params...); err != nil {
		return zero, xerrors.Wrap(xerrors.CodeActionFailure, err, fmt.Sprintf("调用 %s 失败，地址可能不是 ERC20 合约", method))
	}
	if len(out) == 0 {
		return zero, xerrors.New(xerrors.CodeActionFailure, fmt.Sprintf("%s 没有返回值", method))
	}
	return *abi.ConvertType(out[0], new(T)).(*T), nil
}

package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/web3"
	"walrus-agent/pkg/logger"
)

// Backend mirrors the subset of go-ethereum client methods the wallet needs.
// Both *ethclient.Client and simulated.Client satisfy it.
type Backend interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
}

// Config describes how to bind a signing key to an EVM network.
type Config struct {
	Network          web3.Network
	PrivateKey       *ecdsa.PrivateKey
	PersistedAddress string
}

// WalletProvider implements web3.WalletProvider with an EOA signer.
type WalletProvider struct {
	network web3.Network
	auth    *bind.TransactOpts
	chainID *big.Int
	backend Backend

	// commit mines pending transactions on simulated backends.
	commit  func()
	closeFn func()

	// sendMu keeps pending nonces in order while a transaction is mined.
	sendMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// Dial connects to the network RPC endpoint and returns a ready-to-use wallet.
func Dial(ctx context.Context, cfg Config) (*WalletProvider, error) {
	rpcURL := strings.TrimSpace(cfg.Network.RPCURL)
	if rpcURL == "" {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, fmt.Sprintf("网络 %s 未配置 RPC 地址", cfg.Network.ID))
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeWalletFailure, err, "连接以太坊节点失败")
	}
	eth := ethclient.NewClient(rpcClient)

	provider, err := newWalletProvider(ctx, eth, cfg)
	if err != nil {
		eth.Close()
		return nil, err
	}
	provider.closeFn = eth.Close
	return provider, nil
}

// NewSimulated wraps a go-ethereum simulated backend for testing purposes.
// Every sent transaction is mined immediately.
func NewSimulated(ctx context.Context, backend *simulated.Backend, cfg Config) (*WalletProvider, error) {
	if backend == nil {
		return nil, errors.New("模拟后端不能为空")
	}
	if cfg.Network.ID == "" {
		cfg.Network = web3.Network{ID: "simulated", NativeSymbol: "ETH", Testnet: true, Description: "simulated backend"}
	}
	provider, err := newWalletProvider(ctx, backend.Client(), cfg)
	if err != nil {
		return nil, err
	}
	provider.commit = func() { backend.Commit() }
	return provider, nil
}

func newWalletProvider(ctx context.Context, backend Backend, cfg Config) (*WalletProvider, error) {
	if cfg.PrivateKey == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未提供签名私钥")
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeWalletFailure, err, "获取链 ID 失败")
	}
	network := cfg.Network
	if network.ChainID != 0 && network.ChainID != chainID.Int64() {
		return nil, xerrors.New(xerrors.CodeUnsupportedNetwork,
			fmt.Sprintf("网络 %s 期望链 ID %d，节点返回 %s", network.ID, network.ChainID, chainID),
			xerrors.WithMetadata("network", network.ID))
	}
	network.ChainID = chainID.Int64()

	auth, err := bind.NewKeyedTransactorWithChainID(cfg.PrivateKey, chainID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeWalletFailure, err, "创建交易签名器失败")
	}
	address := auth.From
	if persisted := strings.TrimSpace(cfg.PersistedAddress); persisted != "" {
		if !common.IsHexAddress(persisted) || common.HexToAddress(persisted) != address {
			logger.Component("web3").Warn("persisted wallet address does not match signer, using signer address",
				slog.String("persisted", persisted),
				slog.String("signer", address.Hex()))
		}
	}

	return &WalletProvider{
		network: network,
		auth:    auth,
		chainID: chainID,
		backend: backend,
	}, nil
}

// Address returns the account used for signing.
func (w *WalletProvider) Address() common.Address {
	return w.auth.From
}

// Network returns the network the wallet is bound to.
func (w *WalletProvider) Network() web3.Network {
	return w.network
}

// Balance returns the native balance of the wallet in wei.
func (w *WalletProvider) Balance(ctx context.Context) (*big.Int, error) {
	balance, err := w.backend.BalanceAt(ctx, w.auth.From, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeWalletFailure, err, "查询余额失败")
	}
	return balance, nil
}

// NativeTransfer sends value wei to the destination and waits for the receipt.
func (w *WalletProvider) NativeTransfer(ctx context.Context, to common.Address, value *big.Int) (common.Hash, error) {
	if value == nil || value.Sign() <= 0 {
		return common.Hash{}, xerrors.New(xerrors.CodeInvalidArgument, "转账金额必须大于 0")
	}
	return w.SendTransaction(ctx, web3.CallRequest{To: to, Value: value})
}

// SendTransaction signs an EIP-1559 transaction for a raw call request,
// broadcasts it and waits until it is mined.
func (w *WalletProvider) SendTransaction(ctx context.Context, req web3.CallRequest) (common.Hash, error) {
	if err := w.ensureOpen(); err != nil {
		return common.Hash{}, err
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To
	gas, err := w.backend.EstimateGas(ctx, gethcore.CallMsg{
		From:  w.auth.From,
		To:    &to,
		Value: value,
		Data:  req.Data,
	})
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeWalletFailure, err, "估算 gas 失败")
	}

	target := bind.NewBoundContract(to, abi.ABI{}, w.backend, w.backend, w.backend)
	return w.Transact(ctx, func(opts *bind.TransactOpts) (*coretypes.Transaction, error) {
		opts.Value = value
		opts.GasLimit = gas
		return target.RawTransact(opts, req.Data)
	})
}

// Contract binds a contract ABI to the wallet backend.
func (w *WalletProvider) Contract(address common.Address, parsed abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(address, parsed, w.backend, w.backend, w.backend)
}

// Transact hands fresh signing options to send, then waits for the
// resulting transaction to be mined successfully.
func (w *WalletProvider) Transact(ctx context.Context, send func(opts *bind.TransactOpts) (*coretypes.Transaction, error)) (common.Hash, error) {
	if err := w.ensureOpen(); err != nil {
		return common.Hash{}, err
	}

	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	tx, err := send(&bind.TransactOpts{From: w.auth.From, Signer: w.auth.Signer, Context: ctx})
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeWalletFailure, err, "发送交易失败")
	}
	if w.commit != nil {
		w.commit()
	}

	to := ""
	if tx.To() != nil {
		to = tx.To().Hex()
	}
	logger.Audit().Info("transaction_sent",
		slog.String("network", w.network.ID),
		slog.String("from", w.auth.From.Hex()),
		slog.String("to", to),
		slog.String("value", tx.Value().String()),
		slog.String("tx_hash", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, w.backend, tx)
	if err != nil {
		if ctx.Err() != nil {
			return tx.Hash(), xerrors.Wrap(xerrors.CodeTimeout, err, "等待交易上链超时")
		}
		return tx.Hash(), xerrors.Wrap(xerrors.CodeWalletFailure, err, "查询交易回执失败")
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		return tx.Hash(), xerrors.New(xerrors.CodeWalletFailure,
			fmt.Sprintf("交易 %s 执行失败", tx.Hash().Hex()),
			xerrors.WithMetadata("tx_hash", tx.Hash().Hex()))
	}
	return tx.Hash(), nil
}

// ChainSnapshot gathers lightweight metadata from the chain.
func (w *WalletProvider) ChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	blockNumber, err := w.backend.BlockNumber(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, xerrors.Wrap(xerrors.CodeWalletFailure, err, "获取最新区块高度失败")
	}
	return web3.ChainSnapshot{
		NetworkID:   w.network.ID,
		ChainID:     toHexBig(w.chainID),
		BlockNumber: fmt.Sprintf("0x%x", blockNumber),
		Notes:       w.network.Description,
	}, nil
}

// Close releases network connections held by the wallet.
func (w *WalletProvider) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.closeFn != nil {
		w.closeFn()
	}
}

func (w *WalletProvider) ensureOpen() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return xerrors.New(xerrors.CodeWalletFailure, "钱包已关闭")
	}
	return nil
}

func toHexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}

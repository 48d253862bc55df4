// Package actiontest provides an in-memory wallet provider for exercising
// action providers without a chain.
package actiontest

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"walrus-agent/internal/web3"
)

// signerKey controls 0x2c7536E3605D9C16a7a3D7b1898e529396a65c23.
const signerKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

// Wallet records every transaction it is asked to send. Contract calls are
// answered by ReadFn.
type Wallet struct {
	Addr    common.Address
	Net     web3.Network
	Funds   *big.Int
	ReadFn  func(req web3.CallRequest) ([]byte, error)
	SendErr error

	key *ecdsa.PrivateKey

	mu   sync.Mutex
	sent []web3.CallRequest
}

// NewWallet returns a wallet on a testnet with 1 ETH.
func NewWallet() *Wallet {
	key, err := crypto.HexToECDSA(signerKey)
	if err != nil {
		panic(err)
	}
	return &Wallet{
		Addr:  crypto.PubkeyToAddress(key.PublicKey),
		Net:   web3.Network{ID: "base-sepolia", ChainID: 84532, NativeSymbol: "ETH", Testnet: true},
		Funds: big.NewInt(1_000_000_000_000_000_000),
		key:   key,
	}
}

func (w *Wallet) Address() common.Address { return w.Addr }

func (w *Wallet) Network() web3.Network { return w.Net }

func (w *Wallet) Balance(context.Context) (*big.Int, error) {
	return new(big.Int).Set(w.Funds), nil
}

func (w *Wallet) NativeTransfer(ctx context.Context, to common.Address, value *big.Int) (common.Hash, error) {
	return w.SendTransaction(ctx, web3.CallRequest{To: to, Value: value})
}

func (w *Wallet) SendTransaction(_ context.Context, req web3.CallRequest) (common.Hash, error) {
	if w.SendErr != nil {
		return common.Hash{}, w.SendErr
	}
	return w.record(req), nil
}

func (w *Wallet) Contract(address common.Address, parsed abi.ABI) *bind.BoundContract {
	b := backend{w}
	return bind.NewBoundContract(address, parsed, b, b, b)
}

func (w *Wallet) Transact(ctx context.Context, send func(opts *bind.TransactOpts) (*coretypes.Transaction, error)) (common.Hash, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, big.NewInt(w.Net.ChainID))
	if err != nil {
		return common.Hash{}, err
	}
	opts.Context = ctx
	tx, err := send(opts)
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

func (w *Wallet) ChainSnapshot(context.Context) (web3.ChainSnapshot, error) {
	return web3.ChainSnapshot{
		NetworkID:   w.Net.ID,
		ChainID:     fmt.Sprintf("0x%x", w.Net.ChainID),
		BlockNumber: "0x10",
	}, nil
}

func (w *Wallet) Close() {}

// Sent returns a copy of the transactions sent so far.
func (w *Wallet) Sent() []web3.CallRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]web3.CallRequest(nil), w.sent...)
}

func (w *Wallet) record(req web3.CallRequest) common.Hash {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, req)
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("%s-%d", req.To.Hex(), len(w.sent))))
}

// backend serves bound contracts from the wallet's ReadFn and records
// transactions they send.
type backend struct {
	w *Wallet
}

func (b backend) CodeAt(_ context.Context, _ common.Address, _ *big.Int) ([]byte, error) {
	if b.w.ReadFn == nil {
		return nil, nil
	}
	return []byte{0x60}, nil
}

func (b backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return b.CodeAt(ctx, account, nil)
}

func (b backend) CallContract(_ context.Context, call gethcore.CallMsg, _ *big.Int) ([]byte, error) {
	if b.w.ReadFn == nil || call.To == nil {
		return nil, fmt.Errorf("no contract at %v", call.To)
	}
	return b.w.ReadFn(web3.CallRequest{To: *call.To, Value: call.Value, Data: call.Data})
}

func (b backend) HeaderByNumber(context.Context, *big.Int) (*coretypes.Header, error) {
	return &coretypes.Header{Number: big.NewInt(16), BaseFee: big.NewInt(1)}, nil
}

func (b backend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return uint64(len(b.w.Sent())), nil
}

func (b backend) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(2), nil }

func (b backend) SuggestGasTipCap(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (b backend) EstimateGas(context.Context, gethcore.CallMsg) (uint64, error) { return 60_000, nil }

func (b backend) SendTransaction(_ context.Context, tx *coretypes.Transaction) error {
	if b.w.SendErr != nil {
		return b.w.SendErr
	}
	req := web3.CallRequest{Value: tx.Value(), Data: tx.Data()}
	if tx.To() != nil {
		req.To = *tx.To()
	}
	b.w.record(req)
	return nil
}

func (b backend) FilterLogs(context.Context, gethcore.FilterQuery) ([]coretypes.Log, error) {
	return nil, nil
}

func (b backend) SubscribeFilterLogs(context.Context, gethcore.FilterQuery, chan<- coretypes.Log) (gethcore.Subscription, error) {
	return nil, fmt.Errorf("log subscriptions are not supported")
}

package web3

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// ChainSnapshot represents summarized network metadata reported with wallet details.
type ChainSnapshot struct {
	NetworkID   string
	ChainID     string
	BlockNumber string
	Notes       string
}

// Network describes an EVM network the wallet can be bound to.
type Network struct {
	ID           string
	ChainID      int64
	RPCURL       string
	NativeSymbol string
	Testnet      bool
	Description  string
}

// CallRequest describes a raw transaction issued by an action.
type CallRequest struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// WalletProvider abstracts a signing account bound to a single network so
// action providers can stay independent from the concrete chain client.
type WalletProvider interface {
	Address() common.Address
	Network() Network
	Balance(ctx context.Context) (*big.Int, error)
	NativeTransfer(ctx context.Context, to common.Address, value *big.Int) (common.Hash, error)
	SendTransaction(ctx context.Context, req CallRequest) (common.Hash, error)
	// Contract binds an ABI to the wallet's chain backend for calls.
	Contract(address common.Address, parsed abi.ABI) *bind.BoundContract
	// Transact runs send with the wallet's signing options and waits for
	// the transaction it returns to be mined.
	Transact(ctx context.Context, send func(opts *bind.TransactOpts) (*coretypes.Transaction, error)) (common.Hash, error)
	ChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	Close()
}

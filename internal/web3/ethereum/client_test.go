package ethereum

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"

	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/web3"
)

// constantContractBin deploys a contract whose runtime returns uint256(42)
// for any call.
const (
	constantContractBin = "0x600a600c600039600a6000f3602a60005260206000f3"
	constantContractABI = `[{"name":"answer","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]`
)

func newSimulatedWallet(t *testing.T) (*WalletProvider, *simulated.Backend) {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	funds, _ := new(big.Int).SetString("10000000000000000000", 10)
	backend := simulated.NewBackend(coretypes.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: funds},
	})
	t.Cleanup(func() { _ = backend.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wallet, err := NewSimulated(ctx, backend, Config{PrivateKey: key})
	if err != nil {
		t.Fatalf("new simulated wallet: %v", err)
	}
	t.Cleanup(wallet.Close)
	return wallet, backend
}

func TestWalletNativeTransfer(t *testing.T) {
	wallet, backend := newSimulatedWallet(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dest := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	amount, err := web3.ParseUnits("0.001", web3.EtherDecimals)
	if err != nil {
		t.Fatalf("parse units: %v", err)
	}

	hash, err := wallet.NativeTransfer(ctx, dest, amount)
	if err != nil {
		t.Fatalf("native transfer: %v", err)
	}
	if hash == (common.Hash{}) {
		t.Fatal("expected transaction hash")
	}

	got, err := backend.Client().BalanceAt(ctx, dest, nil)
	if err != nil {
		t.Fatalf("balance of destination: %v", err)
	}
	if got.Cmp(amount) != 0 {
		t.Fatalf("unexpected destination balance %s", got)
	}

	balance, err := wallet.Balance(ctx)
	if err != nil {
		t.Fatalf("wallet balance: %v", err)
	}
	if balance.Sign() <= 0 {
		t.Fatalf("unexpected wallet balance %s", balance)
	}
}

func TestWalletRejectsZeroTransfer(t *testing.T) {
	wallet, _ := newSimulatedWallet(t)
	_, err := wallet.NativeTransfer(context.Background(), common.Address{}, big.NewInt(0))
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestWalletChainSnapshot(t *testing.T) {
	wallet, backend := newSimulatedWallet(t)
	backend.Commit()

	snapshot, err := wallet.ChainSnapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.ChainID != "0x539" {
		t.Fatalf("unexpected chain id %s", snapshot.ChainID)
	}
	if snapshot.BlockNumber == "0x0" {
		t.Fatal("expected block number to advance after commit")
	}
	if snapshot.NetworkID != "simulated" {
		t.Fatalf("unexpected network id %s", snapshot.NetworkID)
	}
}

func deployConstant(t *testing.T, wallet *WalletProvider, backend *simulated.Backend) common.Address {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(constantContractABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	var address common.Address
	_, err = wallet.Transact(context.Background(), func(opts *bind.TransactOpts) (*coretypes.Transaction, error) {
		addr, tx, _, err := bind.DeployContract(opts, parsed, common.FromHex(constantContractBin), backend.Client())
		address = addr
		return tx, err
	})
	if err != nil {
		t.Fatalf("deploy contract: %v", err)
	}
	return address
}

func TestWalletContractCall(t *testing.T) {
	wallet, backend := newSimulatedWallet(t)
	address := deployConstant(t, wallet, backend)

	parsed, err := abi.JSON(strings.NewReader(constantContractABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	var out []any
	err = wallet.Contract(address, parsed).Call(&bind.CallOpts{Context: context.Background()}, &out, "answer")
	if err != nil {
		t.Fatalf("call contract: %v", err)
	}
	if got := out[0].(*big.Int); got.Int64() != 42 {
		t.Fatalf("unexpected contract output %s", got)
	}
}

func TestWalletSendTransactionToContract(t *testing.T) {
	wallet, backend := newSimulatedWallet(t)
	address := deployConstant(t, wallet, backend)

	hash, err := wallet.SendTransaction(context.Background(), web3.CallRequest{To: address, Data: []byte{0x01}})
	if err != nil {
		t.Fatalf("send transaction: %v", err)
	}
	receipt, err := backend.Client().TransactionReceipt(context.Background(), hash)
	if err != nil || receipt.Status != coretypes.ReceiptStatusSuccessful {
		t.Fatalf("unexpected receipt %+v (%v)", receipt, err)
	}
}

func TestWalletChainIDMismatch(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	backend := simulated.NewBackend(coretypes.GenesisAlloc{})
	t.Cleanup(func() { _ = backend.Close() })

	_, err = NewSimulated(context.Background(), backend, Config{
		Network:    web3.Network{ID: "base-sepolia", ChainID: 84532},
		PrivateKey: key,
	})
	if xerrors.CodeOf(err) != xerrors.CodeUnsupportedNetwork {
		t.Fatalf("expected unsupported network, got %v", err)
	}
}

func TestWalletPersistedAddressMismatchUsesSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	backend := simulated.NewBackend(coretypes.GenesisAlloc{})
	t.Cleanup(func() { _ = backend.Close() })

	wallet, err := NewSimulated(context.Background(), backend, Config{
		PrivateKey:       key,
		PersistedAddress: "0x00000000000000000000000000000000000000bb",
	})
	if err != nil {
		t.Fatalf("new simulated wallet: %v", err)
	}
	if wallet.Address() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("expected signer address, got %s", wallet.Address())
	}
}

func TestWalletClosed(t *testing.T) {
	wallet, _ := newSimulatedWallet(t)
	wallet.Close()
	_, err := wallet.SendTransaction(context.Background(), web3.CallRequest{Value: big.NewInt(1)})
	if xerrors.CodeOf(err) != xerrors.CodeWalletFailure {
		t.Fatalf("expected wallet failure after close, got %v", err)
	}
}

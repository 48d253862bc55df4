package erc20

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"walrus-agent/internal/action"
	"walrus-agent/internal/action/actiontest"
	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/web3"
)

const usdc = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"

func tokenWallet(t *testing.T) *actiontest.Wallet {
	t.Helper()
	w := actiontest.NewWallet()
	w.ReadFn = func(req web3.CallRequest) ([]byte, error) {
		if req.To != common.HexToAddress(usdc) {
			return nil, nil
		}
		method, err := erc20ABI.MethodById(req.Data[:4])
		if err != nil {
			return nil, err
		}
		switch method.Name {
		case "decimals":
			return method.Outputs.Pack(uint8(6))
		case "symbol":
			return method.Outputs.Pack("USDC")
		case "balanceOf":
			return method.Outputs.Pack(big.NewInt(12_500_000))
		}
		return nil, fmt.Errorf("unexpected method %s", method.Name)
	}
	return w
}

func find(t *testing.T, name string) action.Action {
	t.Helper()
	for _, a := range New().Actions() {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("action %s not found", name)
	return action.Action{}
}

func TestGetBalance(t *testing.T) {
	w := tokenWallet(t)
	out, err := find(t, "get_balance").Invoke(context.Background(), w,
		json.RawMessage(`{"contract_address":"`+usdc+`"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(out, "USDC") || !strings.Contains(out, "12.5") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestTransferEncodesCall(t *testing.T) {
	w := tokenWallet(t)
	dest := "0x00000000000000000000000000000000000000aa"
	out, err := find(t, "transfer").Invoke(context.Background(), w,
		json.RawMessage(`{"amount":"1.5","contract_address":"`+usdc+`","destination":"`+dest+`"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(out, "Transferred 1.5 USDC") {
		t.Fatalf("unexpected output: %s", out)
	}

	sent := w.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one transaction, got %d", len(sent))
	}
	method, err := erc20ABI.MethodById(sent[0].Data[:4])
	if err != nil || method.Name != "transfer" {
		t.Fatalf("unexpected method: %v %v", method, err)
	}
	values, err := method.Inputs.Unpack(sent[0].Data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if values[0].(common.Address) != common.HexToAddress(dest) {
		t.Fatalf("unexpected destination %v", values[0])
	}
	if values[1].(*big.Int).Int64() != 1_500_000 {
		t.Fatalf("unexpected amount %v", values[1])
	}
}

func TestApprove(t *testing.T) {
	w := tokenWallet(t)
	out, err := find(t, "approve").Invoke(context.Background(), w,
		json.RawMessage(`{"amount":"10","contract_address":"`+usdc+`","spender":"0x00000000000000000000000000000000000000bb"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(out, "Approved") || !strings.Contains(out, "10 USDC") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestNonTokenContract(t *testing.T) {
	w := tokenWallet(t)
	_, err := find(t, "get_balance").Invoke(context.Background(), w,
		json.RawMessage(`{"contract_address":"0x00000000000000000000000000000000000000cc"}`))
	if xerrors.CodeOf(err) != xerrors.CodeActionFailure {
		t.Fatalf("expected action failure, got %v", err)
	}
}

func TestTransferRejectsTooManyDecimals(t *testing.T) {
	w := tokenWallet(t)
	_, err := find(t, "transfer").Invoke(context.Background(), w,
		json.RawMessage(`{"amount":"0.0000001","contract_address":"`+usdc+`","destination":"0x00000000000000000000000000000000000000aa"}`))
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if len(w.Sent()) != 0 {
		t.Fatalf("no transaction should be sent")
	}
}

package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"walrus-agent/internal/action"
	"walrus-agent/internal/action/actiontest"
	xerrors "walrus-agent/internal/errors"
)

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

func TestWalletDetails(t *testing.T) {
	w := actiontest.NewWallet()
	out, err := find(t, "get_wallet_details").Invoke(context.Background(), w, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	for _, want := range []string{w.Addr.Hex(), "base-sepolia", "84532", "Latest Block: 0x10", "1 ETH"} {
		if !strings.Contains(out, want) {
			t.Fatalf("details missing %q:\n%s", want, out)
		}
	}
}

func TestNativeTransfer(t *testing.T) {
	w := actiontest.NewWallet()
	args := json.RawMessage(`{"to":"0x00000000000000000000000000000000000000aa","value":"0.001 eth"}`)
	out, err := find(t, "native_transfer").Invoke(context.Background(), w, args)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(out, "Transferred 0.001 ETH") {
		t.Fatalf("unexpected output: %s", out)
	}
	sent := w.Sent()
	if len(sent) != 1 || sent[0].Value.String() != "1000000000000000" {
		t.Fatalf("unexpected transactions: %+v", sent)
	}
}

func TestNativeTransferInvalidArguments(t *testing.T) {
	w := actiontest.NewWallet()
	transfer := find(t, "native_transfer")

	_, err := transfer.Invoke(context.Background(), w, json.RawMessage(`{"to":"bob","value":"1"}`))
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	_, err = transfer.Invoke(context.Background(), w, json.RawMessage(`{"to":"0x00000000000000000000000000000000000000aa","value":"lots"}`))
	if xerrors.CodeOf(err) != xerrors.CodeActionFailure {
		t.Fatalf("expected action failure, got %v", err)
	}
	if len(w.Sent()) != 0 {
		t.Fatalf("no transaction should be sent")
	}
}

func TestNativeTransferWalletError(t *testing.T) {
	w := actiontest.NewWallet()
	w.SendErr = errors.New("insufficient funds")
	_, err := find(t, "native_transfer").Invoke(context.Background(), w,
		json.RawMessage(`{"to":"0x00000000000000000000000000000000000000aa","value":"5"}`))
	if err == nil || !strings.Contains(err.Error(), "insufficient funds") {
		t.Fatalf("expected wallet error, got %v", err)
	}
}

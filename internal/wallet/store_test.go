package wallet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	xerrors "walrus-agent/internal/errors"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestLoadWellFormedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet_data.txt")
	content := `{"private_key":"` + testKey + `","smart_wallet_address":"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	creds, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.PrivateKey != testKey {
		t.Fatalf("unexpected key: %s", creds.PrivateKey)
	}
	if creds.SmartWalletAddress != "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23" {
		t.Fatalf("unexpected address: %s", creds.SmartWalletAddress)
	}
}

func TestLoadMissingFile(t *testing.T) {
	creds, err := NewStore(filepath.Join(t.TempDir(), "absent.txt")).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds != (Credentials{}) {
		t.Fatalf("expected empty credentials, got %+v", creds)
	}
}

func TestMalformedFileGeneratesNewKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet_data.txt")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	store := NewStore(path)

	stored, err := store.Load()
	if err != nil {
		t.Fatalf("malformed file must not fail: %v", err)
	}
	creds, generated, err := store.Resolve(stored, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !generated {
		t.Fatalf("expected a generated key")
	}
	if _, err := ParsePrivateKey(creds.PrivateKey); err != nil {
		t.Fatalf("generated key does not parse: %v", err)
	}
	if len(creds.PrivateKey) != 66 {
		t.Fatalf("expected 0x + 64 hex chars, got %d", len(creds.PrivateKey))
	}
}

func TestResolvePrecedence(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "wallet_data.txt"))
	envKey := "0x8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63"

	creds, generated, err := store.Resolve(Credentials{PrivateKey: testKey}, envKey)
	if err != nil || generated {
		t.Fatalf("unexpected result: generated=%v err=%v", generated, err)
	}
	if creds.PrivateKey != testKey {
		t.Fatalf("stored key should win, got %s", creds.PrivateKey)
	}

	creds, generated, err = store.Resolve(Credentials{}, envKey)
	if err != nil || generated {
		t.Fatalf("unexpected result: generated=%v err=%v", generated, err)
	}
	if creds.PrivateKey != envKey {
		t.Fatalf("env key should be used, got %s", creds.PrivateKey)
	}

	creds, _, err = store.Resolve(Credentials{PrivateKey: "garbage"}, envKey)
	if err != nil {
		t.Fatalf("invalid stored key should fall back: %v", err)
	}
	if creds.PrivateKey != envKey {
		t.Fatalf("expected fallback to env key, got %s", creds.PrivateKey)
	}
}

func TestResolveRejectsInvalidEnvKey(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "wallet_data.txt"))
	_, _, err := store.Resolve(Credentials{}, "0x1234")
	if err == nil {
		t.Fatalf("expected error for invalid env key")
	}
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
}

func TestSaveAlwaysPersistsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet_data.txt")
	store := NewStore(path)

	if err := store.Save(Credentials{}); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("rejected save must not create the file")
	}

	key, err := ParsePrivateKey(testKey)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Credentials{PrivateKey: testKey, SmartWalletAddress: AddressOf(key).Hex()}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("saved file is not json: %v", err)
	}
	if decoded["private_key"] != testKey {
		t.Fatalf("private key missing from file: %s", raw)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("unexpected permissions: %o", perm)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, want)
	}
}

func TestAddressOfKnownKey(t *testing.T) {
	key, err := ParsePrivateKey(testKey)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := AddressOf(key).Hex(); got != "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23" {
		t.Fatalf("unexpected address: %s", got)
	}
}

package state

import (
	"math/big"
	"testing"

	"loantender/storage"
)

func newTestManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func TestRegisterAndLookupAsset(t *testing.T) {
	m := newTestManager()
	if err := m.RegisterAsset("clt", "Collateral Token", 8, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("register: %v", err)
	}

	if !m.AssetExists("CLT") {
		t.Fatalf("asset lookup must be case-insensitive")
	}
	meta, err := m.Asset("CLT")
	if err != nil {
		t.Fatalf("asset: %v", err)
	}
	if meta.Symbol != "CLT" || meta.Decimals != 8 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.MinUnit.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("min unit not stored: %s", meta.MinUnit)
	}

	min, ok, err := m.MinUnit("CLT")
	if err != nil || !ok {
		t.Fatalf("min unit lookup: ok=%v err=%v", ok, err)
	}
	if min.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("unexpected min unit %s", min)
	}
	if _, ok, _ := m.MinUnit("DOGE"); ok {
		t.Fatalf("unknown asset must report unsupported")
	}

	assets, err := m.Assets()
	if err != nil || len(assets) != 1 || assets[0] != "CLT" {
		t.Fatalf("unexpected asset list: %v %v", assets, err)
	}
}

func TestRegisterAssetRejectsDuplicates(t *testing.T) {
	m := newTestManager()
	if err := m.RegisterAsset("CLT", "Collateral Token", 8, big.NewInt(1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.RegisterAsset("clt", "Collateral Token", 8, big.NewInt(1)); err == nil {
		t.Fatalf("duplicate registration must fail")
	}
}

func TestVaultAddressDeterministic(t *testing.T) {
	m := newTestManager()
	if err := m.RegisterAsset("CLT", "Collateral Token", 8, big.NewInt(1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.RegisterAsset("LUSD", "Loan Dollar", 6, big.NewInt(1)); err != nil {
		t.Fatalf("register: %v", err)
	}

	first, err := m.VaultAddress("CLT")
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	second, err := m.VaultAddress("CLT")
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if first != second {
		t.Fatalf("vault address must be stable")
	}
	other, err := m.VaultAddress("LUSD")
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if first == other {
		t.Fatalf("vault addresses must differ per asset")
	}
	if first == ([20]byte{}) {
		t.Fatalf("vault address must not be zero")
	}
}

func TestBalances(t *testing.T) {
	m := newTestManager()
	if err := m.RegisterAsset("LUSD", "Loan Dollar", 6, big.NewInt(1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	var addr [20]byte
	addr[0] = 0x01

	balance, err := m.Balance(addr, "LUSD")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("fresh account must have zero balance, got %s", balance)
	}

	if err := m.SetBalance(addr, "LUSD", big.NewInt(42)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	balance, err = m.Balance(addr, "LUSD")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("expected 42, got %s", balance)
	}

	if err := m.SetBalance(addr, "LUSD", big.NewInt(-1)); err == nil {
		t.Fatalf("negative balances must be rejected")
	}
}

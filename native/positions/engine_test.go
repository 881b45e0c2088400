package positions

import (
	"bytes"
	"errors"
	"math/big"
	"testing"
)

type mockState struct {
	seq       uint64
	positions map[uint64]*Position
}

func newMockState() *mockState {
	return &mockState{positions: make(map[uint64]*Position)}
}

func (m *mockState) PositionPut(p *Position) error {
	m.positions[p.ID] = p.Clone()
	return nil
}

func (m *mockState) PositionGet(id uint64) (*Position, bool, error) {
	position, ok := m.positions[id]
	if !ok {
		return nil, false, nil
	}
	return position.Clone(), true, nil
}

func (m *mockState) NextPositionID() (uint64, error) {
	m.seq++
	return m.seq, nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestEngine() *Engine {
	engine := NewEngine()
	engine.SetState(newMockState())
	return engine
}

func TestMintAndGet(t *testing.T) {
	engine := newTestEngine()
	owner := newTestAddress(0x01)

	id, err := engine.Mint(owner, 7, SideBorrower, "CLT", big.NewInt(2_000_000), "LUSD", big.NewInt(160_000_000), 1008)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first position id 1, got %d", id)
	}

	position, ok, err := engine.Get(id)
	if err != nil || !ok {
		t.Fatalf("position not stored: ok=%v err=%v", ok, err)
	}
	if position.LoanID != 7 || position.Side != SideBorrower || position.Burned {
		t.Fatalf("unexpected position: %+v", position)
	}
	if position.Repayment.Cmp(big.NewInt(160_000_000)) != 0 {
		t.Fatalf("terms not carried: %s", position.Repayment)
	}

	holder, ok, err := engine.Owner(id)
	if err != nil || !ok || holder != owner {
		t.Fatalf("owner lookup failed: %v %v", ok, err)
	}
}

func TestMintValidation(t *testing.T) {
	engine := newTestEngine()
	owner := newTestAddress(0x01)

	if _, err := engine.Mint(owner, 1, "observer", "CLT", big.NewInt(1), "LUSD", big.NewInt(1), 100); !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("expected ErrInvalidSide, got %v", err)
	}
	if _, err := engine.Mint(owner, 1, SideLender, "CLT", big.NewInt(1), "LUSD", nil, 100); !errors.Is(err, ErrInvalidRepayment) {
		t.Fatalf("expected ErrInvalidRepayment, got %v", err)
	}
	if _, err := engine.Mint(owner, 1, SideLender, "CLT", big.NewInt(1), "LUSD", big.NewInt(0), 100); !errors.Is(err, ErrInvalidRepayment) {
		t.Fatalf("expected ErrInvalidRepayment for zero, got %v", err)
	}
}

func TestBurn(t *testing.T) {
	engine := newTestEngine()
	owner := newTestAddress(0x01)
	id, err := engine.Mint(owner, 1, SideLender, "CLT", big.NewInt(1), "LUSD", big.NewInt(100), 100)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := engine.Burn(id); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if err := engine.Burn(id); !errors.Is(err, ErrBurned) {
		t.Fatalf("double burn must fail, got %v", err)
	}
	if err := engine.Burn(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Burned positions stay queryable but report no owner.
	if _, ok, _ := engine.Owner(id); ok {
		t.Fatalf("burned position must report as absent")
	}
	position, ok, _ := engine.Get(id)
	if !ok || !position.Burned {
		t.Fatalf("burned position record must survive: %+v", position)
	}
}

func TestTransfer(t *testing.T) {
	engine := newTestEngine()
	owner := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	stranger := newTestAddress(0x03)
	id, err := engine.Mint(owner, 1, SideLender, "CLT", big.NewInt(1), "LUSD", big.NewInt(100), 100)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := engine.Transfer(stranger, buyer, id); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("only owner may transfer, got %v", err)
	}
	if err := engine.Transfer(owner, buyer, id); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	holder, ok, _ := engine.Owner(id)
	if !ok || holder != buyer {
		t.Fatalf("expected buyer as holder, got %v", holder)
	}

	if err := engine.Burn(id); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if err := engine.Transfer(buyer, owner, id); !errors.Is(err, ErrBurned) {
		t.Fatalf("burned positions must not trade, got %v", err)
	}
}

func TestIDsNeverReused(t *testing.T) {
	engine := newTestEngine()
	owner := newTestAddress(0x01)
	first, _ := engine.Mint(owner, 1, SideLender, "CLT", big.NewInt(1), "LUSD", big.NewInt(100), 100)
	if err := engine.Burn(first); err != nil {
		t.Fatalf("burn: %v", err)
	}
	second, _ := engine.Mint(owner, 2, SideLender, "CLT", big.NewInt(1), "LUSD", big.NewInt(100), 100)
	if second <= first {
		t.Fatalf("ids must be strictly increasing, got %d then %d", first, second)
	}
}

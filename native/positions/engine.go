package positions

import (
	"errors"
	"math/big"
)

var (
	ErrNilState         = errors.New("position registry: state not configured")
	ErrNotFound         = errors.New("position registry: position not found")
	ErrBurned           = errors.New("position registry: position already burned")
	ErrInvalidSide      = errors.New("position registry: invalid position side")
	ErrNotOwner         = errors.New("position registry: caller does not own position")
	ErrInvalidRepayment = errors.New("position registry: repayment must be positive")
)

// Sides a position can represent. The borrower side is the debt obligation,
// the lender side the claim on repayment (or collateral on default).
const (
	SideBorrower = "borrower"
	SideLender   = "lender"
)

// Position is a non-fungible claim on a specific loan's terms. The terms are
// immutable once minted; only ownership and the burned flag change.
type Position struct {
	ID               uint64
	Owner            [20]byte
	LoanID           uint64
	Side             string
	CollateralAsset  string
	CollateralAmount *big.Int
	BorrowAsset      string
	Repayment        *big.Int
	MaturityBlock    uint64
	Burned           bool
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	if p.CollateralAmount != nil {
		clone.CollateralAmount = new(big.Int).Set(p.CollateralAmount)
	} else {
		clone.CollateralAmount = big.NewInt(0)
	}
	if p.Repayment != nil {
		clone.Repayment = new(big.Int).Set(p.Repayment)
	} else {
		clone.Repayment = big.NewInt(0)
	}
	return &clone
}

type engineState interface {
	PositionPut(*Position) error
	PositionGet(id uint64) (*Position, bool, error)
	NextPositionID() (uint64, error)
}

// Engine issues and retires loan positions. IDs are globally unique and
// never reused; burned positions stay in state with the Burned flag set so
// history remains queryable.
type Engine struct {
	state engineState
}

// NewEngine constructs a position registry. SetState must be called before
// use.
func NewEngine() *Engine {
	return &Engine{}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// Mint issues a fresh position carrying the provided loan terms and returns
// its id.
func (e *Engine) Mint(owner [20]byte, loanID uint64, side string, collateralAsset string, collateralAmount *big.Int, borrowAsset string, repayment *big.Int, maturityBlock uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if side != SideBorrower && side != SideLender {
		return 0, ErrInvalidSide
	}
	if repayment == nil || repayment.Sign() <= 0 {
		return 0, ErrInvalidRepayment
	}
	id, err := e.state.NextPositionID()
	if err != nil {
		return 0, err
	}
	position := &Position{
		ID:               id,
		Owner:            owner,
		LoanID:           loanID,
		Side:             side,
		CollateralAsset:  collateralAsset,
		CollateralAmount: new(big.Int).Set(collateralAmount),
		BorrowAsset:      borrowAsset,
		Repayment:        new(big.Int).Set(repayment),
		MaturityBlock:    maturityBlock,
	}
	if err := e.state.PositionPut(position); err != nil {
		return 0, err
	}
	return id, nil
}

// Burn retires a position. Burning twice is an error; the engine relies on
// this to catch double settlement.
func (e *Engine) Burn(id uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	position, ok, err := e.state.PositionGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if position.Burned {
		return ErrBurned
	}
	position.Burned = true
	return e.state.PositionPut(position)
}

// Owner reports the current holder of a live position. Burned positions
// report as absent.
func (e *Engine) Owner(id uint64) ([20]byte, bool, error) {
	var zero [20]byte
	if e == nil || e.state == nil {
		return zero, false, ErrNilState
	}
	position, ok, err := e.state.PositionGet(id)
	if err != nil || !ok {
		return zero, false, err
	}
	if position.Burned {
		return zero, false, nil
	}
	return position.Owner, true, nil
}

// Transfer moves a live position to a new owner. Positions are claims, so
// they trade freely; the loan record itself never changes hands.
func (e *Engine) Transfer(caller, newOwner [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	position, ok, err := e.state.PositionGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if position.Burned {
		return ErrBurned
	}
	if position.Owner != caller {
		return ErrNotOwner
	}
	position.Owner = newOwner
	return e.state.PositionPut(position)
}

// Get returns the stored position, if any.
func (e *Engine) Get(id uint64) (*Position, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	return e.state.PositionGet(id)
}

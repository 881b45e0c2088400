package state

import (
	"fmt"
	"math/big"

	"loantender/native/positions"
)

var (
	positionPrefix = []byte("positions/position/")
	positionSeqKey = []byte("positions/position-seq")
)

type storedPosition struct {
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

// NextPositionID allocates the next globally unique position id.
func (m *Manager) NextPositionID() (uint64, error) {
	return m.nextSeq(positionSeqKey)
}

// PositionPut stores the position as a whole-record replacement.
func (m *Manager) PositionPut(p *positions.Position) error {
	if p == nil {
		return fmt.Errorf("position ledger: nil position")
	}
	clone := p.Clone()
	if clone.ID == 0 {
		return fmt.Errorf("position ledger: id must be allocated before insert")
	}
	stored := storedPosition{
		ID:               clone.ID,
		Owner:            clone.Owner,
		LoanID:           clone.LoanID,
		Side:             clone.Side,
		CollateralAsset:  clone.CollateralAsset,
		CollateralAmount: clone.CollateralAmount,
		BorrowAsset:      clone.BorrowAsset,
		Repayment:        clone.Repayment,
		MaturityBlock:    clone.MaturityBlock,
		Burned:           clone.Burned,
	}
	return m.KVPut(recordKey(positionPrefix, stored.ID), &stored)
}

// PositionGet retrieves a position by id.
func (m *Manager) PositionGet(id uint64) (*positions.Position, bool, error) {
	var stored storedPosition
	ok, err := m.KVGet(recordKey(positionPrefix, id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	position := &positions.Position{
		ID:               stored.ID,
		Owner:            stored.Owner,
		LoanID:           stored.LoanID,
		Side:             stored.Side,
		CollateralAsset:  stored.CollateralAsset,
		CollateralAmount: stored.CollateralAmount,
		BorrowAsset:      stored.BorrowAsset,
		Repayment:        stored.Repayment,
		MaturityBlock:    stored.MaturityBlock,
		Burned:           stored.Burned,
	}
	return position.Clone(), true, nil
}

package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"loantender/native/auction"
)

var (
	loanPrefix       = []byte("auction/loan/")
	bidPrefix        = []byte("auction/bid/")
	winningBidPrefix = []byte("auction/winning/")
	loanSeqKey       = []byte("auction/loan-seq")
	bidSeqKey        = []byte("auction/bid-seq")
)

// Stored mirrors keep the RLP wire layout decoupled from the engine types so
// either can evolve independently.
type storedLoan struct {
	ID                 uint64
	Borrower           [20]byte
	CollateralAsset    string
	CollateralAmount   *big.Int
	BorrowAsset        string
	BorrowAmount       *big.Int
	MaxRepayment       *big.Int
	WinningRepayment   *big.Int
	DurationBlocks     uint64
	MaturityBlock      uint64
	AuctionEndBlock    uint64
	Status             uint8
	BorrowerPositionID uint64
	LenderPositionID   uint64
	ProtocolFeePaid    *big.Int
}

type storedBid struct {
	ID              uint64
	LoanID          uint64
	Lender          [20]byte
	RepaymentAmount *big.Int
	Status          uint8
}

type storedWinningBid struct {
	BidID           uint64
	Lender          [20]byte
	RepaymentAmount *big.Int
}

func recordKey(prefix []byte, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

func (m *Manager) nextSeq(key []byte) (uint64, error) {
	var current uint64
	if _, err := m.KVGet(key, &current); err != nil {
		return 0, err
	}
	next := current + 1
	if err := m.KVPut(key, next); err != nil {
		return 0, err
	}
	return next, nil
}

// MinUnit reports the minimum transferable unit for an asset and whether the
// asset belongs to the supported set.
func (m *Manager) MinUnit(asset string) (*big.Int, bool, error) {
	meta, err := m.Asset(asset)
	if err != nil {
		return nil, false, err
	}
	if meta == nil {
		return nil, false, nil
	}
	if meta.MinUnit == nil {
		return big.NewInt(0), true, nil
	}
	return new(big.Int).Set(meta.MinUnit), true, nil
}

// NextLoanID allocates the next dense, strictly increasing loan id. Insert
// via LoanPut is the only consumer, so ids are never reused.
func (m *Manager) NextLoanID() (uint64, error) {
	return m.nextSeq(loanSeqKey)
}

// LoanPut stores the loan as a whole-record replacement.
func (m *Manager) LoanPut(loan *auction.Loan) error {
	sanitized, err := auction.SanitizeLoan(loan)
	if err != nil {
		return err
	}
	if sanitized.ID == 0 {
		return fmt.Errorf("loan ledger: id must be allocated before insert")
	}
	stored := storedLoan{
		ID:                 sanitized.ID,
		Borrower:           sanitized.Borrower,
		CollateralAsset:    sanitized.CollateralAsset,
		CollateralAmount:   sanitized.CollateralAmount,
		BorrowAsset:        sanitized.BorrowAsset,
		BorrowAmount:       sanitized.BorrowAmount,
		MaxRepayment:       sanitized.MaxRepayment,
		WinningRepayment:   sanitized.WinningRepayment,
		DurationBlocks:     sanitized.DurationBlocks,
		MaturityBlock:      sanitized.MaturityBlock,
		AuctionEndBlock:    sanitized.AuctionEndBlock,
		Status:             uint8(sanitized.Status),
		BorrowerPositionID: sanitized.BorrowerPositionID,
		LenderPositionID:   sanitized.LenderPositionID,
		ProtocolFeePaid:    sanitized.ProtocolFeePaid,
	}
	return m.KVPut(recordKey(loanPrefix, stored.ID), &stored)
}

// LoanGet retrieves a loan by id.
func (m *Manager) LoanGet(id uint64) (*auction.Loan, bool, error) {
	var stored storedLoan
	ok, err := m.KVGet(recordKey(loanPrefix, id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	loan := &auction.Loan{
		ID:                 stored.ID,
		Borrower:           stored.Borrower,
		CollateralAsset:    stored.CollateralAsset,
		CollateralAmount:   stored.CollateralAmount,
		BorrowAsset:        stored.BorrowAsset,
		BorrowAmount:       stored.BorrowAmount,
		MaxRepayment:       stored.MaxRepayment,
		WinningRepayment:   stored.WinningRepayment,
		DurationBlocks:     stored.DurationBlocks,
		MaturityBlock:      stored.MaturityBlock,
		AuctionEndBlock:    stored.AuctionEndBlock,
		Status:             auction.LoanStatus(stored.Status),
		BorrowerPositionID: stored.BorrowerPositionID,
		LenderPositionID:   stored.LenderPositionID,
		ProtocolFeePaid:    stored.ProtocolFeePaid,
	}
	return loan.Clone(), true, nil
}

// LoanCount returns the number of loans ever created. IDs are dense, so the
// sequence value is the count.
func (m *Manager) LoanCount() (uint64, error) {
	var current uint64
	if _, err := m.KVGet(loanSeqKey, &current); err != nil {
		return 0, err
	}
	return current, nil
}

// NextBidID allocates the next dense, strictly increasing bid id.
func (m *Manager) NextBidID() (uint64, error) {
	return m.nextSeq(bidSeqKey)
}

// BidPut stores the bid as a whole-record replacement.
func (m *Manager) BidPut(bid *auction.Bid) error {
	sanitized, err := auction.SanitizeBid(bid)
	if err != nil {
		return err
	}
	if sanitized.ID == 0 {
		return fmt.Errorf("bid ledger: id must be allocated before insert")
	}
	stored := storedBid{
		ID:              sanitized.ID,
		LoanID:          sanitized.LoanID,
		Lender:          sanitized.Lender,
		RepaymentAmount: sanitized.RepaymentAmount,
		Status:          uint8(sanitized.Status),
	}
	return m.KVPut(recordKey(bidPrefix, stored.ID), &stored)
}

// BidGet retrieves a bid by id.
func (m *Manager) BidGet(id uint64) (*auction.Bid, bool, error) {
	var stored storedBid
	ok, err := m.KVGet(recordKey(bidPrefix, id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	bid := &auction.Bid{
		ID:              stored.ID,
		LoanID:          stored.LoanID,
		Lender:          stored.Lender,
		RepaymentAmount: stored.RepaymentAmount,
		Status:          auction.BidStatus(stored.Status),
	}
	return bid.Clone(), true, nil
}

// WinningBidPut replaces the winning-bid index entry for a loan.
func (m *Manager) WinningBidPut(loanID uint64, w *auction.WinningBid) error {
	if w == nil {
		return fmt.Errorf("bid ledger: nil winning bid")
	}
	clone := w.Clone()
	stored := storedWinningBid{
		BidID:           clone.BidID,
		Lender:          clone.Lender,
		RepaymentAmount: clone.RepaymentAmount,
	}
	return m.KVPut(recordKey(winningBidPrefix, loanID), &stored)
}

// WinningBidGet retrieves the winning-bid index entry for a loan.
func (m *Manager) WinningBidGet(loanID uint64) (*auction.WinningBid, bool, error) {
	var stored storedWinningBid
	ok, err := m.KVGet(recordKey(winningBidPrefix, loanID), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	w := &auction.WinningBid{
		BidID:           stored.BidID,
		Lender:          stored.Lender,
		RepaymentAmount: stored.RepaymentAmount,
	}
	return w.Clone(), true, nil
}

package auction

import (
	"fmt"
	"math/big"
	"strings"
)

// LoanStatus tracks a loan through its lifecycle. A loan is created in
// LoanStatusAuction and only ever moves forward; records are never deleted.
type LoanStatus uint8

const (
	LoanStatusAuction LoanStatus = iota
	LoanStatusFunded
	LoanStatusRepaid
	LoanStatusDefaulted
	LoanStatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusAuction, LoanStatusFunded, LoanStatusRepaid, LoanStatusDefaulted, LoanStatusCancelled:
		return true
	default:
		return false
	}
}

func (s LoanStatus) String() string {
	switch s {
	case LoanStatusAuction:
		return "auction"
	case LoanStatusFunded:
		return "funded"
	case LoanStatusRepaid:
		return "repaid"
	case LoanStatusDefaulted:
		return "defaulted"
	case LoanStatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// BidStatus marks whether a bid currently funds its loan's auction.
type BidStatus uint8

const (
	BidStatusWinning BidStatus = iota
	BidStatusDisplaced
)

// Valid reports whether the status value is within the supported range.
func (s BidStatus) Valid() bool {
	return s == BidStatusWinning || s == BidStatusDisplaced
}

func (s BidStatus) String() string {
	switch s {
	case BidStatusWinning:
		return "winning"
	case BidStatusDisplaced:
		return "displaced"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Loan is the authoritative record of a collateralized loan auction. IDs are
// dense and strictly increasing; the ledger allocates them on insert.
type Loan struct {
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
	Status             LoanStatus
	BorrowerPositionID uint64
	LenderPositionID   uint64
	ProtocolFeePaid    *big.Int
}

// Clone returns a deep copy of the loan so callers can mutate the copy
// without affecting the stored instance.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	clone.CollateralAmount = cloneBigInt(l.CollateralAmount)
	clone.BorrowAmount = cloneBigInt(l.BorrowAmount)
	clone.MaxRepayment = cloneBigInt(l.MaxRepayment)
	clone.WinningRepayment = cloneBigInt(l.WinningRepayment)
	clone.ProtocolFeePaid = cloneBigInt(l.ProtocolFeePaid)
	return &clone
}

// Bid is a single lender offer on a loan auction. Bids transition from
// winning to displaced the instant a strictly better bid lands and are never
// deleted.
type Bid struct {
	ID              uint64
	LoanID          uint64
	Lender          [20]byte
	RepaymentAmount *big.Int
	Status          BidStatus
}

// Clone returns a deep copy of the bid.
func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	clone := *b
	clone.RepaymentAmount = cloneBigInt(b.RepaymentAmount)
	return &clone
}

// WinningBid is the per-loan index entry pointing at the currently best bid.
// It is the authoritative pointer used for refund-on-displacement and for
// settlement.
type WinningBid struct {
	BidID           uint64
	Lender          [20]byte
	RepaymentAmount *big.Int
}

// Clone returns a deep copy of the index entry.
func (w *WinningBid) Clone() *WinningBid {
	if w == nil {
		return nil
	}
	clone := *w
	clone.RepaymentAmount = cloneBigInt(w.RepaymentAmount)
	return &clone
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// NormalizeAsset canonicalizes an asset symbol. Membership in the supported
// set is checked against state, not here.
func NormalizeAsset(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// SanitizeLoan validates and normalises the supplied loan, returning a cloned
// instance with canonical asset casing and non-nil amount fields. The
// original value is not mutated.
func SanitizeLoan(l *Loan) (*Loan, error) {
	if l == nil {
		return nil, fmt.Errorf("nil loan")
	}
	clone := l.Clone()
	clone.CollateralAsset = NormalizeAsset(clone.CollateralAsset)
	clone.BorrowAsset = NormalizeAsset(clone.BorrowAsset)
	if clone.CollateralAsset == "" || clone.BorrowAsset == "" {
		return nil, fmt.Errorf("loan asset symbols must not be empty")
	}
	if clone.CollateralAmount.Sign() < 0 || clone.BorrowAmount.Sign() < 0 {
		return nil, fmt.Errorf("loan amounts must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid loan status: %d", clone.Status)
	}
	return clone, nil
}

// SanitizeBid validates and normalises the supplied bid.
func SanitizeBid(b *Bid) (*Bid, error) {
	if b == nil {
		return nil, fmt.Errorf("nil bid")
	}
	clone := b.Clone()
	if clone.RepaymentAmount.Sign() < 0 {
		return nil, fmt.Errorf("bid repayment must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid bid status: %d", clone.Status)
	}
	return clone, nil
}

package auction

import (
	"encoding/hex"
	"strconv"

	"loantender/core/types"
)

const (
	EventTypeLoanCreated   = "loan.created"
	EventTypeBidPlaced     = "loan.bid_placed"
	EventTypeLoanSettled   = "loan.settled"
	EventTypeLoanRepaid    = "loan.repaid"
	EventTypeLoanDefaulted = "loan.defaulted"
	EventTypeLoanCancelled = "loan.cancelled"
)

// NewLoanCreatedEvent returns the canonical payload for a newly created loan
// auction.
func NewLoanCreatedEvent(l *Loan) *types.Event {
	return newLoanEvent(EventTypeLoanCreated, l, nil)
}

// NewBidPlacedEvent returns the canonical payload for an admitted bid.
func NewBidPlacedEvent(b *Bid) *types.Event {
	attrs := make(map[string]string)
	if b != nil {
		sanitized, err := SanitizeBid(b)
		if err == nil {
			attrs["bidId"] = strconv.FormatUint(sanitized.ID, 10)
			attrs["loanId"] = strconv.FormatUint(sanitized.LoanID, 10)
			attrs["lender"] = hex.EncodeToString(sanitized.Lender[:])
			attrs["repaymentAmount"] = sanitized.RepaymentAmount.String()
		}
	}
	return &types.Event{Type: EventTypeBidPlaced, Attributes: attrs}
}

// NewLoanSettledEvent returns the payload emitted when a winning bid funds
// the loan.
func NewLoanSettledEvent(l *Loan, w *WinningBid) *types.Event {
	extra := map[string]string{}
	if w != nil {
		extra["bidId"] = strconv.FormatUint(w.BidID, 10)
	}
	return newLoanEvent(EventTypeLoanSettled, l, extra)
}

// NewLoanRepaidEvent returns the payload emitted when the borrower repays.
func NewLoanRepaidEvent(l *Loan) *types.Event {
	return newLoanEvent(EventTypeLoanRepaid, l, nil)
}

// NewLoanDefaultedEvent returns the payload emitted when the lender claims
// the collateral of a matured, unpaid loan.
func NewLoanDefaultedEvent(l *Loan) *types.Event {
	return newLoanEvent(EventTypeLoanDefaulted, l, nil)
}

// NewLoanCancelledEvent returns the payload emitted when an expired auction
// with no bids is cleaned up.
func NewLoanCancelledEvent(l *Loan) *types.Event {
	return newLoanEvent(EventTypeLoanCancelled, l, nil)
}

func newLoanEvent(eventType string, l *Loan, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeLoan(l)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["loanId"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["borrower"] = hex.EncodeToString(sanitized.Borrower[:])
	attrs["collateralAsset"] = sanitized.CollateralAsset
	attrs["collateralAmount"] = sanitized.CollateralAmount.String()
	attrs["borrowAsset"] = sanitized.BorrowAsset
	attrs["borrowAmount"] = sanitized.BorrowAmount.String()
	attrs["status"] = sanitized.Status.String()
	if sanitized.WinningRepayment.Sign() > 0 {
		attrs["winningRepayment"] = sanitized.WinningRepayment.String()
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

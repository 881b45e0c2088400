package auction

import "errors"

// Validation and state errors surfaced by the engine. Each rule violation
// maps to exactly one value so automated callers can branch on the rule that
// rejected them.
var (
	ErrNilState     = errors.New("auction engine: state not configured")
	ErrNilCustody   = errors.New("auction engine: custody client not configured")
	ErrNilPositions = errors.New("auction engine: position registry not configured")

	ErrInvalidAmount    = errors.New("auction engine: amount must be positive")
	ErrUnsupportedAsset = errors.New("auction engine: asset not in supported set")
	ErrSameAsset        = errors.New("auction engine: collateral and borrow asset must differ")
	ErrNoInterestRoom   = errors.New("auction engine: max repayment must exceed borrow amount")
	ErrDurationBounds   = errors.New("auction engine: loan duration out of bounds")
	ErrAuctionTooShort  = errors.New("auction engine: auction duration below minimum")
	ErrBelowMinUnit     = errors.New("auction engine: amount below asset minimum unit")

	ErrLoanNotFound        = errors.New("auction engine: loan not found")
	ErrInvalidLoanStatus   = errors.New("auction engine: loan not in required status")
	ErrAuctionEnded        = errors.New("auction engine: auction window has ended")
	ErrAuctionOpen         = errors.New("auction engine: auction window still open")
	ErrExceedsMaxRepayment = errors.New("auction engine: bid exceeds borrower ceiling")
	ErrBidHasNoInterest    = errors.New("auction engine: bid carries no interest")
	ErrNotBetterBid        = errors.New("auction engine: bid not strictly better than current winner")
	ErrNoWinningBid        = errors.New("auction engine: no winning bid recorded")
	ErrHasWinningBid       = errors.New("auction engine: winning bid present")
	ErrNotBorrower         = errors.New("auction engine: caller is not the borrower")
	ErrNotLender           = errors.New("auction engine: caller does not hold the lender position")
	ErrNotMatured          = errors.New("auction engine: loan has not reached maturity")
)

package auction

import (
	"math/big"

	"loantender/core/events"
	"loantender/core/types"
	nativecommon "loantender/native/common"
)

const moduleName = "auction"

// engineState is the persistence surface the engine requires. It is owned by
// the ledger layer; the engine never touches raw keys.
type engineState interface {
	MinUnit(asset string) (*big.Int, bool, error)

	LoanPut(*Loan) error
	LoanGet(id uint64) (*Loan, bool, error)
	LoanCount() (uint64, error)
	NextLoanID() (uint64, error)

	BidPut(*Bid) error
	BidGet(id uint64) (*Bid, bool, error)
	NextBidID() (uint64, error)

	WinningBidPut(loanID uint64, w *WinningBid) error
	WinningBidGet(loanID uint64) (*WinningBid, bool, error)
}

// CustodyClient moves asset amounts between accounts and the protocol vault.
// Every call is part of the surrounding atomic operation: a failure aborts
// the whole entry point and no custody movement persists.
type CustodyClient interface {
	Transfer(asset string, amount *big.Int, from, to [20]byte) error
	EscrowLock(asset string, amount *big.Int, from [20]byte) error
	EscrowRelease(asset string, amount *big.Int, to [20]byte) error
}

// PositionRegistry mints and burns the tokens representing a loan's debtor
// and creditor claims.
type PositionRegistry interface {
	Mint(owner [20]byte, loanID uint64, side string, collateralAsset string, collateralAmount *big.Int, borrowAsset string, repayment *big.Int, maturityBlock uint64) (uint64, error)
	Burn(positionID uint64) error
	Owner(positionID uint64) ([20]byte, bool, error)
}

// Position sides understood by the registry.
const (
	PositionSideBorrower = "borrower"
	PositionSideLender   = "lender"
)

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

// Engine orchestrates loan auction creation, bid admission, and the
// settlement lifecycle. It owns no durable state; both ledgers and the
// custody balances live behind the injected interfaces, so the node can run
// every entry point inside a discardable state transaction.
type Engine struct {
	state            engineState
	custody          CustodyClient
	positions        PositionRegistry
	emitter          events.Emitter
	params           Params
	chainHeight      uint64
	settlementHeight uint64
	pauses           nativecommon.PauseView
}

// NewEngine constructs an auction engine with the provided parameters and a
// no-op event emitter.
func NewEngine(params Params) *Engine {
	return &Engine{
		params:  params,
		emitter: events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCustody wires the asset custody client.
func (e *Engine) SetCustody(custody CustodyClient) { e.custody = custody }

// SetPositions wires the position registry.
func (e *Engine) SetPositions(registry PositionRegistry) { e.positions = registry }

// SetPauses installs the module circuit breaker view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetChainHeight records the chain-tip height used for auction windows.
func (e *Engine) SetChainHeight(height uint64) {
	if e == nil {
		return
	}
	e.chainHeight = height
}

// SetSettlementHeight records the settlement-anchor height used for loan
// maturity. On a single-clock deployment this equals the chain height.
func (e *Engine) SetSettlementHeight(height uint64) {
	if e == nil {
		return
	}
	e.settlementHeight = height
}

// Params returns the parameters the engine enforces.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(auctionEvent{evt: event})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.custody == nil {
		return ErrNilCustody
	}
	if e.positions == nil {
		return ErrNilPositions
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

// CreateLoanAuction validates the requested terms and, once every check
// passes, charges the protocol fee, escrows the collateral, mints the
// borrower position and inserts the loan record. Validation performs no side
// effects; the first failing rule short-circuits.
func (e *Engine) CreateLoanAuction(borrower [20]byte, collateralAsset string, collateralAmount *big.Int, borrowAsset string, borrowAmount, maxRepayment *big.Int, durationBlocks, auctionDurationBlocks uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if collateralAmount == nil || collateralAmount.Sign() <= 0 ||
		borrowAmount == nil || borrowAmount.Sign() <= 0 ||
		maxRepayment == nil || maxRepayment.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}

	collateral := NormalizeAsset(collateralAsset)
	borrow := NormalizeAsset(borrowAsset)
	if collateral == borrow {
		return 0, ErrSameAsset
	}
	collateralMin, ok, err := e.state.MinUnit(collateral)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrUnsupportedAsset
	}
	borrowMin, ok, err := e.state.MinUnit(borrow)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrUnsupportedAsset
	}
	if maxRepayment.Cmp(borrowAmount) <= 0 {
		return 0, ErrNoInterestRoom
	}
	if durationBlocks < e.params.MinDurationBlocks || durationBlocks > e.params.MaxDurationBlocks {
		return 0, ErrDurationBounds
	}
	if auctionDurationBlocks < e.params.MinAuctionDurationBlocks {
		return 0, ErrAuctionTooShort
	}
	if collateralAmount.Cmp(collateralMin) < 0 || borrowAmount.Cmp(borrowMin) < 0 {
		return 0, ErrBelowMinUnit
	}

	fee := ComputeFee(collateralAmount, e.params.FeeRate, e.params.FeeDenom)
	if fee.Sign() > 0 {
		if err := e.custody.Transfer(collateral, fee, borrower, e.params.Treasury); err != nil {
			return 0, err
		}
	}
	if err := e.custody.EscrowLock(collateral, collateralAmount, borrower); err != nil {
		return 0, err
	}

	loanID, err := e.state.NextLoanID()
	if err != nil {
		return 0, err
	}
	maturity := e.settlementHeight + durationBlocks
	positionID, err := e.positions.Mint(borrower, loanID, PositionSideBorrower, collateral, collateralAmount, borrow, maxRepayment, maturity)
	if err != nil {
		return 0, err
	}

	loan := &Loan{
		ID:                 loanID,
		Borrower:           borrower,
		CollateralAsset:    collateral,
		CollateralAmount:   new(big.Int).Set(collateralAmount),
		BorrowAsset:        borrow,
		BorrowAmount:       new(big.Int).Set(borrowAmount),
		MaxRepayment:       new(big.Int).Set(maxRepayment),
		WinningRepayment:   big.NewInt(0),
		DurationBlocks:     durationBlocks,
		MaturityBlock:      maturity,
		AuctionEndBlock:    e.chainHeight + auctionDurationBlocks,
		Status:             LoanStatusAuction,
		BorrowerPositionID: positionID,
		ProtocolFeePaid:    fee,
	}
	if err := e.state.LoanPut(loan); err != nil {
		return 0, err
	}

	e.emit(NewLoanCreatedEvent(loan))
	return loanID, nil
}

// PlaceBid admits a strictly better repayment offer on an open auction. The
// previously winning lender's escrow is released before the new lender's
// funds are locked; both movements are part of one atomic operation.
func (e *Engine) PlaceBid(lender [20]byte, loanID uint64, repaymentAmount *big.Int) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if repaymentAmount == nil || repaymentAmount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}

	loan, ok, err := e.state.LoanGet(loanID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrLoanNotFound
	}
	if loan.Status != LoanStatusAuction {
		return 0, ErrInvalidLoanStatus
	}
	if e.chainHeight > loan.AuctionEndBlock {
		return 0, ErrAuctionEnded
	}
	if repaymentAmount.Cmp(loan.MaxRepayment) > 0 {
		return 0, ErrExceedsMaxRepayment
	}
	if repaymentAmount.Cmp(loan.BorrowAmount) <= 0 {
		return 0, ErrBidHasNoInterest
	}
	winner, hasWinner, err := e.state.WinningBidGet(loanID)
	if err != nil {
		return 0, err
	}
	if hasWinner && repaymentAmount.Cmp(winner.RepaymentAmount) >= 0 {
		return 0, ErrNotBetterBid
	}

	if hasWinner {
		if err := e.custody.EscrowRelease(loan.BorrowAsset, loan.BorrowAmount, winner.Lender); err != nil {
			return 0, err
		}
		displaced, ok, err := e.state.BidGet(winner.BidID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrNoWinningBid
		}
		displaced.Status = BidStatusDisplaced
		if err := e.state.BidPut(displaced); err != nil {
			return 0, err
		}
	}

	if err := e.custody.EscrowLock(loan.BorrowAsset, loan.BorrowAmount, lender); err != nil {
		return 0, err
	}

	bidID, err := e.state.NextBidID()
	if err != nil {
		return 0, err
	}
	bid := &Bid{
		ID:              bidID,
		LoanID:          loanID,
		Lender:          lender,
		RepaymentAmount: new(big.Int).Set(repaymentAmount),
		Status:          BidStatusWinning,
	}
	if err := e.state.BidPut(bid); err != nil {
		return 0, err
	}
	if err := e.state.WinningBidPut(loanID, &WinningBid{
		BidID:           bidID,
		Lender:          lender,
		RepaymentAmount: new(big.Int).Set(repaymentAmount),
	}); err != nil {
		return 0, err
	}

	e.emit(NewBidPlacedEvent(bid))
	return bidID, nil
}

// SettleAuction funds a loan whose bidding window closed with a standing
// winner: the escrowed principal moves to the borrower, the winning
// repayment is locked in, and the lender position is minted. Anyone may
// trigger settlement.
func (e *Engine) SettleAuction(loanID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	loan, ok, err := e.state.LoanGet(loanID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLoanNotFound
	}
	if loan.Status != LoanStatusAuction {
		return ErrInvalidLoanStatus
	}
	if e.chainHeight <= loan.AuctionEndBlock {
		return ErrAuctionOpen
	}
	winner, hasWinner, err := e.state.WinningBidGet(loanID)
	if err != nil {
		return err
	}
	if !hasWinner {
		return ErrNoWinningBid
	}

	if err := e.custody.EscrowRelease(loan.BorrowAsset, loan.BorrowAmount, loan.Borrower); err != nil {
		return err
	}
	lenderPosition, err := e.positions.Mint(winner.Lender, loanID, PositionSideLender, loan.CollateralAsset, loan.CollateralAmount, loan.BorrowAsset, winner.RepaymentAmount, loan.MaturityBlock)
	if err != nil {
		return err
	}

	loan.WinningRepayment = new(big.Int).Set(winner.RepaymentAmount)
	loan.LenderPositionID = lenderPosition
	loan.Status = LoanStatusFunded
	if err := e.state.LoanPut(loan); err != nil {
		return err
	}

	e.emit(NewLoanSettledEvent(loan, winner))
	return nil
}

// Repay settles a funded loan: the borrower pays the winning repayment to
// the current lender-position holder, the collateral escrow is released back
// to the borrower, and both positions are burned. Repayment stays open until
// the lender claims a default.
func (e *Engine) Repay(caller [20]byte, loanID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	loan, ok, err := e.state.LoanGet(loanID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLoanNotFound
	}
	if loan.Status != LoanStatusFunded {
		return ErrInvalidLoanStatus
	}
	if caller != loan.Borrower {
		return ErrNotBorrower
	}
	lenderOwner, ok, err := e.positions.Owner(loan.LenderPositionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoWinningBid
	}

	if err := e.custody.Transfer(loan.BorrowAsset, loan.WinningRepayment, caller, lenderOwner); err != nil {
		return err
	}
	if err := e.custody.EscrowRelease(loan.CollateralAsset, loan.CollateralAmount, loan.Borrower); err != nil {
		return err
	}
	if err := e.positions.Burn(loan.BorrowerPositionID); err != nil {
		return err
	}
	if err := e.positions.Burn(loan.LenderPositionID); err != nil {
		return err
	}

	loan.Status = LoanStatusRepaid
	if err := e.state.LoanPut(loan); err != nil {
		return err
	}

	e.emit(NewLoanRepaidEvent(loan))
	return nil
}

// ClaimDefault hands the escrowed collateral to the lender-position holder
// once a funded loan passes maturity unpaid.
func (e *Engine) ClaimDefault(caller [20]byte, loanID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	loan, ok, err := e.state.LoanGet(loanID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLoanNotFound
	}
	if loan.Status != LoanStatusFunded {
		return ErrInvalidLoanStatus
	}
	if e.settlementHeight <= loan.MaturityBlock {
		return ErrNotMatured
	}
	lenderOwner, ok, err := e.positions.Owner(loan.LenderPositionID)
	if err != nil {
		return err
	}
	if !ok || caller != lenderOwner {
		return ErrNotLender
	}

	if err := e.custody.EscrowRelease(loan.CollateralAsset, loan.CollateralAmount, caller); err != nil {
		return err
	}
	if err := e.positions.Burn(loan.BorrowerPositionID); err != nil {
		return err
	}
	if err := e.positions.Burn(loan.LenderPositionID); err != nil {
		return err
	}

	loan.Status = LoanStatusDefaulted
	if err := e.state.LoanPut(loan); err != nil {
		return err
	}

	e.emit(NewLoanDefaultedEvent(loan))
	return nil
}

// CancelExpired returns the collateral of an auction that expired with no
// standing bid and retires the loan. Anyone may trigger the cleanup.
func (e *Engine) CancelExpired(loanID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	loan, ok, err := e.state.LoanGet(loanID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLoanNotFound
	}
	if loan.Status != LoanStatusAuction {
		return ErrInvalidLoanStatus
	}
	if e.chainHeight <= loan.AuctionEndBlock {
		return ErrAuctionOpen
	}
	if _, hasWinner, err := e.state.WinningBidGet(loanID); err != nil {
		return err
	} else if hasWinner {
		return ErrHasWinningBid
	}

	if err := e.custody.EscrowRelease(loan.CollateralAsset, loan.CollateralAmount, loan.Borrower); err != nil {
		return err
	}
	if err := e.positions.Burn(loan.BorrowerPositionID); err != nil {
		return err
	}

	loan.Status = LoanStatusCancelled
	if err := e.state.LoanPut(loan); err != nil {
		return err
	}

	e.emit(NewLoanCancelledEvent(loan))
	return nil
}

// GetLoan returns the stored loan, if any.
func (e *Engine) GetLoan(loanID uint64) (*Loan, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	return e.state.LoanGet(loanID)
}

// GetBid returns the stored bid, if any.
func (e *Engine) GetBid(bidID uint64) (*Bid, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	return e.state.BidGet(bidID)
}

// GetWinningBid returns the current winning-bid index entry for a loan.
func (e *Engine) GetWinningBid(loanID uint64) (*WinningBid, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	return e.state.WinningBidGet(loanID)
}

// GetLoanCount returns the number of loans ever created.
func (e *Engine) GetLoanCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	return e.state.LoanCount()
}

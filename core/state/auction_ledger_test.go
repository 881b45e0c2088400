package state

import (
	"math/big"
	"testing"

	"loantender/native/auction"
	"loantender/native/positions"
	"loantender/storage"
)

func testLoan(id uint64) *auction.Loan {
	var borrower [20]byte
	borrower[0] = 0x01
	return &auction.Loan{
		ID:               id,
		Borrower:         borrower,
		CollateralAsset:  "CLT",
		CollateralAmount: big.NewInt(2_000_000),
		BorrowAsset:      "LUSD",
		BorrowAmount:     big.NewInt(150_000_000),
		MaxRepayment:     big.NewInt(160_000_000),
		WinningRepayment: big.NewInt(0),
		DurationBlocks:   1008,
		MaturityBlock:    1008,
		AuctionEndBlock:  144,
		Status:           auction.LoanStatusAuction,
		ProtocolFeePaid:  big.NewInt(2000),
	}
}

func TestLoanRoundTrip(t *testing.T) {
	m := newTestManager()

	id, err := m.NextLoanID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first id 1, got %d", id)
	}

	loan := testLoan(id)
	if err := m.LoanPut(loan); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := m.LoanGet(id)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.ID != loan.ID || got.Borrower != loan.Borrower || got.Status != loan.Status {
		t.Fatalf("loan fields lost: %+v", got)
	}
	if got.CollateralAmount.Cmp(loan.CollateralAmount) != 0 ||
		got.MaxRepayment.Cmp(loan.MaxRepayment) != 0 ||
		got.ProtocolFeePaid.Cmp(loan.ProtocolFeePaid) != 0 {
		t.Fatalf("loan amounts lost: %+v", got)
	}
	if got.MaturityBlock != 1008 || got.AuctionEndBlock != 144 {
		t.Fatalf("loan heights lost: %+v", got)
	}

	if _, ok, _ := m.LoanGet(99); ok {
		t.Fatalf("unknown loan must read as absent")
	}
}

func TestLoanPutRejectsUnallocatedID(t *testing.T) {
	m := newTestManager()
	if err := m.LoanPut(testLoan(0)); err == nil {
		t.Fatalf("id 0 must be rejected")
	}
}

func TestLoanCountTracksSequence(t *testing.T) {
	m := newTestManager()
	if count, _ := m.LoanCount(); count != 0 {
		t.Fatalf("fresh ledger must count zero loans, got %d", count)
	}
	for i := 0; i < 3; i++ {
		id, err := m.NextLoanID()
		if err != nil {
			t.Fatalf("next id: %v", err)
		}
		if err := m.LoanPut(testLoan(id)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if count, _ := m.LoanCount(); count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestBidAndWinningBid(t *testing.T) {
	m := newTestManager()
	var lender [20]byte
	lender[0] = 0x11

	id, err := m.NextBidID()
	if err != nil {
		t.Fatalf("next bid id: %v", err)
	}
	bid := &auction.Bid{
		ID:              id,
		LoanID:          1,
		Lender:          lender,
		RepaymentAmount: big.NewInt(155_000_000),
		Status:          auction.BidStatusWinning,
	}
	if err := m.BidPut(bid); err != nil {
		t.Fatalf("bid put: %v", err)
	}
	got, ok, err := m.BidGet(id)
	if err != nil || !ok {
		t.Fatalf("bid get: ok=%v err=%v", ok, err)
	}
	if got.Lender != lender || got.RepaymentAmount.Cmp(bid.RepaymentAmount) != 0 || got.Status != auction.BidStatusWinning {
		t.Fatalf("bid fields lost: %+v", got)
	}

	if _, ok, _ := m.WinningBidGet(1); ok {
		t.Fatalf("no winner recorded yet")
	}
	if err := m.WinningBidPut(1, &auction.WinningBid{BidID: id, Lender: lender, RepaymentAmount: big.NewInt(155_000_000)}); err != nil {
		t.Fatalf("winner put: %v", err)
	}
	winner, ok, err := m.WinningBidGet(1)
	if err != nil || !ok {
		t.Fatalf("winner get: ok=%v err=%v", ok, err)
	}
	if winner.BidID != id || winner.RepaymentAmount.Cmp(big.NewInt(155_000_000)) != 0 {
		t.Fatalf("winner fields lost: %+v", winner)
	}

	// Replacement overwrites the single per-loan entry.
	if err := m.WinningBidPut(1, &auction.WinningBid{BidID: id + 1, Lender: lender, RepaymentAmount: big.NewInt(152_000_000)}); err != nil {
		t.Fatalf("winner replace: %v", err)
	}
	winner, _, _ = m.WinningBidGet(1)
	if winner.BidID != id+1 {
		t.Fatalf("winner index must be replaced, got %+v", winner)
	}
}

func TestPositionRoundTrip(t *testing.T) {
	m := newTestManager()
	var owner [20]byte
	owner[0] = 0x01

	id, err := m.NextPositionID()
	if err != nil {
		t.Fatalf("next position id: %v", err)
	}
	position := &positions.Position{
		ID:               id,
		Owner:            owner,
		LoanID:           1,
		Side:             positions.SideBorrower,
		CollateralAsset:  "CLT",
		CollateralAmount: big.NewInt(2_000_000),
		BorrowAsset:      "LUSD",
		Repayment:        big.NewInt(160_000_000),
		MaturityBlock:    1008,
	}
	if err := m.PositionPut(position); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := m.PositionGet(id)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Owner != owner || got.Side != positions.SideBorrower || got.Burned {
		t.Fatalf("position fields lost: %+v", got)
	}
	if got.Repayment.Cmp(big.NewInt(160_000_000)) != 0 {
		t.Fatalf("position terms lost: %s", got.Repayment)
	}

	got.Burned = true
	if err := m.PositionPut(got); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, _, _ := m.PositionGet(id)
	if !updated.Burned {
		t.Fatalf("burn flag must persist")
	}
}

func TestSequencesPersistAcrossManagers(t *testing.T) {
	db := storage.NewMemDB()
	first := NewManager(db)
	if id, _ := first.NextLoanID(); id != 1 {
		t.Fatalf("expected 1")
	}
	if id, _ := first.NextLoanID(); id != 2 {
		t.Fatalf("expected 2")
	}

	second := NewManager(db)
	if id, _ := second.NextLoanID(); id != 3 {
		t.Fatalf("sequence must continue across manager instances, got %d", id)
	}
}

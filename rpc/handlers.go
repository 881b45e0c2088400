package rpc

import (
	"encoding/json"

	"loantender/crypto"
	"loantender/native/auction"
	"loantender/native/positions"
)

// Response payloads use decimal strings for amounts and bech32 for
// addresses so clients never lose precision to JSON numbers.

type loanResult struct {
	LoanID             uint64 `json:"loanId"`
	Borrower           string `json:"borrower"`
	CollateralAsset    string `json:"collateralAsset"`
	CollateralAmount   string `json:"collateralAmount"`
	BorrowAsset        string `json:"borrowAsset"`
	BorrowAmount       string `json:"borrowAmount"`
	MaxRepayment       string `json:"maxRepayment"`
	WinningRepayment   string `json:"winningRepayment"`
	DurationBlocks     uint64 `json:"durationBlocks"`
	MaturityBlock      uint64 `json:"maturityBlock"`
	AuctionEndBlock    uint64 `json:"auctionEndBlock"`
	Status             string `json:"status"`
	BorrowerPositionID uint64 `json:"borrowerPositionId"`
	LenderPositionID   uint64 `json:"lenderPositionId"`
	ProtocolFeePaid    string `json:"protocolFeePaid"`
}

func loanToResult(l *auction.Loan) *loanResult {
	borrower := crypto.MustNewAddress(crypto.AccountPrefix, l.Borrower[:])
	return &loanResult{
		LoanID:             l.ID,
		Borrower:           borrower.String(),
		CollateralAsset:    l.CollateralAsset,
		CollateralAmount:   l.CollateralAmount.String(),
		BorrowAsset:        l.BorrowAsset,
		BorrowAmount:       l.BorrowAmount.String(),
		MaxRepayment:       l.MaxRepayment.String(),
		WinningRepayment:   l.WinningRepayment.String(),
		DurationBlocks:     l.DurationBlocks,
		MaturityBlock:      l.MaturityBlock,
		AuctionEndBlock:    l.AuctionEndBlock,
		Status:             l.Status.String(),
		BorrowerPositionID: l.BorrowerPositionID,
		LenderPositionID:   l.LenderPositionID,
		ProtocolFeePaid:    l.ProtocolFeePaid.String(),
	}
}

type bidResult struct {
	BidID           uint64 `json:"bidId"`
	LoanID          uint64 `json:"loanId"`
	Lender          string `json:"lender"`
	RepaymentAmount string `json:"repaymentAmount"`
	Status          string `json:"status"`
}

func bidToResult(b *auction.Bid) *bidResult {
	lender := crypto.MustNewAddress(crypto.AccountPrefix, b.Lender[:])
	return &bidResult{
		BidID:           b.ID,
		LoanID:          b.LoanID,
		Lender:          lender.String(),
		RepaymentAmount: b.RepaymentAmount.String(),
		Status:          b.Status.String(),
	}
}

type winningBidResult struct {
	BidID           uint64 `json:"bidId"`
	Lender          string `json:"lender"`
	RepaymentAmount string `json:"repaymentAmount"`
}

type positionResult struct {
	PositionID       uint64 `json:"positionId"`
	Owner            string `json:"owner"`
	LoanID           uint64 `json:"loanId"`
	Side             string `json:"side"`
	CollateralAsset  string `json:"collateralAsset"`
	CollateralAmount string `json:"collateralAmount"`
	BorrowAsset      string `json:"borrowAsset"`
	Repayment        string `json:"repayment"`
	MaturityBlock    uint64 `json:"maturityBlock"`
	Burned           bool   `json:"burned"`
}

func positionToResult(p *positions.Position) *positionResult {
	owner := crypto.MustNewAddress(crypto.AccountPrefix, p.Owner[:])
	return &positionResult{
		PositionID:       p.ID,
		Owner:            owner.String(),
		LoanID:           p.LoanID,
		Side:             p.Side,
		CollateralAsset:  p.CollateralAsset,
		CollateralAmount: p.CollateralAmount.String(),
		BorrowAsset:      p.BorrowAsset,
		Repayment:        p.Repayment.String(),
		MaturityBlock:    p.MaturityBlock,
		Burned:           p.Burned,
	}
}

func (s *Server) loanCreate(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		Caller                string `json:"caller"`
		CollateralAsset       string `json:"collateralAsset"`
		CollateralAmount      string `json:"collateralAmount"`
		BorrowAsset           string `json:"borrowAsset"`
		BorrowAmount          string `json:"borrowAmount"`
		MaxRepayment          string `json:"maxRepayment"`
		DurationBlocks        uint64 `json:"durationBlocks"`
		AuctionDurationBlocks uint64 `json:"auctionDurationBlocks"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	collateralAmount, rpcErr := parseAmount(p.CollateralAmount, "collateral")
	if rpcErr != nil {
		return nil, rpcErr
	}
	borrowAmount, rpcErr := parseAmount(p.BorrowAmount, "borrow")
	if rpcErr != nil {
		return nil, rpcErr
	}
	maxRepayment, rpcErr := parseAmount(p.MaxRepayment, "maxRepayment")
	if rpcErr != nil {
		return nil, rpcErr
	}
	loanID, err := s.node.CreateLoanAuction(caller, p.CollateralAsset, collateralAmount, p.BorrowAsset, borrowAmount, maxRepayment, p.DurationBlocks, p.AuctionDurationBlocks)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]uint64{"loanId": loanID}, nil
}

func (s *Server) loanPlaceBid(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		Caller          string `json:"caller"`
		LoanID          uint64 `json:"loanId"`
		RepaymentAmount string `json:"repaymentAmount"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	repayment, rpcErr := parseAmount(p.RepaymentAmount, "repayment")
	if rpcErr != nil {
		return nil, rpcErr
	}
	bidID, err := s.node.PlaceBid(caller, p.LoanID, repayment)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]uint64{"bidId": bidID}, nil
}

func (s *Server) loanSettle(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		LoanID uint64 `json:"loanId"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SettleAuction(p.LoanID); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"settled": true}, nil
}

func (s *Server) loanRepay(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		Caller string `json:"caller"`
		LoanID uint64 `json:"loanId"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.Repay(caller, p.LoanID); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"repaid": true}, nil
}

func (s *Server) loanClaimDefault(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		Caller string `json:"caller"`
		LoanID uint64 `json:"loanId"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.ClaimDefault(caller, p.LoanID); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"defaulted": true}, nil
}

func (s *Server) loanCancelExpired(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		LoanID uint64 `json:"loanId"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.CancelExpired(p.LoanID); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"cancelled": true}, nil
}

func (s *Server) loanGet(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		LoanID uint64 `json:"loanId"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	loan, ok, err := s.node.GetLoan(p.LoanID)
	if err != nil {
		return nil, engineError(err)
	}
	if !ok {
		return nil, &rpcError{Code: codeLoanNotFound, Message: auction.ErrLoanNotFound.Error()}
	}
	return loanToResult(loan), nil
}

func (s *Server) loanGetBid(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		BidID uint64 `json:"bidId"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	bid, ok, err := s.node.GetBid(p.BidID)
	if err != nil {
		return nil, engineError(err)
	}
	if !ok {
		return nil, &rpcError{Code: codeLoanNotFound, Message: "bid not found"}
	}
	return bidToResult(bid), nil
}

func (s *Server) loanGetWinningBid(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		LoanID uint64 `json:"loanId"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	winner, ok, err := s.node.GetWinningBid(p.LoanID)
	if err != nil {
		return nil, engineError(err)
	}
	if !ok {
		return nil, &rpcError{Code: codeNoWinningBid, Message: auction.ErrNoWinningBid.Error()}
	}
	lender := crypto.MustNewAddress(crypto.AccountPrefix, winner.Lender[:])
	return &winningBidResult{
		BidID:           winner.BidID,
		Lender:          lender.String(),
		RepaymentAmount: winner.RepaymentAmount.String(),
	}, nil
}

func (s *Server) loanCount() (any, *rpcError) {
	count, err := s.node.GetLoanCount()
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]uint64{"count": count}, nil
}

func (s *Server) positionGet(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		PositionID uint64 `json:"positionId"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	position, ok, err := s.node.GetPosition(p.PositionID)
	if err != nil {
		return nil, engineError(err)
	}
	if !ok {
		return nil, &rpcError{Code: codeLoanNotFound, Message: positions.ErrNotFound.Error()}
	}
	return positionToResult(position), nil
}

func (s *Server) positionTransfer(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		Caller     string `json:"caller"`
		NewOwner   string `json:"newOwner"`
		PositionID uint64 `json:"positionId"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	newOwner, rpcErr := parseAddress(p.NewOwner, "newOwner")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.TransferPosition(caller, newOwner, p.PositionID); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"transferred": true}, nil
}

func (s *Server) bankBalance(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		Address string `json:"address"`
		Asset   string `json:"asset"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress(p.Address, "account")
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.BalanceOf(addr, p.Asset)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"balance": balance.String()}, nil
}

func (s *Server) bankEscrowBalance(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		Asset string `json:"asset"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.EscrowBalance(p.Asset)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"balance": balance.String()}, nil
}

func (s *Server) bankAssets() (any, *rpcError) {
	assets, err := s.node.Assets()
	if err != nil {
		return nil, engineError(err)
	}
	return map[string][]string{"assets": assets}, nil
}

func (s *Server) bankFaucet(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		Address string `json:"address"`
		Asset   string `json:"asset"`
		Amount  string `json:"amount"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress(p.Address, "account")
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(p.Amount, "faucet")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.Faucet(addr, p.Asset, amount); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"minted": true}, nil
}

func (s *Server) chainHeight() (any, *rpcError) {
	return map[string]uint64{"height": s.node.Height()}, nil
}

func (s *Server) chainAdvance(params []json.RawMessage) (any, *rpcError) {
	var p struct {
		Blocks uint64 `json:"blocks"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Blocks == 0 {
		p.Blocks = 1
	}
	height, err := s.node.AdvanceHeight(p.Blocks)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]uint64{"height": height}, nil
}

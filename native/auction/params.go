package auction

import "fmt"

// Params carries the protocol constants enforced at loan creation. The fee is
// expressed as rate/denom of the collateral amount rather than basis points
// so operators can configure rates finer than 0.01%.
type Params struct {
	FeeRate                  uint64
	FeeDenom                 uint64
	MinDurationBlocks        uint64
	MaxDurationBlocks        uint64
	MinAuctionDurationBlocks uint64
	Treasury                 [20]byte
}

// DefaultParams returns the production defaults: a 0.1% creation fee, loan
// terms between one day and ten weeks of blocks, and a minimum six-hour
// bidding window.
func DefaultParams() Params {
	return Params{
		FeeRate:                  100,
		FeeDenom:                 100_000,
		MinDurationBlocks:        144,
		MaxDurationBlocks:        10_080,
		MinAuctionDurationBlocks: 36,
	}
}

// Validate rejects degenerate parameter sets before they reach the engine.
func (p Params) Validate() error {
	if p.FeeDenom == 0 {
		return fmt.Errorf("auction params: fee denominator must be positive")
	}
	if p.FeeRate > p.FeeDenom {
		return fmt.Errorf("auction params: fee rate %d exceeds denominator %d", p.FeeRate, p.FeeDenom)
	}
	if p.MinDurationBlocks == 0 {
		return fmt.Errorf("auction params: minimum duration must be positive")
	}
	if p.MaxDurationBlocks < p.MinDurationBlocks {
		return fmt.Errorf("auction params: maximum duration %d below minimum %d", p.MaxDurationBlocks, p.MinDurationBlocks)
	}
	if p.MinAuctionDurationBlocks == 0 {
		return fmt.Errorf("auction params: minimum auction duration must be positive")
	}
	return nil
}

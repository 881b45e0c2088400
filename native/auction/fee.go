package auction

import "math/big"

// ComputeFee returns floor(amount * rate / denom). Arbitrary-precision
// arithmetic makes the multiplication total; a zero denominator is rejected
// by Params.Validate before the engine ever computes a fee, so it is treated
// as a zero fee here rather than a panic path.
func ComputeFee(amount *big.Int, rate, denom uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || rate == 0 || denom == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(rate))
	return fee.Quo(fee, new(big.Int).SetUint64(denom))
}

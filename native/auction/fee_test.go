package auction

import (
	"math/big"
	"testing"
)

func TestComputeFee(t *testing.T) {
	cases := []struct {
		name   string
		amount *big.Int
		rate   uint64
		denom  uint64
		want   *big.Int
	}{
		{"default rate", big.NewInt(2_000_000), 100, 100_000, big.NewInt(2000)},
		{"rounds down", big.NewInt(999), 100, 100_000, big.NewInt(0)},
		{"exact unit", big.NewInt(1000), 100, 100_000, big.NewInt(1)},
		{"zero rate", big.NewInt(2_000_000), 0, 100_000, big.NewInt(0)},
		{"nil amount", nil, 100, 100_000, big.NewInt(0)},
		{"zero denom", big.NewInt(2_000_000), 100, 0, big.NewInt(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeFee(tc.amount, tc.rate, tc.denom)
			if got.Cmp(tc.want) != 0 {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestComputeFeeLargeAmounts(t *testing.T) {
	amount, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	got := ComputeFee(amount, 100, 100_000)
	want, _ := new(big.Int).SetString("123456789012345678901234567", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if amount.String() != "123456789012345678901234567890" {
		t.Fatalf("input amount must not be mutated")
	}
}

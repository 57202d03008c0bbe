package domain

import "math/big"

// Payout is floor(amount * balance / supply), computed through big.Int so
// the product cannot overflow int64. Truncation dust stays in custody and is
// bounded by one smallest unit per holder per distribution.
func Payout(amount, balance, supply int64) int64 {
	if amount <= 0 || balance <= 0 || supply <= 0 {
		return 0
	}
	product := new(big.Int).Mul(big.NewInt(amount), big.NewInt(balance))
	return product.Quo(product, big.NewInt(supply)).Int64()
}

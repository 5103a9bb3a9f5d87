// Package money provides overflow-checked arithmetic for int64 amounts.
// Intermediate products that can exceed 64 bits go through decimals, so a
// rate multiplied by a long duration never wraps silently.
package money

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/quipay/quipay/internal/types"
)

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// CheckedAdd returns a+b or ErrOverflow when the sum leaves int64 range.
func CheckedAdd(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, types.ErrOverflow
	}
	return sum, nil
}

// CheckedMul returns a*b or ErrOverflow when the product leaves int64 range.
// The product is computed wide, so no intermediate wraps.
func CheckedMul(a, b int64) (int64, error) {
	product := decimal.NewFromInt(a).Mul(decimal.NewFromInt(b))
	if product.Abs().Cmp(maxInt64) > 0 {
		return 0, types.ErrOverflow
	}
	return product.IntPart(), nil
}

// Prorata returns floor(total * elapsed / duration) computed with a wide
// intermediate product. elapsed at or past duration yields total, elapsed
// at or before zero yields 0. duration must be positive; callers validate
// schedules before storing them.
func Prorata(total, elapsed, duration int64) int64 {
	if duration <= 0 || elapsed <= 0 {
		return 0
	}
	if elapsed >= duration {
		return total
	}
	num := decimal.NewFromInt(total).Mul(decimal.NewFromInt(elapsed))
	q, _ := num.QuoRem(decimal.NewFromInt(duration), 0)
	return q.IntPart()
}

package book

import "github.com/shopspring/decimal"

// Decimal is the notional-value type used for fill cost. A raw uint64
// multiply of quantity by price can overflow for large resting sizes at
// high prices; decimal.Decimal carries the product without that risk and
// is the type the teacher's stack already reaches for whenever money needs
// exact arithmetic.
type Decimal = decimal.Decimal

// fillCost returns qty * price as a Decimal.
func fillCost(qty Quantity, price Price) Decimal {
	return decimal.NewFromInt(int64(qty)).Mul(decimal.NewFromInt(int64(price)))
}

package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineTotal is price * quantity * (1 - discount/100), rounded to cents.
func LineTotal(price decimal.Decimal, quantity int, discountPercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discountPercent.Div(hundred))
	return price.Mul(decimal.NewFromInt(int64(quantity))).Mul(factor).Round(2)
}

// ProportionalTax applies the original effective rate (tax / subtotal) to a
// partial subtotal. A zero original subtotal yields zero tax.
func ProportionalTax(subtotal, originalTax, originalSubtotal decimal.Decimal) decimal.Decimal {
	if originalSubtotal.IsZero() {
		return decimal.Zero
	}
	return subtotal.Mul(originalTax).Div(originalSubtotal).Round(2)
}

// PercentOf returns amount * percent / 100 rounded to cents.
func PercentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(2)
}

package simulation

import "github.com/shopspring/decimal"

func decimalHundred() decimal.Decimal {
	return decimal.NewFromInt(100)
}

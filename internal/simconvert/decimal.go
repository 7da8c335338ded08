package simconvert

import "github.com/shopspring/decimal"

func decimalKgPerMt() decimal.Decimal {
	return decimal.NewFromInt(kgPerMt)
}

func decimalHundred() decimal.Decimal {
	return decimal.NewFromInt(100)
}

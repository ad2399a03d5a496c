package service

import "github.com/shopspring/decimal"

const (
	moneyPlaces    = 2
	quantityPlaces = 3

	// columnPrecision is the total digit count of every numeric column.
	columnPrecision = 12
)

// fitsScale reports whether d has no more fractional digits than places.
// Values are rejected rather than silently rounded.
func fitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

// fitsColumn reports whether d can be stored in a decimal(12, places) column
// without rounding or overflow.
func fitsColumn(d decimal.Decimal, places int32) bool {
	return fitsScale(d, places) && d.Abs().LessThan(columnLimit(places))
}

// columnLimit is the smallest magnitude a decimal(12, places) column rejects.
func columnLimit(places int32) decimal.Decimal {
	return decimal.New(1, columnPrecision-places)
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

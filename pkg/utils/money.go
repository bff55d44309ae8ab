package utils

import (
	"github.com/shopspring/decimal"
)

// Amounts are int64 minor currency units (paise). Percentages and ratios go
// through decimal so nothing touches float64.

var (
	hundred       = decimal.NewFromInt(100)
	monthsPerYear = decimal.NewFromInt(12)
)

// CeilDiv returns ceil(numerator / denominator) for a non-negative numerator
// and a positive denominator.
func CeilDiv(numerator, denominator int64) int64 {
	if numerator <= 0 {
		return 0
	}
	return (numerator + denominator - 1) / denominator
}

// RoundHalfUp rounds a decimal amount to whole minor units.
func RoundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// PercentOf returns round(amount * percent / 100).
func PercentOf(amount int64, percent decimal.Decimal) int64 {
	return RoundHalfUp(decimal.NewFromInt(amount).Mul(percent).Div(hundred))
}

// FlatInterest calculates simple flat interest over a tenure in months
// Formula: principal * rate/100 * (months/12)
func FlatInterest(principal int64, ratePercent decimal.Decimal, months int) int64 {
	interest := decimal.NewFromInt(principal).
		Mul(ratePercent).
		Div(hundred).
		Mul(decimal.NewFromInt(int64(months))).
		Div(monthsPerYear)
	return RoundHalfUp(interest)
}

// ProRate returns round(amount * part / whole) for non-negative inputs,
// rounding half up on the exact remainder. A zero whole yields zero.
func ProRate(amount, part, whole int64) int64 {
	if whole == 0 {
		return 0
	}
	divisor := decimal.NewFromInt(whole)
	quotient, remainder := decimal.NewFromInt(amount).Mul(decimal.NewFromInt(part)).QuoRem(divisor, 0)
	if remainder.Add(remainder).GreaterThanOrEqual(divisor) {
		quotient = quotient.Add(decimal.NewFromInt(1))
	}
	return quotient.IntPart()
}

// ToMajor converts minor units to a decimal in major units (rupees).
func ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// FromMajor converts a major-unit decimal to minor units, rounding half up.
func FromMajor(major decimal.Decimal) int64 {
	return RoundHalfUp(major.Mul(hundred))
}

// FormatMinor renders minor units with two decimal places.
func FormatMinor(minor int64) string {
	return ToMajor(minor).StringFixed(2)
}

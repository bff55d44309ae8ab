package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCeilDiv(t *testing.T) {
	tests := []struct {
		name        string
		numerator   int64
		denominator int64
		expected    int64
	}{
		{name: "exact division", numerator: 10000, denominator: 10, expected: 1000},
		{name: "rounds up remainder", numerator: 10000, denominator: 900, expected: 12},
		{name: "one unit over", numerator: 10001, denominator: 10, expected: 1001},
		{name: "zero numerator", numerator: 0, denominator: 7, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CeilDiv(tt.numerator, tt.denominator))
		})
	}
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		percent  decimal.Decimal
		expected int64
	}{
		{name: "whole percent", amount: 5000000, percent: decimal.NewFromInt(3), expected: 150000},
		{name: "rounds half up", amount: 4167, percent: decimal.NewFromInt(2), expected: 83}, // 83.34
		{name: "half rounds away", amount: 25, percent: decimal.NewFromInt(10), expected: 3}, // 2.5
		{name: "fractional rate", amount: 100000, percent: decimal.RequireFromString("1.5"), expected: 1500},
		{name: "zero percent", amount: 100000, percent: decimal.Zero, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PercentOf(tt.amount, tt.percent))
		})
	}
}

func TestFlatInterest(t *testing.T) {
	// 1,00,000.00 at 12% for 24 months = 24,000.00
	assert.Equal(t, int64(2400000), FlatInterest(10000000, decimal.NewFromInt(12), 24))
	// 10,000 at 10% for 6 months = 500
	assert.Equal(t, int64(500), FlatInterest(10000, decimal.NewFromInt(10), 6))
}

func TestProRate(t *testing.T) {
	assert.Equal(t, int64(4167), ProRate(10000, 5000, 12000))
	assert.Equal(t, int64(10000), ProRate(10000, 12000, 12000))
	assert.Equal(t, int64(0), ProRate(10000, 0, 12000))
	assert.Equal(t, int64(0), ProRate(10000, 5000, 0))
	assert.Equal(t, int64(1), ProRate(1, 1, 2))
	// just under a half unit, closer than 16 significant digits can tell
	assert.Equal(t, int64(0), ProRate(1, 100000000000000000, 200000000000000001))
	assert.Equal(t, int64(5), ProRate(9, 100000000000000001, 200000000000000000))
}

func TestMajorMinorConversion(t *testing.T) {
	assert.Equal(t, "1234.56", FormatMinor(123456))
	assert.True(t, ToMajor(150).Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, int64(123457), FromMajor(decimal.RequireFromString("1234.565")))
}

package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"vendas": KindSales, " Vendas ": KindSales, "sales": KindSales,
		"duplicatas": KindReceivables, "duplicata": KindReceivables, "receivables": KindReceivables,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("boletos")
	assert.Error(t, err)
}

func TestClassifyAndImportable(t *testing.T) {
	unit, date := IntPtr(1), StringPtr("2024-03-05")
	items := []ReceivableItem{{ClientCode: "1", AmountReceivable: decimal.NewFromInt(10)}}

	tests := []struct {
		name       string
		rec        Record
		status     Status
		importable bool
		missing    []string
	}{
		{"invalid", Record{Kind: KindSales, Invalid: true, UnitID: unit, Date: date}, StatusError, false, nil},
		{"complete sale", Record{Kind: KindSales, UnitID: unit, Date: date}, StatusOK, true, nil},
		{"warned sale", Record{Kind: KindSales, UnitID: unit, Date: date, Warnings: []string{"x"}}, StatusWarning, true, nil},
		{"no unit", Record{Kind: KindSales, Date: date}, StatusOK, false, []string{"unitId"}},
		{"no unit nor date", Record{Kind: KindSales}, StatusOK, false, []string{"unitId", "date"}},
		{"receivable without items", Record{Kind: KindReceivables, UnitID: unit, Date: date}, StatusOK, false, []string{"items"}},
		{"receivable with items", Record{Kind: KindReceivables, UnitID: unit, Date: date, Items: items}, StatusOK, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, ClassifyStatus(tt.rec))
			assert.Equal(t, tt.importable, Importable(tt.rec))
			assert.Equal(t, tt.missing, MissingFields(tt.rec))
		})
	}
}

func TestSummarize(t *testing.T) {
	unit, date := IntPtr(1), StringPtr("2024-03-05")
	s := Summarize([]Record{
		{Kind: KindReceivables, Invalid: true},
		{Kind: KindReceivables, UnitID: unit, Date: date, Warnings: []string{"x"}, Items: []ReceivableItem{
			{ClientCode: "1", AmountReceivable: decimal.RequireFromString("10.10")},
			{ClientCode: "2", AmountReceivable: decimal.RequireFromString("5")},
		}},
		{Kind: KindReceivables, Date: date, Items: []ReceivableItem{{ClientCode: "3", AmountReceivable: decimal.NewFromInt(99)}}},
	})

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Valid)
	assert.Equal(t, 1, s.Invalid)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Warned)
	assert.Equal(t, 2, s.ReceivableCount)
	assert.True(t, s.ReceivableTotal.Equal(decimal.RequireFromString("15.10")))

	assert.Equal(t, Summary{ReceivableTotal: decimal.Zero}, Summarize(nil))
}

func TestValidDate(t *testing.T) {
	assert.True(t, ValidDate("2024-02-29"))
	assert.False(t, ValidDate("2023-02-29"))
	assert.False(t, ValidDate("2024-3-5"))
	assert.False(t, ValidDate("05/03/2024"))
	assert.False(t, ValidDate(""))
}

func TestBreakdownDiff(t *testing.T) {
	b := SalesBreakdown{
		TotalRevenue: decimal.RequireFromString("100.00"),
		Cash:         decimal.RequireFromString("40.00"),
		Pix:          decimal.RequireFromString("30.00"),
		Card:         decimal.RequireFromString("20.00"),
	}
	assert.True(t, BreakdownDiff(b).Equal(decimal.NewFromInt(10)))
}

func TestCloneDoesNotAlias(t *testing.T) {
	orig := Record{
		SourceName: StringPtr("a.txt"),
		UnitID:     IntPtr(1),
		Sales:      &SalesBreakdown{TotalOrders: 1},
		Items:      []ReceivableItem{{ClientCode: "1"}},
		Warnings:   []string{"w"},
	}
	c := orig.Clone()
	*c.UnitID = 2
	c.Sales.TotalOrders = 9
	c.Items[0].ClientCode = "x"
	c.Warnings[0] = "z"

	assert.Equal(t, 1, *orig.UnitID)
	assert.Equal(t, 1, orig.Sales.TotalOrders)
	assert.Equal(t, "1", orig.Items[0].ClientCode)
	assert.Equal(t, "w", orig.Warnings[0])
	assert.Equal(t, "a.txt", orig.Source())
	assert.Equal(t, "Manual", (&Record{}).Source())
}

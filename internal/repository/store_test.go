package repository

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestClassifyMismatch(t *testing.T) {
	amt := func(s string) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.RequireFromString(s)) }

	tests := []struct {
		name      string
		entryID   string
		saleID    string
		entry     decimal.NullDecimal
		sale      decimal.NullDecimal
		saleCount int
		want      MismatchKind
		bad       bool
	}{
		{name: "matched pair", entryID: "e1", saleID: "s1", entry: amt("-85.00"), sale: amt("85"), saleCount: 1},
		{name: "sale without entry", saleID: "s1", sale: amt("85"), want: SaleWithoutEntry, bad: true},
		{name: "entry without sale", entryID: "e1", entry: amt("-85"), want: EntryWithoutSale, bad: true},
		{name: "zero spend needs no sale", entryID: "e1", entry: amt("0")},
		{name: "amount mismatch", entryID: "e1", saleID: "s1", entry: amt("-85"), sale: amt("80"), saleCount: 1, want: AmountMismatch, bad: true},
		{name: "two sales for one entry", entryID: "e1", saleID: "s1", entry: amt("-85"), sale: amt("85"), saleCount: 2, want: DuplicateSale, bad: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, bad := classifyMismatch(tt.entryID, tt.saleID, tt.entry, tt.sale, tt.saleCount)
			assert.Equal(t, tt.bad, bad)
			assert.Equal(t, tt.want, kind)
		})
	}
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedCartFields(t *testing.T) {
	lines := []CartLine{
		{ProductID: 1, UnitPrice: 1000, Quantity: 2},
		{ProductID: 2, UnitPrice: 500, Quantity: 1},
	}

	assert.Equal(t, 3, ItemCount(lines))
	assert.Equal(t, int64(2*1000+1*500), Subtotal(lines))
}

func TestSanitizeLinesDropsInvalidAndCollapsesDuplicates(t *testing.T) {
	lines := []CartLine{
		{ProductID: 1, Name: "first", UnitPrice: 100, Quantity: 1},
		{ProductID: 0, Quantity: 5},
		{ProductID: 1, Name: "second", UnitPrice: 999, Quantity: 2},
		{ProductID: 2, Quantity: 0},
	}

	clean := SanitizeLines(lines)
	require.Len(t, clean, 1)
	assert.Equal(t, "first", clean[0].Name, "first-seen snapshot wins")
	assert.Equal(t, 3, clean[0].Quantity)
}

func TestParseAuthStatus(t *testing.T) {
	assert.Equal(t, AuthAuthenticated, ParseAuthStatus(" Authenticated "))
	assert.Equal(t, AuthUnauthenticated, ParseAuthStatus("unauthenticated"))
	assert.Equal(t, AuthLoading, ParseAuthStatus("loading"))
	assert.Equal(t, AuthLoading, ParseAuthStatus("garbage"))
}

func TestScentNotesAll(t *testing.T) {
	notes := ScentNotes{
		Top:    []string{"bergamot"},
		Middle: []string{"rose", "jasmine"},
		Base:   []string{"musk"},
	}
	assert.Equal(t, []string{"bergamot", "rose", "jasmine", "musk"}, notes.All())
}

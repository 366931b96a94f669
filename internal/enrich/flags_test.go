package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveFlag(t *testing.T) {
	tbl, err := NewTable(testEvents(4))
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("car"))
	require.NoError(t, tbl.AddColumn("beta"))

	for _, row := range []int{0, 1, 2} {
		require.NoError(t, tbl.Set("car", row, 0.01))
	}
	for _, row := range []int{1, 2, 3} {
		require.NoError(t, tbl.Set("beta", row, 1.1))
	}

	eligible, err := DeriveFlag(tbl, FlagRule{
		Flag:     FlagHasCRSPData,
		Requires: []string{"car", "beta"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, eligible)

	// Flag is never null: every row carries 0 or 1
	assert.Equal(t, 4, tbl.NonNullCount(FlagHasCRSPData))
	assert.Equal(t, []int{1, 2}, tbl.FlaggedRows(FlagHasCRSPData))
	assert.False(t, tbl.FlagTrue(FlagHasCRSPData, 0))
	assert.False(t, tbl.FlagTrue(FlagHasCRSPData, 3))
}

func TestDeriveFlagUnknownColumn(t *testing.T) {
	tbl, err := NewTable(testEvents(1))
	require.NoError(t, err)

	_, err = DeriveFlag(tbl, FlagRule{Flag: FlagHasFinancialData, Requires: []string{"nope"}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")
}

func TestDeriveCompositeFlag(t *testing.T) {
	tbl, err := NewTable(testEvents(3))
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("a"))
	require.NoError(t, tbl.AddColumn("b"))

	require.NoError(t, tbl.Set("a", 0, 1))
	require.NoError(t, tbl.Set("a", 1, 1))
	require.NoError(t, tbl.Set("b", 1, 1))
	require.NoError(t, tbl.Set("b", 2, 1))

	_, err = DeriveFlag(tbl, FlagRule{Flag: FlagHasCRSPData, Requires: []string{"a"}})
	require.NoError(t, err)
	_, err = DeriveFlag(tbl, FlagRule{Flag: FlagHasFinancialData, Requires: []string{"b"}})
	require.NoError(t, err)

	eligible, err := DeriveCompositeFlag(tbl, FlagHasCompleteData,
		[]string{FlagHasCRSPData, FlagHasFinancialData})
	require.NoError(t, err)
	assert.Equal(t, 1, eligible)
	assert.Equal(t, []int{1}, tbl.FlaggedRows(FlagHasCompleteData))
	assert.Equal(t, 3, tbl.NonNullCount(FlagHasCompleteData))
}

func TestDeriveFlagIsRederivable(t *testing.T) {
	tbl, err := NewTable(testEvents(2))
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x"))

	rule := FlagRule{Flag: FlagHasVolatilityWindow, Requires: []string{"x"}}

	eligible, err := DeriveFlag(tbl, rule)
	require.NoError(t, err)
	assert.Equal(t, 0, eligible)

	require.NoError(t, tbl.Set("x", 0, 3.0))

	eligible, err = DeriveFlag(tbl, rule)
	require.NoError(t, err)
	assert.Equal(t, 1, eligible, "flag derivation reflects current non-null status")
}

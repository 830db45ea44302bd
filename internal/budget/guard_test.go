package budget

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardChargeUnderCeiling(t *testing.T) {
	g, err := NewGuard(100, nil)
	require.NoError(t, err)

	assert.True(t, g.Allow())
	assert.True(t, g.Charge(40))
	assert.True(t, g.Charge(60))
	assert.True(t, g.Allow(), "exactly at the ceiling is still allowed")
	assert.False(t, g.Tripped())
	assert.Equal(t, int64(100), g.Total())
}

func TestGuardTripIsMonotonic(t *testing.T) {
	g, err := NewGuard(100, nil)
	require.NoError(t, err)

	assert.True(t, g.Charge(100))
	assert.False(t, g.Charge(1), "crossing the ceiling denies the charge")
	assert.True(t, g.Tripped())

	// Once tripped, no charge ever succeeds again, even a zero charge.
	for i := 0; i < 10; i++ {
		assert.False(t, g.Charge(0))
		assert.False(t, g.Charge(50))
		assert.False(t, g.Allow())
	}

	// Denied charges are still counted for the audit trail.
	assert.Equal(t, int64(601), g.Total())
}

func TestGuardLedgerPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")

	ledger, err := OpenLedger(path)
	require.NoError(t, err)

	g, err := NewGuard(1000, ledger)
	require.NoError(t, err)
	assert.True(t, g.Charge(700))
	require.NoError(t, g.Flush())
	require.NoError(t, ledger.Close())

	// A restarted process resumes from the persisted daily total.
	ledger2, err := OpenLedger(path)
	require.NoError(t, err)
	defer ledger2.Close()

	g2, err := NewGuard(1000, ledger2)
	require.NoError(t, err)
	assert.Equal(t, int64(700), g2.Total())
	assert.True(t, g2.Allow())
	assert.False(t, g2.Charge(400), "persisted usage plus new charge crosses the ceiling")
	assert.True(t, g2.Tripped())
}

func TestGuardStartsTrippedWhenAlreadyOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")

	ledger, err := OpenLedger(path)
	require.NoError(t, err)
	defer ledger.Close()

	g, err := NewGuard(1000, ledger)
	require.NoError(t, err)
	g.Charge(1500)
	require.NoError(t, g.Flush())

	g2, err := NewGuard(1000, ledger)
	require.NoError(t, err)
	assert.False(t, g2.Allow(), "guard loads over-ceiling state as tripped")
	assert.False(t, g2.Charge(1))
}

func TestLedgerLoadMissingDay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")

	ledger, err := OpenLedger(path)
	require.NoError(t, err)
	defer ledger.Close()

	used, err := ledger.Load("2026-01-01")
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
}

func TestLedgerUpsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")

	ledger, err := OpenLedger(path)
	require.NoError(t, err)
	defer ledger.Close()

	require.NoError(t, ledger.Save("2026-01-01", 100))
	require.NoError(t, ledger.Save("2026-01-01", 250))

	used, err := ledger.Load("2026-01-01")
	require.NoError(t, err)
	assert.Equal(t, int64(250), used)
}

package main

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTransactionsSQLite(t *testing.T) {
	// readTransactionsSQL opens its own handle, so hand it a file-backed DSN.
	path := t.TempDir() + "/txns.db"
	fileDB, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = fileDB.Exec(`CREATE TABLE transactions (customer_id TEXT, purchased_at TEXT)`)
	require.NoError(t, err)
	_, err = fileDB.Exec(`INSERT INTO transactions VALUES ('a', '2025-03-01'), ('b', '2025-03-02 08:30:00')`)
	require.NoError(t, err)
	require.NoError(t, fileDB.Close())

	txns, err := readTransactionsSQL("sqlite3", path, defaultQuery)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "a", txns[0].CustomerID)
	assert.Equal(t, time.Date(2025, 3, 2, 8, 30, 0, 0, time.UTC), txns[1].Time)
}

func TestScanTime(t *testing.T) {
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	got, err := scanTime(want)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = scanTime("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = scanTime([]byte("2025-03-01"))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = scanTime(42)
	assert.Error(t, err)
}

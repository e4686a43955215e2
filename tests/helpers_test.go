package tests

import (
	"testing"

	testingutil "github.com/soundroots/communityos/testing"
	"github.com/stretchr/testify/require"
)

// resetTables truncates everything and reseeds the account type rows that
// the migrations normally provide.
func resetTables(t *testing.T, testDB *testingutil.TestDB) {
	t.Helper()
	require.NoError(t, testDB.ClearAllTables())
	require.NoError(t, testDB.DB.Exec(
		`INSERT INTO account_types (type_name, display_name) VALUES
			('individual', 'Individual'),
			('band', 'Band'),
			('organisation', 'Organisation')`).Error)
}

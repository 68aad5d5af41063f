package migration_test

import (
	"testing"

	"github.com/enfty-lab/gateway/internal/entity"
	"github.com/enfty-lab/gateway/migration"
	"github.com/enfty-lab/gateway/pkg/testutil"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ctx := testutil.MockContext()

	require.NoError(t, migration.Run(ctx, "0001"))

	var applied []entity.Migration
	require.NoError(t, xcontext.DB(ctx).Find(&applied).Error)
	require.Len(t, applied, 1)
	require.Equal(t, "0001", applied[0].Version)

	// Applying the same version twice is a no-op.
	require.NoError(t, migration.Run(ctx, "0001"))

	require.Error(t, migration.Run(ctx, "9999"))
}

func Test_importLegacyLedger(t *testing.T) {
	ctx := testutil.MockContext()
	db := xcontext.DB(ctx)

	require.NoError(t, db.Exec(`CREATE TABLE legacy_ledger (
		id INTEGER PRIMARY KEY,
		gateway_id__c TEXT, sent_from__c TEXT, from_address__c TEXT, to_address__c TEXT,
		token_id__c TEXT, type__c TEXT, bill_of_lading__c TEXT, status__c TEXT,
		last_status_change_date__c DATETIME, nonce__c INTEGER, tx_hash__c TEXT,
		error_code__c TEXT, error_message__c TEXT
	)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO legacy_ledger VALUES
		(1, 'legacy-1', ?, NULL, ?, NULL, 'Minting', 'bol-1', 'Cleared', CURRENT_TIMESTAMP, 4, '0xabc', NULL, NULL)`,
		testutil.AddressA, testutil.AddressB).Error)

	testutil.InsertTransaction(ctx, testutil.NewTransaction(
		"legacy-1-copy", testutil.AddressA, entity.BlockchainTransactionStatusTypeSent, 5))

	require.NoError(t, migration.ImportLegacyLedger(ctx, "legacy_ledger"))
	// Rows are imported once.
	require.NoError(t, migration.ImportLegacyLedger(ctx, "legacy_ledger"))

	var txs []entity.BlockchainTransaction
	require.NoError(t, db.Where("gateway_id = ?", "legacy-1").Find(&txs).Error)
	require.Len(t, txs, 1)
	require.Equal(t, entity.BlockchainTransactionStatusTypeCleared, txs[0].Status)
	require.Equal(t, int64(4), txs[0].Nonce.Int64)
	require.Equal(t, "bol-1", txs[0].ExternalReference)

	// A missing legacy table is not an error.
	require.NoError(t, migration.ImportLegacyLedger(ctx, "not_exist"))
}

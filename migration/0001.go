package migration

import (
	"context"
	"fmt"

	"github.com/enfty-lab/gateway/pkg/xcontext"
)

const legacyLedgerTable = "salesforce.enfty_bol_transfer_data__c"

// migrate0001 copies the rows of the legacy transfer log into blockchain_transactions. Rows whose
// gateway id already exists are left untouched.
func migrate0001(ctx context.Context) error {
	return importLegacyLedger(ctx, legacyLedgerTable)
}

func importLegacyLedger(ctx context.Context, table string) error {
	db := xcontext.DB(ctx)
	if !db.Migrator().HasTable(table) {
		xcontext.Logger(ctx).Infof("Legacy table %s does not exist, nothing to import", table)
		return nil
	}

	result := db.Exec(fmt.Sprintf(`
		INSERT INTO blockchain_transactions (
			gateway_id, sent_from, from_address, to_address, token_id, type, external_reference,
			status, last_status_change_at, nonce, tx_hash, error_code, error_message,
			created_at, updated_at
		)
		SELECT
			l.gateway_id__c, l.sent_from__c, COALESCE(l.from_address__c, ''),
			COALESCE(l.to_address__c, ''), COALESCE(l.token_id__c, ''), l.type__c,
			COALESCE(l.bill_of_lading__c, ''), l.status__c, l.last_status_change_date__c,
			l.nonce__c, COALESCE(l.tx_hash__c, ''), COALESCE(l.error_code__c, ''),
			COALESCE(l.error_message__c, ''), l.last_status_change_date__c,
			l.last_status_change_date__c
		FROM %s l
		WHERE l.gateway_id__c NOT IN (SELECT gateway_id FROM blockchain_transactions)`, table))
	if result.Error != nil {
		return result.Error
	}

	xcontext.Logger(ctx).Infof("Imported %d rows from %s", result.RowsAffected, table)
	return nil
}

package testutil

import (
	"context"
	"database/sql"

	"github.com/enfty-lab/gateway/internal/entity"
	"github.com/enfty-lab/gateway/pkg/xcontext"
)

const (
	AddressA = "0x1111111111111111111111111111111111111111"
	AddressB = "0x2222222222222222222222222222222222222222"
)

// InsertTransaction writes tx as-is, bypassing the ledger state machine. It's used to prepare
// records in any status.
func InsertTransaction(ctx context.Context, tx *entity.BlockchainTransaction) *entity.BlockchainTransaction {
	if err := xcontext.DB(ctx).Create(tx).Error; err != nil {
		panic(err)
	}

	return tx
}

func NewTransaction(
	gatewayID, sentFrom string, status entity.BlockchainTransactionStatusType, nonce int64,
) *entity.BlockchainTransaction {
	tx := &entity.BlockchainTransaction{
		GatewayID: gatewayID,
		SentFrom:  sentFrom,
		Type:      entity.BlockchainTransactionTypeMinting,
		Status:    status,
	}

	if nonce >= 0 {
		tx.Nonce = sql.NullInt64{Int64: nonce, Valid: true}
	}

	return tx
}

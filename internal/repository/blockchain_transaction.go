package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/enfty-lab/gateway/internal/entity"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNonceInUse        = errors.New("nonce is already used by another transaction")
)

// ClearedReceipt holds the values confirmed on-chain for a cleared transaction.
type ClearedReceipt struct {
	TxHash      string
	FromAddress string
	ToAddress   string
	TokenID     string
}

type BlockchainTransactionRepository interface {
	Create(ctx context.Context, tx *entity.BlockchainTransaction) error
	GetByGatewayID(ctx context.Context, gatewayID string) (*entity.BlockchainTransaction, error)
	GetByID(ctx context.Context, id uint64) (*entity.BlockchainTransaction, error)

	MarkSent(ctx context.Context, gatewayID, txHash string, nonce uint64) error
	MarkCleared(ctx context.Context, gatewayID string, receipt ClearedReceipt) error
	MarkFailed(ctx context.Context, gatewayID, code, message string) error

	HighestNonce(ctx context.Context, sentFrom string) (int64, bool, error)
	HighestClearedNonce(ctx context.Context, sentFrom string) (int64, bool, error)
	HighestFailedNonce(ctx context.Context, sentFrom string) (int64, bool, error)
	NonceInUse(ctx context.Context, sentFrom string, nonce uint64) (bool, error)
	CountPending(ctx context.Context, sentFrom string) (int64, error)

	CountByStatusOlderThan(
		ctx context.Context, status entity.BlockchainTransactionStatusType, before time.Time,
	) (int64, error)
}

type blockchainTransactionRepository struct{}

func NewBlockchainTransactionRepository() *blockchainTransactionRepository {
	return &blockchainTransactionRepository{}
}

func (r *blockchainTransactionRepository) Create(
	ctx context.Context, tx *entity.BlockchainTransaction,
) error {
	if tx.GatewayID == "" {
		tx.GatewayID = uuid.NewString()
	}

	tx.Status = entity.BlockchainTransactionStatusTypeProcessing
	tx.LastStatusChangeAt = time.Now()
	tx.Nonce = sql.NullInt64{}
	tx.TxHash = ""
	tx.ErrorCode = ""
	tx.ErrorMessage = ""

	return xcontext.DB(ctx).Create(tx).Error
}

func (r *blockchainTransactionRepository) GetByGatewayID(
	ctx context.Context, gatewayID string,
) (*entity.BlockchainTransaction, error) {
	var result entity.BlockchainTransaction
	if err := xcontext.DB(ctx).Take(&result, "gateway_id = ?", gatewayID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *blockchainTransactionRepository) GetByID(
	ctx context.Context, id uint64,
) (*entity.BlockchainTransaction, error) {
	var result entity.BlockchainTransaction
	if err := xcontext.DB(ctx).Take(&result, "id = ?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *blockchainTransactionRepository) MarkSent(
	ctx context.Context, gatewayID, txHash string, nonce uint64,
) error {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	tx, err := r.GetByGatewayID(ctx, gatewayID)
	if err != nil {
		return err
	}

	inUse, err := r.NonceInUse(ctx, tx.SentFrom, nonce)
	if err != nil {
		return err
	}

	if inUse {
		return ErrNonceInUse
	}

	err = r.transition(ctx, gatewayID,
		[]entity.BlockchainTransactionStatusType{entity.BlockchainTransactionStatusTypeProcessing},
		map[string]any{
			"status":  entity.BlockchainTransactionStatusTypeSent,
			"tx_hash": txHash,
			"nonce":   int64(nonce),
		},
	)
	if err != nil {
		return err
	}

	xcontext.WithCommitDBTransaction(ctx)
	return nil
}

func (r *blockchainTransactionRepository) MarkCleared(
	ctx context.Context, gatewayID string, receipt ClearedReceipt,
) error {
	return r.transition(ctx, gatewayID,
		[]entity.BlockchainTransactionStatusType{entity.BlockchainTransactionStatusTypeSent},
		map[string]any{
			"status":       entity.BlockchainTransactionStatusTypeCleared,
			"tx_hash":      receipt.TxHash,
			"from_address": receipt.FromAddress,
			"to_address":   receipt.ToAddress,
			"token_id":     receipt.TokenID,
		},
	)
}

func (r *blockchainTransactionRepository) MarkFailed(
	ctx context.Context, gatewayID, code, message string,
) error {
	return r.transition(ctx, gatewayID,
		[]entity.BlockchainTransactionStatusType{
			entity.BlockchainTransactionStatusTypeProcessing,
			entity.BlockchainTransactionStatusTypeSent,
		},
		map[string]any{
			"status":        entity.BlockchainTransactionStatusTypeFailed,
			"error_code":    code,
			"error_message": message,
		},
	)
}

// transition moves a record to a new status only if its current status is one of from. The update
// is a single conditional statement so that concurrent writers cannot regress a terminal record.
func (r *blockchainTransactionRepository) transition(
	ctx context.Context,
	gatewayID string,
	from []entity.BlockchainTransactionStatusType,
	updates map[string]any,
) error {
	updates["last_status_change_at"] = time.Now()

	result := xcontext.DB(ctx).
		Model(&entity.BlockchainTransaction{}).
		Where("gateway_id = ? AND status IN ?", gatewayID, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	err := xcontext.DB(ctx).
		Model(&entity.BlockchainTransaction{}).
		Where("gateway_id = ?", gatewayID).
		Count(&count).Error
	if err != nil {
		return err
	}

	if count == 0 {
		return gorm.ErrRecordNotFound
	}

	return ErrInvalidTransition
}

func (r *blockchainTransactionRepository) HighestNonce(
	ctx context.Context, sentFrom string,
) (int64, bool, error) {
	return r.highestNonce(ctx, sentFrom)
}

func (r *blockchainTransactionRepository) HighestClearedNonce(
	ctx context.Context, sentFrom string,
) (int64, bool, error) {
	return r.highestNonce(ctx, sentFrom, entity.BlockchainTransactionStatusTypeCleared)
}

func (r *blockchainTransactionRepository) HighestFailedNonce(
	ctx context.Context, sentFrom string,
) (int64, bool, error) {
	return r.highestNonce(ctx, sentFrom, entity.BlockchainTransactionStatusTypeFailed)
}

func (r *blockchainTransactionRepository) highestNonce(
	ctx context.Context, sentFrom string, statuses ...entity.BlockchainTransactionStatusType,
) (int64, bool, error) {
	query := xcontext.DB(ctx).
		Model(&entity.BlockchainTransaction{}).
		Select("MAX(nonce)").
		Where("sent_from = ? AND nonce IS NOT NULL", sentFrom)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var result sql.NullInt64
	if err := query.Row().Scan(&result); err != nil {
		return 0, false, err
	}

	return result.Int64, result.Valid, nil
}

func (r *blockchainTransactionRepository) NonceInUse(
	ctx context.Context, sentFrom string, nonce uint64,
) (bool, error) {
	var count int64
	err := xcontext.DB(ctx).
		Model(&entity.BlockchainTransaction{}).
		Where("sent_from = ? AND nonce = ? AND status IN ?", sentFrom, int64(nonce),
			[]entity.BlockchainTransactionStatusType{
				entity.BlockchainTransactionStatusTypeSent,
				entity.BlockchainTransactionStatusTypeCleared,
			}).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *blockchainTransactionRepository) CountByStatusOlderThan(
	ctx context.Context, status entity.BlockchainTransactionStatusType, before time.Time,
) (int64, error) {
	var count int64
	err := xcontext.DB(ctx).
		Model(&entity.BlockchainTransaction{}).
		Where("status = ? AND last_status_change_at < ?", status, before).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// CountPending counts the transactions of sentFrom which are not settled yet.
func (r *blockchainTransactionRepository) CountPending(ctx context.Context, sentFrom string) (int64, error) {
	var count int64
	err := xcontext.DB(ctx).
		Model(&entity.BlockchainTransaction{}).
		Where("sent_from = ? AND status IN ?", sentFrom, []entity.BlockchainTransactionStatusType{
			entity.BlockchainTransactionStatusTypeProcessing,
			entity.BlockchainTransactionStatusTypeSent,
		}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

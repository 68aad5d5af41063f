package entity

import (
	"database/sql"
	"time"

	"github.com/enfty-lab/gateway/pkg/enum"
)

type BlockchainTransactionStatusType string

var (
	BlockchainTransactionStatusTypeProcessing = enum.New(BlockchainTransactionStatusType("Processing"))
	BlockchainTransactionStatusTypeSent       = enum.New(BlockchainTransactionStatusType("Sent"))
	BlockchainTransactionStatusTypeCleared    = enum.New(BlockchainTransactionStatusType("Cleared"))
	BlockchainTransactionStatusTypeFailed     = enum.New(BlockchainTransactionStatusType("Failed"))
)

// IsTerminal reports whether no further transition is allowed from this status.
func (s BlockchainTransactionStatusType) IsTerminal() bool {
	return s == BlockchainTransactionStatusTypeCleared || s == BlockchainTransactionStatusTypeFailed
}

type BlockchainTransactionType string

var (
	BlockchainTransactionTypeMinting  = enum.New(BlockchainTransactionType("Minting"))
	BlockchainTransactionTypeTransfer = enum.New(BlockchainTransactionType("Transfer"))
	BlockchainTransactionTypeBurn     = enum.New(BlockchainTransactionType("Burn"))
)

type BlockchainTransaction struct {
	Base

	GatewayID         string `gorm:"uniqueIndex;size:36"`
	SentFrom          string `gorm:"index:idx_blockchain_transactions_sent_from_status,priority:1;size:42"`
	FromAddress       string `gorm:"size:42"`
	ToAddress         string `gorm:"size:42"`
	TokenID           string
	Type              BlockchainTransactionType
	ExternalReference string `gorm:"index"`

	Status             BlockchainTransactionStatusType `gorm:"index:idx_blockchain_transactions_sent_from_status,priority:2"`
	LastStatusChangeAt time.Time

	Nonce        sql.NullInt64
	TxHash       string `gorm:"index;size:66"`
	ErrorCode    string
	ErrorMessage string
}

package model

import (
	"time"

	"github.com/enfty-lab/gateway/internal/entity"
)

const DefaultTimeLayout string = time.RFC3339Nano

type Transaction struct {
	ID                 uint64 `json:"id"`
	GatewayID          string `json:"gateway_id"`
	Type               string `json:"type"`
	Status             string `json:"status"`
	SentFrom           string `json:"sent_from"`
	FromAddress        string `json:"from_address,omitempty"`
	ToAddress          string `json:"to_address,omitempty"`
	TokenID            string `json:"token_id,omitempty"`
	BolID              string `json:"bol_id,omitempty"`
	Nonce              *int64 `json:"nonce"`
	TxHash             string `json:"tx_hash,omitempty"`
	ErrorCode          string `json:"error_code,omitempty"`
	ErrorMessage       string `json:"error_message,omitempty"`
	CreatedAt          string `json:"created_at"`
	LastStatusChangeAt string `json:"last_status_change_at"`
}

func ConvertTransaction(tx *entity.BlockchainTransaction) Transaction {
	if tx == nil {
		return Transaction{}
	}

	var nonce *int64
	if tx.Nonce.Valid {
		n := tx.Nonce.Int64
		nonce = &n
	}

	return Transaction{
		ID:                 tx.ID,
		GatewayID:          tx.GatewayID,
		Type:               string(tx.Type),
		Status:             string(tx.Status),
		SentFrom:           tx.SentFrom,
		FromAddress:        tx.FromAddress,
		ToAddress:          tx.ToAddress,
		TokenID:            tx.TokenID,
		BolID:              tx.ExternalReference,
		Nonce:              nonce,
		TxHash:             tx.TxHash,
		ErrorCode:          tx.ErrorCode,
		ErrorMessage:       tx.ErrorMessage,
		CreatedAt:          tx.CreatedAt.Format(DefaultTimeLayout),
		LastStatusChangeAt: tx.LastStatusChangeAt.Format(DefaultTimeLayout),
	}
}

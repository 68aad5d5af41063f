package model

type MintRequest struct {
	RecipientAddress string `json:"recipient_address" validate:"required,eth_addr"`
	TokenHash        string `json:"token_hash" validate:"required"`
	BolID            string `json:"bol_id" validate:"required"`
	Nonce            *int64 `json:"nonce" validate:"omitempty,min=-1"`
}

type MintResponse = EnqueuedTransaction

type TransferRequest struct {
	FromAddress string `json:"from_address" validate:"required,eth_addr"`
	FromPK      string `json:"from_pk" validate:"required"`
	Vector      string `json:"vector" validate:"required,len=16"`
	ToAddress   string `json:"to_address" validate:"required,eth_addr"`
	TokenID     string `json:"token_id" validate:"required,numeric"`
	BolID       string `json:"bol_id" validate:"required"`
	Nonce       *int64 `json:"nonce" validate:"omitempty,min=-1"`
}

type TransferResponse = EnqueuedTransaction

type BurnRequest struct {
	FromAddress string `json:"from_address" validate:"required,eth_addr"`
	FromPK      string `json:"from_pk" validate:"required"`
	Vector      string `json:"vector" validate:"required,len=16"`
	TokenID     string `json:"token_id" validate:"required,numeric"`
	BolID       string `json:"bol_id"`
	Nonce       *int64 `json:"nonce" validate:"omitempty,min=-1"`
}

type BurnResponse = EnqueuedTransaction

// EnqueuedTransaction is returned once a transaction is recorded and its job is published.
type EnqueuedTransaction struct {
	GatewayID   string `json:"gateway_id"`
	PersistedID uint64 `json:"persisted_id"`
	JobEnqueued string `json:"job_enqueued"`
}

type GetTokenURIRequest struct {
	TokenID string `json:"token_id" validate:"required,numeric"`
}

type GetTokenURIResponse struct {
	TokenURI string `json:"token_uri"`
}

type GetTransactionRequest struct {
	GatewayID string `json:"gateway_id"`
	ID        uint64 `json:"id"`
}

type GetTransactionResponse = Transaction

type GetNonceRequest struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

type GetNonceResponse struct {
	Address             string `json:"address"`
	HighestNonce        *int64 `json:"highest_nonce"`
	HighestClearedNonce *int64 `json:"highest_cleared_nonce"`
	HighestFailedNonce  *int64 `json:"highest_failed_nonce"`
	PendingCount        int64  `json:"pending_count"`
}

type AbandonTransactionRequest struct {
	GatewayID string `json:"gateway_id" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

type AbandonTransactionResponse struct{}

type DecryptKeyRequest struct {
	Content string `json:"content" validate:"required"`
	Vector  string `json:"vector" validate:"required,len=16"`
}

type DecryptKeyResponse struct {
	Address string `json:"address"`
}

type HealthRequest struct{}

type HealthResponse struct {
	Status string `json:"status"`
}

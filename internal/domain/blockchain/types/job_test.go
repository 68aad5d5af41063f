package types

import (
	"encoding/json"
	"testing"

	"github.com/enfty-lab/gateway/internal/entity"
	"github.com/stretchr/testify/require"
)

func TestJob_DecodeArgs(t *testing.T) {
	job := NewJob(1, entity.BlockchainTransactionTypeTransfer, "gid", &TransferArgs{
		FromAddress:  "0x1",
		ToAddress:    "0x2",
		TokenID:      "42",
		EncryptedKey: "cipher",
		Vector:       "vector",
		Nonce:        UnsetNonce,
	})

	// Arguments go through the broker as JSON, numbers come back as float64.
	b, err := json.Marshal(job)
	require.NoError(t, err)

	var received Job
	require.NoError(t, json.Unmarshal(b, &received))
	require.Equal(t, entity.BlockchainTransactionTypeTransfer, received.Operation)

	var args TransferArgs
	require.NoError(t, received.DecodeArgs(&args))
	require.Equal(t, "42", args.TokenID)
	require.Equal(t, UnsetNonce, args.Nonce)

	// Arguments of another operation are rejected.
	var mintArgs MintArgs
	require.Error(t, received.DecodeArgs(&mintArgs))
}

func TestChainError(t *testing.T) {
	err := NewChainError(ErrSubmissionRejected, "-32000", "nonce too low")
	require.True(t, IsKind(err, ErrSubmissionRejected))
	require.False(t, IsKind(err, ErrReceiptTimeout))
	require.Equal(t, "SubmissionRejected (-32000): nonce too low", err.Error())

	chainErr, ok := AsChainError(error(err))
	require.True(t, ok)
	require.Equal(t, "-32000", chainErr.Code)
}

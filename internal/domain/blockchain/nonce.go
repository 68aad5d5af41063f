package blockchain

import (
	"context"

	"github.com/enfty-lab/gateway/internal/domain/blockchain/types"
	"github.com/enfty-lab/gateway/internal/repository"
	"github.com/ethereum/go-ethereum/common"
)

type NonceResult struct {
	Nonce uint64
	// Escalate is true when Nonce reuses the nonce of a failed transaction which is still pending on
	// the network, the replacement needs higher fees.
	Escalate bool

	Committed uint64
	Pending   uint64
}

type NonceSequencer struct {
	client NonceReader
	txRepo repository.BlockchainTransactionRepository
}

func NewNonceSequencer(client NonceReader, txRepo repository.BlockchainTransactionRepository) *NonceSequencer {
	return &NonceSequencer{client: client, txRepo: txRepo}
}

// NextNonce decides the nonce of the next transaction sent by address. A non-negative override is
// returned as-is, types.UnsetNonce lets the sequencer decide.
func (s *NonceSequencer) NextNonce(ctx context.Context, address common.Address, override int64) (*NonceResult, error) {
	if override >= 0 {
		return &NonceResult{Nonce: uint64(override)}, nil
	}

	if override != types.UnsetNonce {
		return nil, types.NewChainError(types.ErrInvalidArgument, "", "invalid nonce %d", override)
	}

	committed, err := s.client.NonceAt(ctx, address, nil)
	if err != nil {
		return nil, err
	}

	pending, err := s.client.PendingNonceAt(ctx, address)
	if err != nil {
		return nil, err
	}

	lastCleared, hasCleared, err := s.txRepo.HighestClearedNonce(ctx, address.Hex())
	if err != nil {
		return nil, err
	}

	lastFailed, hasFailed, err := s.txRepo.HighestFailedNonce(ctx, address.Hex())
	if err != nil {
		return nil, err
	}

	result := &NonceResult{Nonce: 1, Committed: committed, Pending: pending}
	if hasCleared {
		result.Nonce = uint64(lastCleared) + 1
	}

	if result.Nonce < pending {
		result.Nonce = pending + 1
	}

	if hasFailed && uint64(lastFailed) == pending {
		result.Nonce = pending
		result.Escalate = true
	}

	return result, nil
}

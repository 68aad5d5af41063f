package blockchain

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/enfty-lab/gateway/internal/domain/blockchain/types"
	"github.com/ethereum/go-ethereum/common"
)

// Contract builds, signs and submits calls to the NFT contract and follows them until mined.
type Contract interface {
	Owner() common.Address
	Mint(ctx context.Context, recipient common.Address, tokenURI string, opts types.TxOpts) (*types.SubmittedTx, error)
	Transfer(
		ctx context.Context,
		from common.Address,
		fromKey *ecdsa.PrivateKey,
		to common.Address,
		tokenID *big.Int,
		opts types.TxOpts,
	) (*types.SubmittedTx, error)
	Burn(
		ctx context.Context,
		from common.Address,
		fromKey *ecdsa.PrivateKey,
		tokenID *big.Int,
		opts types.TxOpts,
	) (*types.SubmittedTx, error)
	TokenURI(ctx context.Context, tokenID *big.Int) (string, error)
	AwaitReceipt(ctx context.Context, txHash common.Hash) (*types.TransferEvent, error)
}

// NonceReader is the part of the chain client needed to sequence nonces.
type NonceReader interface {
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Locker gives mutual exclusion per signing address. The returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context, address common.Address) (func(), error)
}

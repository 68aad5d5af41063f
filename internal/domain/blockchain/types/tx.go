package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// TxOpts are per-submission parameters decided by the caller.
type TxOpts struct {
	Nonce       uint64
	EscalateGas bool
}

type SubmittedTx struct {
	TxHash common.Hash
	Tx     *ethtypes.Transaction
}

// TransferEvent is the decoded Transfer log of a mined transaction, as confirmed on-chain.
type TransferEvent struct {
	TxHash      common.Hash
	From        common.Address
	To          common.Address
	TokenID     *big.Int
	BlockNumber uint64
}

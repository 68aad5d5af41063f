package eth

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"strings"

	"github.com/enfty-lab/gateway/internal/domain/blockchain/types"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

type EthDispatcher struct {
	client EthClient
}

func NewEthDispatcher(client EthClient) *EthDispatcher {
	return &EthDispatcher{client: client}
}

// Dispatch sends a signed transaction to the network on behalf of from.
func (d *EthDispatcher) Dispatch(ctx context.Context, tx *ethtypes.Transaction, from common.Address) error {
	// Check the balance to see if we have enough native token.
	balance, err := d.client.BalanceAt(ctx, from, nil)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get balance for account %s: %v", from, err)
		return submissionError(err)
	}

	minimum := new(big.Int).Mul(tx.GasFeeCap(), new(big.Int).SetUint64(tx.Gas()))
	minimum = minimum.Add(minimum, tx.Value())
	if minimum.Cmp(balance) > 0 {
		return types.NewChainError(types.ErrInsufficientFunds, "",
			"balance smaller than minimum required for this transaction, from = %s, balance = %s, minimum = %s",
			from, balance, minimum)
	}

	err = d.client.SendTransaction(ctx, tx)
	if err == nil {
		xcontext.Logger(ctx).Infof("Tx is dispatched successfully from %s nonce = %d txHash = %s",
			from, tx.Nonce(), tx.Hash())
		return nil
	}

	if strings.Contains(err.Error(), "already known") {
		// This is a tx submission duplication. It's possible that another rpc has received the same
		// transaction before failing over. Ethereum does not return a distinct error code in its
		// JSON RPC, so we have to rely on string matching.
		xcontext.Logger(ctx).Warnf("Tx %s is already known by the network", tx.Hash())
		return nil
	}

	xcontext.Logger(ctx).Errorf("Failed to dispatch tx %s: %v", tx.Hash(), err)

	return submissionError(err)
}

// submissionError keeps the JSON-RPC error code given by the node. Errors which never reached a
// node get code "0".
func submissionError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return types.WrapChainError(types.ErrSubmissionRejected, strconv.Itoa(rpcErr.ErrorCode()), err)
	}

	return types.WrapChainError(types.ErrSubmissionRejected, "0", err)
}

package mocks

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/enfty-lab/gateway/internal/domain/blockchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

type Contract struct {
	mock.Mock
}

func (c *Contract) Owner() common.Address {
	args := c.Called()
	return args.Get(0).(common.Address)
}

func (c *Contract) Mint(
	arg1 context.Context, arg2 common.Address, arg3 string, arg4 types.TxOpts,
) (*types.SubmittedTx, error) {
	args := c.Called(arg1, arg2, arg3, arg4)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SubmittedTx), args.Error(1)
}

func (c *Contract) Transfer(
	arg1 context.Context,
	arg2 common.Address,
	arg3 *ecdsa.PrivateKey,
	arg4 common.Address,
	arg5 *big.Int,
	arg6 types.TxOpts,
) (*types.SubmittedTx, error) {
	args := c.Called(arg1, arg2, arg3, arg4, arg5, arg6)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SubmittedTx), args.Error(1)
}

func (c *Contract) Burn(
	arg1 context.Context, arg2 common.Address, arg3 *ecdsa.PrivateKey, arg4 *big.Int, arg5 types.TxOpts,
) (*types.SubmittedTx, error) {
	args := c.Called(arg1, arg2, arg3, arg4, arg5)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SubmittedTx), args.Error(1)
}

func (c *Contract) TokenURI(arg1 context.Context, arg2 *big.Int) (string, error) {
	args := c.Called(arg1, arg2)
	return args.String(0), args.Error(1)
}

func (c *Contract) AwaitReceipt(arg1 context.Context, arg2 common.Hash) (*types.TransferEvent, error) {
	args := c.Called(arg1, arg2)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.TransferEvent), args.Error(1)
}

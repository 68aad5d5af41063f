package domain

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/enfty-lab/gateway/internal/domain/blockchain/types"
	"github.com/enfty-lab/gateway/internal/entity"
	"github.com/enfty-lab/gateway/internal/model"
	"github.com/enfty-lab/gateway/internal/repository"
	"github.com/enfty-lab/gateway/mocks"
	"github.com/enfty-lab/gateway/pkg/api/ipfs"
	"github.com/enfty-lab/gateway/pkg/crypto"
	"github.com/enfty-lab/gateway/pkg/errorx"
	"github.com/enfty-lab/gateway/pkg/pubsub"
	"github.com/enfty-lab/gateway/pkg/testutil"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testTokenHash = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	testVector    = "abcdef0123456789"
	testBlock     = `data:{"bol":"42"}`
)

var owner = common.HexToAddress(testutil.OwnerAccount)

type transactionSuite struct {
	domain    *transactionDomain
	contract  *mocks.Contract
	client    *mocks.EthClient
	ipfs      *mocks.IPFSEndpoint
	publisher *mocks.Publisher

	topic string
	pack  *pubsub.Pack
}

func newTransactionSuite(balance *big.Int, publishErr error) *transactionSuite {
	s := &transactionSuite{
		contract:  &mocks.Contract{},
		client:    &mocks.EthClient{},
		ipfs:      &mocks.IPFSEndpoint{},
		publisher: &mocks.Publisher{},
	}

	s.contract.On("Owner").Return(owner)
	s.client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(balance, nil)
	s.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			s.topic = args.String(1)
			s.pack = args.Get(2).(*pubsub.Pack)
		}).
		Return(publishErr)

	s.domain = NewTransactionDomain(
		repository.NewBlockchainTransactionRepository(),
		s.contract,
		s.client,
		s.ipfs,
		s.publisher,
		big.NewInt(200000),
	)

	return s
}

func (s *transactionSuite) job(t *testing.T) *types.Job {
	require.NotNil(t, s.pack)

	var job types.Job
	require.NoError(t, json.Unmarshal(s.pack.Msg, &job))
	return &job
}

func requireErrorCode(t *testing.T, err error, code errorx.Code) {
	var errx errorx.Error
	require.True(t, errors.As(err, &errx), "unexpected error %v", err)
	require.Equal(t, code, errx.Code, errx.Message)
}

func countTransactions(t *testing.T, ctx context.Context) int64 {
	var count int64
	require.NoError(t, xcontext.DB(ctx).Model(&entity.BlockchainTransaction{}).Count(&count).Error)
	return count
}

func encryptedOwnerKey(t *testing.T) string {
	encrypted, err := crypto.EncryptAESCBC(testutil.OwnerKey, testutil.AESKey, testVector)
	require.NoError(t, err)
	return encrypted
}

func int64Ptr(v int64) *int64 {
	return &v
}

func Test_transactionDomain_Mint(t *testing.T) {
	ctx := testutil.MockContext()
	s := newTransactionSuite(big.NewInt(1e18), nil)
	s.ipfs.On("BlockGet", mock.Anything, testTokenHash).Return([]byte(testBlock), nil)

	resp, err := s.domain.Mint(ctx, &model.MintRequest{
		RecipientAddress: " " + testutil.AddressB + " ",
		TokenHash:        testTokenHash,
		BolID:            "bol-1",
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.JobEnqueued)
	require.NotZero(t, resp.PersistedID)

	tx, err := repository.NewBlockchainTransactionRepository().GetByGatewayID(ctx, resp.GatewayID)
	require.NoError(t, err)
	require.Equal(t, resp.PersistedID, tx.ID)
	require.Equal(t, entity.BlockchainTransactionStatusTypeProcessing, tx.Status)
	require.Equal(t, entity.BlockchainTransactionTypeMinting, tx.Type)
	require.Equal(t, owner.Hex(), tx.SentFrom)
	require.Equal(t, common.HexToAddress(testutil.AddressB).Hex(), tx.ToAddress)
	require.Equal(t, "bol-1", tx.ExternalReference)

	require.Equal(t, "gateway.high", s.topic)
	require.Equal(t, owner.Hex(), string(s.pack.Key))

	job := s.job(t)
	require.Equal(t, resp.GatewayID, job.GatewayID)
	require.Equal(t, entity.BlockchainTransactionTypeMinting, job.Operation)

	var args types.MintArgs
	require.NoError(t, job.DecodeArgs(&args))
	require.Equal(t, testBlock, args.TokenURI)
	require.Equal(t, common.HexToAddress(testutil.AddressB).Hex(), args.Recipient)
	require.Equal(t, types.UnsetNonce, args.Nonce)
}

func Test_transactionDomain_Mint_rejected(t *testing.T) {
	tests := []struct {
		name       string
		req        *model.MintRequest
		balance    *big.Int
		blockErr   error
		wantCode   errorx.Code
		wantNoIPFS bool
	}{
		{
			name:       "invalid recipient",
			req:        &model.MintRequest{RecipientAddress: "0x123", TokenHash: testTokenHash, BolID: "bol"},
			balance:    big.NewInt(1e18),
			wantCode:   errorx.InvalidArgument,
			wantNoIPFS: true,
		},
		{
			name:       "missing bol id",
			req:        &model.MintRequest{RecipientAddress: testutil.AddressB, TokenHash: testTokenHash, BolID: "  "},
			balance:    big.NewInt(1e18),
			wantCode:   errorx.InvalidArgument,
			wantNoIPFS: true,
		},
		{
			name: "nonce below -1",
			req: &model.MintRequest{
				RecipientAddress: testutil.AddressB, TokenHash: testTokenHash, BolID: "bol", Nonce: int64Ptr(-2),
			},
			balance:    big.NewInt(1e18),
			wantCode:   errorx.InvalidArgument,
			wantNoIPFS: true,
		},
		{
			name:       "owner has no funds",
			req:        &model.MintRequest{RecipientAddress: testutil.AddressB, TokenHash: testTokenHash, BolID: "bol"},
			balance:    big.NewInt(0),
			wantCode:   errorx.InsufficientFunds,
			wantNoIPFS: true,
		},
		{
			name:       "invalid token hash",
			req:        &model.MintRequest{RecipientAddress: testutil.AddressB, TokenHash: "not-a-cid", BolID: "bol"},
			balance:    big.NewInt(1e18),
			wantCode:   errorx.InvalidArgument,
			wantNoIPFS: true,
		},
		{
			name:     "token not on ipfs",
			req:      &model.MintRequest{RecipientAddress: testutil.AddressB, TokenHash: testTokenHash, BolID: "bol"},
			balance:  big.NewInt(1e18),
			blockErr: ipfs.ErrBlockNotFound,
			wantCode: errorx.BadRequest,
		},
		{
			name:     "ipfs unreachable",
			req:      &model.MintRequest{RecipientAddress: testutil.AddressB, TokenHash: testTokenHash, BolID: "bol"},
			balance:  big.NewInt(1e18),
			blockErr: errors.New("connection refused"),
			wantCode: errorx.Unavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.MockContext()
			s := newTransactionSuite(tt.balance, nil)
			s.ipfs.On("BlockGet", mock.Anything, mock.Anything).Return(nil, tt.blockErr)

			_, err := s.domain.Mint(ctx, tt.req)
			requireErrorCode(t, err, tt.wantCode)
			require.Zero(t, countTransactions(t, ctx))
			s.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)

			if tt.wantNoIPFS {
				s.ipfs.AssertNotCalled(t, "BlockGet", mock.Anything, mock.Anything)
			}
		})
	}
}

func Test_transactionDomain_Mint_publishFailed(t *testing.T) {
	ctx := testutil.MockContext()
	s := newTransactionSuite(big.NewInt(1e18), errors.New("broker down"))
	s.ipfs.On("BlockGet", mock.Anything, testTokenHash).Return([]byte(testBlock), nil)

	_, err := s.domain.Mint(ctx, &model.MintRequest{
		RecipientAddress: testutil.AddressB,
		TokenHash:        testTokenHash,
		BolID:            "bol",
	})
	requireErrorCode(t, err, errorx.Unavailable)

	var tx entity.BlockchainTransaction
	require.NoError(t, xcontext.DB(ctx).First(&tx).Error)
	require.Equal(t, entity.BlockchainTransactionStatusTypeFailed, tx.Status)
}

func Test_transactionDomain_Transfer(t *testing.T) {
	tests := []struct {
		name        string
		fromAddress string
		balance     *big.Int
		nonce       *int64
		wantCode    errorx.Code
	}{
		{name: "happy case", fromAddress: testutil.OwnerAccount, balance: big.NewInt(1e18), nonce: int64Ptr(4)},
		{name: "key of another account", fromAddress: testutil.AddressA, balance: big.NewInt(1e18), wantCode: errorx.BadRequest},
		{name: "no funds", fromAddress: testutil.OwnerAccount, balance: big.NewInt(200000), wantCode: errorx.InsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.MockContext()
			s := newTransactionSuite(tt.balance, nil)

			resp, err := s.domain.Transfer(ctx, &model.TransferRequest{
				FromAddress: tt.fromAddress,
				FromPK:      encryptedOwnerKey(t),
				Vector:      testVector,
				ToAddress:   testutil.AddressB,
				TokenID:     "7",
				BolID:       "bol",
				Nonce:       tt.nonce,
			})
			if tt.wantCode != 0 {
				requireErrorCode(t, err, tt.wantCode)
				require.Zero(t, countTransactions(t, ctx))
				return
			}

			require.NoError(t, err)

			tx, err := repository.NewBlockchainTransactionRepository().GetByGatewayID(ctx, resp.GatewayID)
			require.NoError(t, err)
			require.Equal(t, entity.BlockchainTransactionTypeTransfer, tx.Type)
			require.Equal(t, owner.Hex(), tx.SentFrom)
			require.Equal(t, owner.Hex(), tx.FromAddress)
			require.Equal(t, "7", tx.TokenID)

			require.Equal(t, "gateway.high", s.topic)

			var args types.TransferArgs
			require.NoError(t, s.job(t).DecodeArgs(&args))
			require.Equal(t, int64(4), args.Nonce)
			require.Equal(t, testVector, args.Vector)
			require.NotContains(t, string(s.pack.Msg), testutil.OwnerKey)
		})
	}
}

func Test_transactionDomain_Burn(t *testing.T) {
	t.Run("happy case", func(t *testing.T) {
		ctx := testutil.MockContext()
		s := newTransactionSuite(big.NewInt(1e18), nil)
		s.contract.On("TokenURI", mock.Anything, big.NewInt(9)).Return(`{"a":1}`, nil)

		resp, err := s.domain.Burn(ctx, &model.BurnRequest{
			FromAddress: testutil.OwnerAccount,
			FromPK:      encryptedOwnerKey(t),
			Vector:      testVector,
			TokenID:     "9",
		})
		require.NoError(t, err)
		require.Equal(t, "gateway.low", s.topic)

		tx, err := repository.NewBlockchainTransactionRepository().GetByGatewayID(ctx, resp.GatewayID)
		require.NoError(t, err)
		require.Equal(t, entity.BlockchainTransactionTypeBurn, tx.Type)
		require.Empty(t, tx.ToAddress)
	})

	t.Run("token does not exist", func(t *testing.T) {
		ctx := testutil.MockContext()
		s := newTransactionSuite(big.NewInt(1e18), nil)
		s.contract.On("TokenURI", mock.Anything, big.NewInt(9)).
			Return("", types.NewChainError(types.ErrContractLogic, "", "execution reverted"))

		_, err := s.domain.Burn(ctx, &model.BurnRequest{
			FromAddress: testutil.OwnerAccount,
			FromPK:      encryptedOwnerKey(t),
			Vector:      testVector,
			TokenID:     "9",
		})
		requireErrorCode(t, err, errorx.BlockchainError)
		require.Zero(t, countTransactions(t, ctx))
	})
}

func Test_transactionDomain_GetTokenURI(t *testing.T) {
	ctx := testutil.MockContext()
	s := newTransactionSuite(big.NewInt(1e18), nil)
	s.contract.On("TokenURI", mock.Anything, big.NewInt(1)).Return(`{"a":1}`, nil)
	s.contract.On("TokenURI", mock.Anything, big.NewInt(2)).
		Return("", types.NewChainError(types.ErrContractLogic, "", "execution reverted"))

	resp, err := s.domain.GetTokenURI(ctx, &model.GetTokenURIRequest{TokenID: "1"})
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, resp.TokenURI)

	_, err = s.domain.GetTokenURI(ctx, &model.GetTokenURIRequest{TokenID: "2"})
	requireErrorCode(t, err, errorx.BlockchainError)

	_, err = s.domain.GetTokenURI(ctx, &model.GetTokenURIRequest{TokenID: "abc"})
	requireErrorCode(t, err, errorx.InvalidArgument)

	require.Zero(t, countTransactions(t, ctx))
}

func Test_transactionDomain_GetTransaction(t *testing.T) {
	ctx := testutil.MockContext()
	s := newTransactionSuite(big.NewInt(1e18), nil)
	tx := testutil.InsertTransaction(ctx, testutil.NewTransaction(
		"gw", owner.Hex(), entity.BlockchainTransactionStatusTypeSent, 3))

	tests := []struct {
		name     string
		req      *model.GetTransactionRequest
		wantCode errorx.Code
	}{
		{name: "by gateway id", req: &model.GetTransactionRequest{GatewayID: "gw"}},
		{name: "by id", req: &model.GetTransactionRequest{ID: tx.ID}},
		{name: "not found", req: &model.GetTransactionRequest{GatewayID: "unknown"}, wantCode: errorx.NotFound},
		{name: "no identifier", req: &model.GetTransactionRequest{}, wantCode: errorx.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.domain.GetTransaction(ctx, tt.req)
			if tt.wantCode != 0 {
				requireErrorCode(t, err, tt.wantCode)
				return
			}

			require.NoError(t, err)
			require.Equal(t, "gw", resp.GatewayID)
			require.Equal(t, "Sent", resp.Status)
			require.Equal(t, int64(3), *resp.Nonce)
		})
	}
}

func Test_transactionDomain_GetNonce(t *testing.T) {
	ctx := testutil.MockContext()
	s := newTransactionSuite(big.NewInt(1e18), nil)
	testutil.InsertTransaction(ctx, testutil.NewTransaction("a", owner.Hex(), entity.BlockchainTransactionStatusTypeCleared, 2))
	testutil.InsertTransaction(ctx, testutil.NewTransaction("b", owner.Hex(), entity.BlockchainTransactionStatusTypeSent, 3))
	testutil.InsertTransaction(ctx, testutil.NewTransaction("c", owner.Hex(), entity.BlockchainTransactionStatusTypeProcessing, -1))

	resp, err := s.domain.GetNonce(ctx, &model.GetNonceRequest{Address: testutil.OwnerAccount})
	require.NoError(t, err)
	require.Equal(t, owner.Hex(), resp.Address)
	require.Equal(t, int64(3), *resp.HighestNonce)
	require.Equal(t, int64(2), *resp.HighestClearedNonce)
	require.Nil(t, resp.HighestFailedNonce)
	require.Equal(t, int64(2), resp.PendingCount)

	_, err = s.domain.GetNonce(ctx, &model.GetNonceRequest{Address: "abc"})
	requireErrorCode(t, err, errorx.InvalidArgument)
}

func Test_transactionDomain_AbandonTransaction(t *testing.T) {
	ctx := testutil.MockContext()
	s := newTransactionSuite(big.NewInt(1e18), nil)
	testutil.InsertTransaction(ctx, testutil.NewTransaction("sent", owner.Hex(), entity.BlockchainTransactionStatusTypeSent, 3))
	testutil.InsertTransaction(ctx, testutil.NewTransaction("cleared", owner.Hex(), entity.BlockchainTransactionStatusTypeCleared, 2))

	_, err := s.domain.AbandonTransaction(ctx, &model.AbandonTransactionRequest{GatewayID: "sent", Reason: "stuck"})
	require.NoError(t, err)

	tx, err := repository.NewBlockchainTransactionRepository().GetByGatewayID(ctx, "sent")
	require.NoError(t, err)
	require.Equal(t, entity.BlockchainTransactionStatusTypeFailed, tx.Status)
	require.Equal(t, "abandoned", tx.ErrorCode)
	require.Equal(t, "stuck", tx.ErrorMessage)
	require.Equal(t, int64(3), tx.Nonce.Int64)

	_, err = s.domain.AbandonTransaction(ctx, &model.AbandonTransactionRequest{GatewayID: "cleared", Reason: "stuck"})
	requireErrorCode(t, err, errorx.BadRequest)

	_, err = s.domain.AbandonTransaction(ctx, &model.AbandonTransactionRequest{GatewayID: "unknown", Reason: "stuck"})
	requireErrorCode(t, err, errorx.NotFound)

	_, err = s.domain.AbandonTransaction(ctx, &model.AbandonTransactionRequest{GatewayID: "sent"})
	requireErrorCode(t, err, errorx.InvalidArgument)
}

func Test_transactionDomain_DecryptKey(t *testing.T) {
	ctx := testutil.MockContext()
	s := newTransactionSuite(big.NewInt(1e18), nil)

	resp, err := s.domain.DecryptKey(ctx, &model.DecryptKeyRequest{Content: encryptedOwnerKey(t), Vector: testVector})
	require.NoError(t, err)
	require.Equal(t, owner.Hex(), resp.Address)

	_, err = s.domain.DecryptKey(ctx, &model.DecryptKeyRequest{Content: "garbage", Vector: testVector})
	requireErrorCode(t, err, errorx.BadRequest)
}

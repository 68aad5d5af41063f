package domain

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/enfty-lab/gateway/internal/domain/blockchain"
	"github.com/enfty-lab/gateway/internal/domain/blockchain/types"
	"github.com/enfty-lab/gateway/internal/entity"
	"github.com/enfty-lab/gateway/internal/model"
	"github.com/enfty-lab/gateway/internal/repository"
	"github.com/enfty-lab/gateway/pkg/api/ipfs"
	"github.com/enfty-lab/gateway/pkg/errorx"
	"github.com/enfty-lab/gateway/pkg/ethutil"
	"github.com/enfty-lab/gateway/pkg/pubsub"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	jobEnqueued        = "ok"
	abandonedErrorCode = "abandoned"
	enqueueErrorCode   = "0"
)

type TransactionDomain interface {
	Health(context.Context, *model.HealthRequest) (*model.HealthResponse, error)
	Mint(context.Context, *model.MintRequest) (*model.MintResponse, error)
	Transfer(context.Context, *model.TransferRequest) (*model.TransferResponse, error)
	Burn(context.Context, *model.BurnRequest) (*model.BurnResponse, error)
	GetTokenURI(context.Context, *model.GetTokenURIRequest) (*model.GetTokenURIResponse, error)
	GetTransaction(context.Context, *model.GetTransactionRequest) (*model.GetTransactionResponse, error)
	GetNonce(context.Context, *model.GetNonceRequest) (*model.GetNonceResponse, error)
	AbandonTransaction(context.Context, *model.AbandonTransactionRequest) (*model.AbandonTransactionResponse, error)
	DecryptKey(context.Context, *model.DecryptKeyRequest) (*model.DecryptKeyResponse, error)
}

// BalanceReader is the part of the chain client needed to check the funds of a signing account.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type transactionDomain struct {
	txRepo       repository.BlockchainTransactionRepository
	contract     blockchain.Contract
	balances     BalanceReader
	ipfsEndpoint ipfs.IEndpoint
	publisher    pubsub.Publisher
	validate     *validator.Validate
	minBalance   *big.Int
}

func NewTransactionDomain(
	txRepo repository.BlockchainTransactionRepository,
	contract blockchain.Contract,
	balances BalanceReader,
	ipfsEndpoint ipfs.IEndpoint,
	publisher pubsub.Publisher,
	minBalance *big.Int,
) *transactionDomain {
	return &transactionDomain{
		txRepo:       txRepo,
		contract:     contract,
		balances:     balances,
		ipfsEndpoint: ipfsEndpoint,
		publisher:    publisher,
		validate:     NewValidator(),
		minBalance:   minBalance,
	}
}

func (d *transactionDomain) Health(
	ctx context.Context, req *model.HealthRequest,
) (*model.HealthResponse, error) {
	return &model.HealthResponse{Status: "ok"}, nil
}

func (d *transactionDomain) Mint(
	ctx context.Context, req *model.MintRequest,
) (*model.MintResponse, error) {
	sanitize(&req.RecipientAddress, &req.TokenHash, &req.BolID)
	if err := validateRequest(ctx, d.validate, req); err != nil {
		return nil, err
	}

	owner := d.contract.Owner()
	if err := d.checkMinimumBalance(ctx, owner); err != nil {
		return nil, err
	}

	if !ethutil.IsIpfsHash(req.TokenHash) {
		return nil, errorx.New(errorx.InvalidArgument, "Token hash is not a valid ipfs hash")
	}

	block, err := d.ipfsEndpoint.BlockGet(ctx, req.TokenHash)
	if err != nil {
		if errors.Is(err, ipfs.ErrBlockNotFound) {
			return nil, errorx.New(errorx.BadRequest, "Token not found on IPFS host")
		}

		xcontext.Logger(ctx).Errorf("Cannot get block %s from ipfs: %v", req.TokenHash, err)
		return nil, errorx.New(errorx.Unavailable, "IPFS host is unavailable")
	}

	recipient := common.HexToAddress(req.RecipientAddress)
	tx := &entity.BlockchainTransaction{
		SentFrom:          owner.Hex(),
		ToAddress:         recipient.Hex(),
		Type:              entity.BlockchainTransactionTypeMinting,
		ExternalReference: req.BolID,
	}

	args := &types.MintArgs{
		Recipient: recipient.Hex(),
		TokenURI:  string(block),
		Nonce:     nonceOf(req.Nonce),
	}

	return d.enqueue(ctx, tx, args, xcontext.Configs(ctx).Kafka.HighTopic)
}

func (d *transactionDomain) Transfer(
	ctx context.Context, req *model.TransferRequest,
) (*model.TransferResponse, error) {
	sanitize(&req.FromAddress, &req.FromPK, &req.Vector, &req.ToAddress, &req.TokenID, &req.BolID)
	if err := validateRequest(ctx, d.validate, req); err != nil {
		return nil, err
	}

	from, err := d.checkSigner(ctx, req.FromAddress, req.FromPK, req.Vector)
	if err != nil {
		return nil, err
	}

	if err := d.checkMinimumBalance(ctx, from); err != nil {
		return nil, err
	}

	to := common.HexToAddress(req.ToAddress)
	tx := &entity.BlockchainTransaction{
		SentFrom:          from.Hex(),
		FromAddress:       from.Hex(),
		ToAddress:         to.Hex(),
		TokenID:           req.TokenID,
		Type:              entity.BlockchainTransactionTypeTransfer,
		ExternalReference: req.BolID,
	}

	args := &types.TransferArgs{
		FromAddress:  from.Hex(),
		ToAddress:    to.Hex(),
		TokenID:      req.TokenID,
		EncryptedKey: req.FromPK,
		Vector:       req.Vector,
		Nonce:        nonceOf(req.Nonce),
	}

	return d.enqueue(ctx, tx, args, xcontext.Configs(ctx).Kafka.HighTopic)
}

func (d *transactionDomain) Burn(
	ctx context.Context, req *model.BurnRequest,
) (*model.BurnResponse, error) {
	sanitize(&req.FromAddress, &req.FromPK, &req.Vector, &req.TokenID, &req.BolID)
	if err := validateRequest(ctx, d.validate, req); err != nil {
		return nil, err
	}

	from, err := d.checkSigner(ctx, req.FromAddress, req.FromPK, req.Vector)
	if err != nil {
		return nil, err
	}

	if err := d.checkMinimumBalance(ctx, from); err != nil {
		return nil, err
	}

	if _, err := d.tokenURI(ctx, req.TokenID); err != nil {
		return nil, errorx.New(errorx.BlockchainError,
			"Smart contract returned exception, possibly trying to burn a non-existing token: %v", err)
	}

	tx := &entity.BlockchainTransaction{
		SentFrom:          from.Hex(),
		FromAddress:       from.Hex(),
		TokenID:           req.TokenID,
		Type:              entity.BlockchainTransactionTypeBurn,
		ExternalReference: req.BolID,
	}

	args := &types.BurnArgs{
		FromAddress:  from.Hex(),
		TokenID:      req.TokenID,
		EncryptedKey: req.FromPK,
		Vector:       req.Vector,
		Nonce:        nonceOf(req.Nonce),
	}

	return d.enqueue(ctx, tx, args, xcontext.Configs(ctx).Kafka.LowTopic)
}

func (d *transactionDomain) GetTokenURI(
	ctx context.Context, req *model.GetTokenURIRequest,
) (*model.GetTokenURIResponse, error) {
	sanitize(&req.TokenID)
	if err := validateRequest(ctx, d.validate, req); err != nil {
		return nil, err
	}

	uri, err := d.tokenURI(ctx, req.TokenID)
	if err != nil {
		return nil, errorx.New(errorx.BlockchainError, "Smart contract returned exception: %v", err)
	}

	return &model.GetTokenURIResponse{TokenURI: uri}, nil
}

func (d *transactionDomain) GetTransaction(
	ctx context.Context, req *model.GetTransactionRequest,
) (*model.GetTransactionResponse, error) {
	sanitize(&req.GatewayID)

	var tx *entity.BlockchainTransaction
	var err error
	switch {
	case req.GatewayID != "":
		tx, err = d.txRepo.GetByGatewayID(ctx, req.GatewayID)
	case req.ID != 0:
		tx, err = d.txRepo.GetByID(ctx, req.ID)
	default:
		return nil, errorx.New(errorx.InvalidArgument, "Missing parameter gateway_id or id")
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found transaction")
		}

		xcontext.Logger(ctx).Errorf("Cannot get transaction: %v", err)
		return nil, errorx.Unknown
	}

	resp := model.ConvertTransaction(tx)
	return &resp, nil
}

func (d *transactionDomain) GetNonce(
	ctx context.Context, req *model.GetNonceRequest,
) (*model.GetNonceResponse, error) {
	sanitize(&req.Address)
	if err := validateRequest(ctx, d.validate, req); err != nil {
		return nil, err
	}

	address := common.HexToAddress(req.Address).Hex()
	resp := &model.GetNonceResponse{Address: address}

	lookups := []struct {
		get func(context.Context, string) (int64, bool, error)
		out **int64
	}{
		{get: d.txRepo.HighestNonce, out: &resp.HighestNonce},
		{get: d.txRepo.HighestClearedNonce, out: &resp.HighestClearedNonce},
		{get: d.txRepo.HighestFailedNonce, out: &resp.HighestFailedNonce},
	}

	for _, lookup := range lookups {
		nonce, ok, err := lookup.get(ctx, address)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot get nonce of %s: %v", address, err)
			return nil, errorx.Unknown
		}

		if ok {
			*lookup.out = &nonce
		}
	}

	pending, err := d.txRepo.CountPending(ctx, address)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot count pending transactions of %s: %v", address, err)
		return nil, errorx.Unknown
	}
	resp.PendingCount = pending

	return resp, nil
}

func (d *transactionDomain) AbandonTransaction(
	ctx context.Context, req *model.AbandonTransactionRequest,
) (*model.AbandonTransactionResponse, error) {
	sanitize(&req.GatewayID, &req.Reason)
	if err := validateRequest(ctx, d.validate, req); err != nil {
		return nil, err
	}

	err := d.txRepo.MarkFailed(ctx, req.GatewayID, abandonedErrorCode, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, errorx.New(errorx.NotFound, "Not found transaction")
		case errors.Is(err, repository.ErrInvalidTransition):
			return nil, errorx.New(errorx.BadRequest, "Transaction is already settled")
		default:
			xcontext.Logger(ctx).Errorf("Cannot abandon transaction %s: %v", req.GatewayID, err)
			return nil, errorx.Unknown
		}
	}

	xcontext.Logger(ctx).Warnf("Transaction %s is abandoned by %s: %s",
		req.GatewayID, xcontext.RequestUserID(ctx), req.Reason)

	return &model.AbandonTransactionResponse{}, nil
}

func (d *transactionDomain) DecryptKey(
	ctx context.Context, req *model.DecryptKeyRequest,
) (*model.DecryptKeyResponse, error) {
	sanitize(&req.Content, &req.Vector)
	if err := validateRequest(ctx, d.validate, req); err != nil {
		return nil, err
	}

	key, err := ethutil.DecryptPrivateKey(req.Content, xcontext.Configs(ctx).AESKey, req.Vector)
	if err != nil {
		xcontext.Logger(ctx).Debugf("Cannot decrypt private key: %v", err)
		return nil, errorx.New(errorx.BadRequest, "Cannot decrypt the private key")
	}

	return &model.DecryptKeyResponse{Address: ethutil.AddressOf(key).Hex()}, nil
}

// checkSigner decrypts the key of a request and returns the address it signs for.
func (d *transactionDomain) checkSigner(
	ctx context.Context, address, encryptedKey, vector string,
) (common.Address, error) {
	key, err := ethutil.DecryptPrivateKeyOf(address, encryptedKey, xcontext.Configs(ctx).AESKey, vector)
	if err != nil {
		xcontext.Logger(ctx).Debugf("Cannot decrypt private key of %s: %v", address, err)
		return common.Address{}, errorx.New(errorx.BadRequest, "The private key cannot be decrypted or does not belong to %s", address)
	}

	return ethutil.AddressOf(key), nil
}

func (d *transactionDomain) checkMinimumBalance(ctx context.Context, address common.Address) error {
	balance, err := d.balances.BalanceAt(ctx, address, nil)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get balance of %s: %v", address.Hex(), err)
		return errorx.New(errorx.Unavailable, "Cannot reach the blockchain network")
	}

	if balance.Cmp(d.minBalance) <= 0 {
		return errorx.New(errorx.InsufficientFunds, "The sender account has no funds or does not exist")
	}

	return nil
}

func (d *transactionDomain) tokenURI(ctx context.Context, tokenID string) (string, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return "", errorx.New(errorx.InvalidArgument, "Invalid token id %s", tokenID)
	}

	return d.contract.TokenURI(ctx, id)
}

// enqueue records tx and publishes its job. The record exists before any worker can see the job.
func (d *transactionDomain) enqueue(
	ctx context.Context, tx *entity.BlockchainTransaction, args any, topic string,
) (*model.EnqueuedTransaction, error) {
	if err := d.txRepo.Create(ctx, tx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create transaction: %v", err)
		return nil, errorx.Unknown
	}

	job := types.NewJob(xcontext.SnowFlake(ctx).Generate().Int64(), tx.Type, tx.GatewayID, args)
	b, err := json.Marshal(job)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot marshal job: %v", err)
		return nil, errorx.Unknown
	}

	err = d.publisher.Publish(ctx, topic, &pubsub.Pack{Key: []byte(tx.SentFrom), Msg: b})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot publish job of transaction %s: %v", tx.GatewayID, err)
		if err := d.txRepo.MarkFailed(ctx, tx.GatewayID, enqueueErrorCode, "cannot enqueue job"); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot mark transaction %s as failed: %v", tx.GatewayID, err)
		}

		return nil, errorx.New(errorx.Unavailable, "Cannot enqueue the transaction")
	}

	xcontext.Logger(ctx).Infof("Enqueued %s transaction %s on %s", tx.Type, tx.GatewayID, topic)

	return &model.EnqueuedTransaction{
		GatewayID:   tx.GatewayID,
		PersistedID: tx.ID,
		JobEnqueued: jobEnqueued,
	}, nil
}

func nonceOf(nonce *int64) int64 {
	if nonce == nil {
		return types.UnsetNonce
	}

	return *nonce
}

package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/enfty-lab/gateway/config"
	"github.com/enfty-lab/gateway/internal/domain/blockchain/types"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/ssgreg/repeat"
)

const (
	defaultEscalationMultiplier = "1.2"
	defaultReceiptPollInterval  = 500 * time.Millisecond
	defaultReceiptTimeout       = 120 * time.Second
)

// The metadata stored by the contract is wrapped into a longer string, the first JSON object
// inside it is the token uri.
var metadataRegexp = regexp.MustCompile(`\{.+\}`)

type EnftyContract struct {
	client     EthClient
	dispatcher *EthDispatcher

	abi     abi.ABI
	address common.Address
	chainID *big.Int

	ownerKey *ecdsa.PrivateKey
	owner    common.Address

	// Fee caps in wei.
	maxFee     decimal.Decimal
	maxTip     decimal.Decimal
	multiplier decimal.Decimal
	gasLimit   uint64

	pollInterval   time.Duration
	receiptTimeout time.Duration
}

func NewEnftyContract(client EthClient, cfg config.EthConfigs) (*EnftyContract, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	contractABI, err := LoadABI(cfg.ContractABI)
	if err != nil {
		return nil, fmt.Errorf("cannot load contract abi: %w", err)
	}

	ownerKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.OwnerKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid owner key: %w", err)
	}

	owner := crypto.PubkeyToAddress(ownerKey.PublicKey)
	if cfg.OwnerAccount != "" && !strings.EqualFold(cfg.OwnerAccount, owner.Hex()) {
		return nil, fmt.Errorf("owner key does not belong to %s", cfg.OwnerAccount)
	}

	maxFee, err := gweiToWei(cfg.MaxFeePerGas)
	if err != nil {
		return nil, fmt.Errorf("invalid max fee per gas: %w", err)
	}

	maxTip, err := gweiToWei(cfg.MaxPriorityFeePerGas)
	if err != nil {
		return nil, fmt.Errorf("invalid max priority fee per gas: %w", err)
	}

	if cfg.GasEscalationMultiplier == "" {
		cfg.GasEscalationMultiplier = defaultEscalationMultiplier
	}

	multiplier, err := decimal.NewFromString(cfg.GasEscalationMultiplier)
	if err != nil {
		return nil, fmt.Errorf("invalid gas escalation multiplier: %w", err)
	}

	contract := &EnftyContract{
		client:         client,
		dispatcher:     NewEthDispatcher(client),
		abi:            contractABI,
		address:        common.HexToAddress(cfg.ContractAddress),
		chainID:        big.NewInt(cfg.ChainID),
		ownerKey:       ownerKey,
		owner:          owner,
		maxFee:         maxFee,
		maxTip:         maxTip,
		multiplier:     multiplier,
		gasLimit:       cfg.GasLimit,
		pollInterval:   cfg.ReceiptPollInterval,
		receiptTimeout: cfg.ReceiptTimeout,
	}

	if contract.pollInterval <= 0 {
		contract.pollInterval = defaultReceiptPollInterval
	}

	if contract.receiptTimeout <= 0 {
		contract.receiptTimeout = defaultReceiptTimeout
	}

	return contract, nil
}

func gweiToWei(gwei string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(gwei))
	if err != nil {
		return decimal.Zero, err
	}

	if d.IsNegative() {
		return decimal.Zero, errors.New("fee must not be negative")
	}

	return d.Shift(9), nil
}

// Owner is the account which signs mint transactions.
func (c *EnftyContract) Owner() common.Address {
	return c.owner
}

func (c *EnftyContract) Mint(
	ctx context.Context, recipient common.Address, tokenURI string, opts types.TxOpts,
) (*types.SubmittedTx, error) {
	return c.submit(ctx, c.ownerKey, opts, "mintNFT", recipient, tokenURI)
}

func (c *EnftyContract) Transfer(
	ctx context.Context,
	from common.Address,
	fromKey *ecdsa.PrivateKey,
	to common.Address,
	tokenID *big.Int,
	opts types.TxOpts,
) (*types.SubmittedTx, error) {
	if err := checkSigner(from, fromKey); err != nil {
		return nil, err
	}

	return c.submit(ctx, fromKey, opts, "transferFrom", from, to, tokenID)
}

func (c *EnftyContract) Burn(
	ctx context.Context, from common.Address, fromKey *ecdsa.PrivateKey, tokenID *big.Int, opts types.TxOpts,
) (*types.SubmittedTx, error) {
	if err := checkSigner(from, fromKey); err != nil {
		return nil, err
	}

	return c.submit(ctx, fromKey, opts, "burn", tokenID)
}

func checkSigner(from common.Address, key *ecdsa.PrivateKey) error {
	if key == nil {
		return types.NewChainError(types.ErrInvalidArgument, "", "missing private key of %s", from)
	}

	if signer := crypto.PubkeyToAddress(key.PublicKey); signer != from {
		return types.NewChainError(types.ErrInvalidArgument, "",
			"private key belongs to %s, not %s", signer, from)
	}

	return nil
}

func (c *EnftyContract) fees(escalate bool) (feeCap *big.Int, tipCap *big.Int) {
	maxFee, maxTip := c.maxFee, c.maxTip
	if escalate {
		maxFee = maxFee.Mul(c.multiplier)
		maxTip = maxTip.Mul(c.multiplier)
	}

	return maxFee.BigInt(), maxTip.BigInt()
}

func (c *EnftyContract) submit(
	ctx context.Context, key *ecdsa.PrivateKey, opts types.TxOpts, method string, args ...any,
) (*types.SubmittedTx, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, types.WrapChainError(types.ErrInvalidArgument, "", err)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	feeCap, tipCap := c.fees(opts.EscalateGas)

	gas := c.gasLimit
	if gas == 0 {
		gas, err = c.client.EstimateGas(ctx, ethereum.CallMsg{
			From:      from,
			To:        &c.address,
			GasFeeCap: feeCap,
			GasTipCap: tipCap,
			Data:      data,
		})
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot estimate gas of %s from %s: %v", method, from, err)
			return nil, submissionError(err)
		}
	}

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     opts.Nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &c.address,
		Value:     big.NewInt(0),
		Data:      data,
	})

	auth, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return nil, types.WrapChainError(types.ErrInvalidArgument, "", err)
	}

	signedTx, err := auth.Signer(from, tx)
	if err != nil {
		return nil, types.WrapChainError(types.ErrInvalidArgument, "", err)
	}

	if err := c.dispatcher.Dispatch(ctx, signedTx, from); err != nil {
		return nil, err
	}

	return &types.SubmittedTx{TxHash: signedTx.Hash(), Tx: signedTx}, nil
}

// TokenURI reads the metadata object of a token. It never sends a transaction.
func (c *EnftyContract) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	data, err := c.abi.Pack("tokenURI", tokenID)
	if err != nil {
		return "", types.WrapChainError(types.ErrInvalidArgument, "", err)
	}

	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return "", types.WrapChainError(types.ErrContractLogic, "", err)
	}

	values, err := c.abi.Unpack("tokenURI", out)
	if err != nil {
		return "", types.WrapChainError(types.ErrContractLogic, "", err)
	}

	if len(values) == 0 {
		return "", types.NewChainError(types.ErrContractLogic, "", "empty tokenURI result")
	}

	uri, ok := values[0].(string)
	if !ok {
		return "", types.NewChainError(types.ErrContractLogic, "", "invalid tokenURI result")
	}

	metadata := metadataRegexp.FindString(uri)
	if metadata == "" {
		return "", types.NewChainError(types.ErrContractLogic, "", "no metadata object in token %s", tokenID)
	}

	return metadata, nil
}

// AwaitReceipt polls the receipt of txHash until it's mined or the receipt timeout is reached, then
// decodes the Transfer event emitted by the contract.
func (c *EnftyContract) AwaitReceipt(ctx context.Context, txHash common.Hash) (*types.TransferEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	var receipt *ethtypes.Receipt
	var lastErr error
	err := repeat.Repeat(
		repeat.Fn(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			r, err := c.client.TransactionReceipt(ctx, txHash)
			if err != nil || r == nil {
				if !errors.Is(err, ethereum.NotFound) && err != nil {
					lastErr = err
				}

				return repeat.HintTemporary(errors.New("receipt is not available"))
			}

			receipt = r
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.WithDelay(repeat.FixedBackoff(c.pollInterval).Set(), repeat.SetContext(ctx)),
	)

	if receipt == nil {
		if lastErr != nil {
			xcontext.Logger(ctx).Warnf("Last error when polling receipt of %s: %v", txHash, lastErr)
		}

		return nil, types.NewChainError(types.ErrReceiptTimeout, "",
			"transaction %s was not mined within %s: %v", txHash, c.receiptTimeout, err)
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, types.NewChainError(types.ErrTransactionReverted, "", "transaction %s reverted", txHash)
	}

	event, err := c.decodeTransfer(receipt)
	if err != nil {
		return nil, err
	}

	event.TxHash = txHash
	event.BlockNumber = receipt.BlockNumber.Uint64()
	return event, nil
}

func (c *EnftyContract) decodeTransfer(receipt *ethtypes.Receipt) (*types.TransferEvent, error) {
	event, ok := c.abi.Events["Transfer"]
	if !ok {
		return nil, types.NewChainError(types.ErrContractLogic, "", "abi has no Transfer event")
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	for _, log := range receipt.Logs {
		if log.Address != c.address || len(log.Topics) != len(indexed)+1 || log.Topics[0] != event.ID {
			continue
		}

		fields := map[string]any{}
		if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
			return nil, types.WrapChainError(types.ErrContractLogic, "", err)
		}

		from, _ := fields["from"].(common.Address)
		to, _ := fields["to"].(common.Address)
		tokenID, ok := fields["tokenId"].(*big.Int)
		if !ok {
			return nil, types.NewChainError(types.ErrContractLogic, "", "invalid tokenId in Transfer event")
		}

		return &types.TransferEvent{From: from, To: to, TokenID: tokenID}, nil
	}

	return nil, types.NewChainError(types.ErrTransactionReverted, "",
		"no Transfer event in transaction %s", receipt.TxHash)
}

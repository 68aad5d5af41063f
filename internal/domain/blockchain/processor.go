package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/enfty-lab/gateway/internal/common"
	"github.com/enfty-lab/gateway/internal/domain/blockchain/types"
	"github.com/enfty-lab/gateway/internal/entity"
	"github.com/enfty-lab/gateway/internal/repository"
	"github.com/enfty-lab/gateway/pkg/ethutil"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/enfty-lab/gateway/pkg/xsentry"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ssgreg/repeat"
	"gorm.io/gorm"
)

const (
	FailureCodeUnknown         = "0"
	FailureCodeInvalidArgument = "InvalidArgument"
	FailureCodeNonceInUse      = "NonceInUse"
)

// submission is a job whose arguments are resolved and which only waits for a nonce.
type submission struct {
	signer ethcommon.Address
	nonce  int64
	submit func(ctx context.Context, opts types.TxOpts) (*types.SubmittedTx, error)
}

const (
	ledgerWriteTries    = 5
	ledgerWriteDelay    = 100 * time.Millisecond
	ledgerWriteMaxDelay = 2 * time.Second
)

// ErrLedgerOutOfSync means a transaction reached the chain but the ledger could not record it. The
// job must not be handled again, it would submit the transaction twice.
var ErrLedgerOutOfSync = errors.New("ledger is out of sync with the chain")

// Processor drives a ledger record from Processing to a terminal status. The record must exist
// before its job is handled.
type Processor struct {
	txRepo    repository.BlockchainTransactionRepository
	contract  Contract
	sequencer *NonceSequencer
	locker    Locker

	ledgerTries int
	ledgerDelay time.Duration
}

func NewProcessor(
	txRepo repository.BlockchainTransactionRepository,
	contract Contract,
	sequencer *NonceSequencer,
	locker Locker,
) *Processor {
	return &Processor{
		txRepo:      txRepo,
		contract:    contract,
		sequencer:   sequencer,
		locker:      locker,
		ledgerTries: ledgerWriteTries,
		ledgerDelay: ledgerWriteDelay,
	}
}

// Handle processes a job. A returned error is transient and the job can be handled again, unless it
// wraps ErrLedgerOutOfSync. A job whose transaction is already Sent resumes at the receipt wait.
func (p *Processor) Handle(ctx context.Context, job *types.Job) error {
	record, err := p.txRepo.GetByGatewayID(ctx, job.GatewayID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			xcontext.Logger(ctx).Errorf("Drop job %d, transaction %s does not exist", job.ID, job.GatewayID)
			return nil
		}

		return err
	}

	switch record.Status {
	case entity.BlockchainTransactionStatusTypeProcessing:
		return p.submit(ctx, job)

	case entity.BlockchainTransactionStatusTypeSent:
		if record.TxHash == "" {
			xcontext.Logger(ctx).Warnf("Skip job %d, transaction %s is sent without hash", job.ID, job.GatewayID)
			return nil
		}

		xcontext.Logger(ctx).Infof("Resume job %d, transaction %s is sent with hash %s",
			job.ID, job.GatewayID, record.TxHash)
		return p.settle(ctx, job, ethcommon.HexToHash(record.TxHash))

	default:
		xcontext.Logger(ctx).Warnf("Skip job %d, transaction %s is already %s",
			job.ID, job.GatewayID, record.Status)
		return nil
	}
}

// submit assigns a nonce to the job, sends its transaction and records it as Sent, then waits for
// the receipt.
func (p *Processor) submit(ctx context.Context, job *types.Job) error {
	s, err := p.prepare(ctx, job)
	if err != nil {
		return p.fail(ctx, job, err)
	}

	unlock, err := p.locker.Lock(ctx, s.signer)
	if err != nil {
		return err
	}

	locked := true
	release := func() {
		if locked {
			locked = false
			unlock()
		}
	}
	defer release()

	nonce, err := p.sequencer.NextNonce(ctx, s.signer, s.nonce)
	if err != nil {
		if types.IsKind(err, types.ErrInvalidArgument) {
			return p.fail(ctx, job, err)
		}

		return err
	}

	inUse, err := p.txRepo.NonceInUse(ctx, s.signer.Hex(), nonce.Nonce)
	if err != nil {
		return err
	}

	if inUse {
		return p.failWith(ctx, job, FailureCodeNonceInUse,
			fmt.Sprintf("nonce %d of %s is already used", nonce.Nonce, s.signer.Hex()))
	}

	xcontext.Logger(ctx).Infof("Submit %s transaction %s from %s with nonce %d (escalate = %t)",
		job.Operation, job.GatewayID, s.signer.Hex(), nonce.Nonce, nonce.Escalate)

	submitted, err := s.submit(ctx, types.TxOpts{Nonce: nonce.Nonce, EscalateGas: nonce.Escalate})
	if err != nil {
		return p.fail(ctx, job, err)
	}

	// From here the transaction is on-chain, the job is never handled from the top again.
	txHash := submitted.TxHash.Hex()
	err = p.writeLedger(ctx, func(ctx context.Context) error {
		return p.txRepo.MarkSent(ctx, job.GatewayID, txHash, nonce.Nonce)
	})

	switch {
	case err == nil:

	case errors.Is(err, repository.ErrNonceInUse):
		err = p.failWith(ctx, job, FailureCodeNonceInUse,
			fmt.Sprintf("%v, transaction %s was submitted with nonce %d", err, txHash, nonce.Nonce))
		if err != nil {
			return p.outOfSync(ctx, job, txHash, nonce.Nonce, err)
		}
		return nil

	case errors.Is(err, repository.ErrInvalidTransition):
		xcontext.Logger(ctx).Warnf("Transaction %s changed status during submission of %s with nonce %d",
			job.GatewayID, txHash, nonce.Nonce)
		return nil

	default:
		return p.outOfSync(ctx, job, txHash, nonce.Nonce, err)
	}

	release()
	return p.settle(ctx, job, submitted.TxHash)
}

// settle waits for the receipt of a Sent transaction and records its terminal status.
func (p *Processor) settle(ctx context.Context, job *types.Job, txHash ethcommon.Hash) error {
	start := time.Now()
	event, err := p.contract.AwaitReceipt(ctx, txHash)
	common.PromHistograms[common.BlockchainReceiptWaitSeconds].
		WithLabelValues(string(job.Operation)).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			// Shutting down, the transaction stays Sent.
			return ctx.Err()
		}

		return p.failWith(ctx, job, FailureCodeUnknown, err.Error())
	}

	err = p.writeLedger(ctx, func(ctx context.Context) error {
		return p.txRepo.MarkCleared(ctx, job.GatewayID, repository.ClearedReceipt{
			TxHash:      event.TxHash.Hex(),
			FromAddress: event.From.Hex(),
			ToAddress:   event.To.Hex(),
			TokenID:     event.TokenID.String(),
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			xcontext.Logger(ctx).Warnf("Transaction %s changed status before being cleared", job.GatewayID)
			return nil
		}

		xcontext.Logger(ctx).Errorf("Cannot mark transaction %s as cleared: %v", job.GatewayID, err)
		return err
	}

	common.PromCounters[common.BlockchainTransactionCleared].WithLabelValues(string(job.Operation)).Inc()
	xcontext.Logger(ctx).Infof("Transaction %s is cleared in block %d with token %s",
		job.GatewayID, event.BlockNumber, event.TokenID)

	return nil
}

// writeLedger retries a ledger write in place. The write ignores the cancellation of ctx, a
// transaction which reached the chain must be recorded even during shutdown.
func (p *Processor) writeLedger(ctx context.Context, write func(context.Context) error) error {
	ctx = context.WithoutCancel(ctx)

	var lastErr error
	_ = repeat.Repeat(
		repeat.Fn(func() error {
			lastErr = write(ctx)
			if lastErr == nil ||
				errors.Is(lastErr, gorm.ErrRecordNotFound) ||
				errors.Is(lastErr, repository.ErrInvalidTransition) ||
				errors.Is(lastErr, repository.ErrNonceInUse) {
				return lastErr
			}

			xcontext.Logger(ctx).Warnf("Cannot write ledger, it will be retried: %v", lastErr)
			return repeat.HintTemporary(lastErr)
		}),
		repeat.StopOnSuccess(),
		// LimitMaxTries counts retries after the first call.
		repeat.LimitMaxTries(max(p.ledgerTries-1, 0)),
		repeat.WithDelay(repeat.FullJitterBackoff(p.ledgerDelay).WithMaxDelay(ledgerWriteMaxDelay).Set()),
	)

	return lastErr
}

// outOfSync reports a submitted transaction the ledger could not record, so an operator can
// reconcile it.
func (p *Processor) outOfSync(ctx context.Context, job *types.Job, txHash string, nonce uint64, err error) error {
	xcontext.Logger(ctx).Errorf("Transaction %s was submitted as %s with nonce %d but the ledger cannot record it: %v",
		job.GatewayID, txHash, nonce, err)

	xsentry.CaptureException(err, map[string]string{
		"area":       "worker",
		"job_id":     strconv.FormatInt(job.ID, 10),
		"gateway_id": job.GatewayID,
		"tx_hash":    txHash,
		"nonce":      strconv.FormatUint(nonce, 10),
	})

	return fmt.Errorf("%w: transaction %s, nonce %d: %v", ErrLedgerOutOfSync, txHash, nonce, err)
}

func (p *Processor) prepare(ctx context.Context, job *types.Job) (*submission, error) {
	switch job.Operation {
	case entity.BlockchainTransactionTypeMinting:
		var args types.MintArgs
		if err := job.DecodeArgs(&args); err != nil {
			return nil, types.WrapChainError(types.ErrInvalidArgument, "", err)
		}

		recipient, err := parseAddress(args.Recipient)
		if err != nil {
			return nil, err
		}

		return &submission{
			signer: p.contract.Owner(),
			nonce:  args.Nonce,
			submit: func(ctx context.Context, opts types.TxOpts) (*types.SubmittedTx, error) {
				return p.contract.Mint(ctx, recipient, args.TokenURI, opts)
			},
		}, nil

	case entity.BlockchainTransactionTypeTransfer:
		var args types.TransferArgs
		if err := job.DecodeArgs(&args); err != nil {
			return nil, types.WrapChainError(types.ErrInvalidArgument, "", err)
		}

		to, err := parseAddress(args.ToAddress)
		if err != nil {
			return nil, err
		}

		tokenID, err := parseTokenID(args.TokenID)
		if err != nil {
			return nil, err
		}

		key, err := ethutil.DecryptPrivateKeyOf(
			args.FromAddress, args.EncryptedKey, xcontext.Configs(ctx).AESKey, args.Vector)
		if err != nil {
			return nil, types.WrapChainError(types.ErrInvalidArgument, "", err)
		}

		from := ethutil.AddressOf(key)
		return &submission{
			signer: from,
			nonce:  args.Nonce,
			submit: func(ctx context.Context, opts types.TxOpts) (*types.SubmittedTx, error) {
				return p.contract.Transfer(ctx, from, key, to, tokenID, opts)
			},
		}, nil

	case entity.BlockchainTransactionTypeBurn:
		var args types.BurnArgs
		if err := job.DecodeArgs(&args); err != nil {
			return nil, types.WrapChainError(types.ErrInvalidArgument, "", err)
		}

		tokenID, err := parseTokenID(args.TokenID)
		if err != nil {
			return nil, err
		}

		key, err := ethutil.DecryptPrivateKeyOf(
			args.FromAddress, args.EncryptedKey, xcontext.Configs(ctx).AESKey, args.Vector)
		if err != nil {
			return nil, types.WrapChainError(types.ErrInvalidArgument, "", err)
		}

		from := ethutil.AddressOf(key)
		return &submission{
			signer: from,
			nonce:  args.Nonce,
			submit: func(ctx context.Context, opts types.TxOpts) (*types.SubmittedTx, error) {
				return p.contract.Burn(ctx, from, key, tokenID, opts)
			},
		}, nil

	default:
		return nil, types.NewChainError(types.ErrInvalidArgument, "", "unsupported operation %q", job.Operation)
	}
}

func parseAddress(s string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, types.NewChainError(types.ErrInvalidArgument, "", "invalid address %q", s)
	}

	return ethcommon.HexToAddress(s), nil
}

func parseTokenID(s string) (*big.Int, error) {
	tokenID, ok := new(big.Int).SetString(s, 10)
	if !ok || tokenID.Sign() < 0 {
		return nil, types.NewChainError(types.ErrInvalidArgument, "", "invalid token id %q", s)
	}

	return tokenID, nil
}

// fail records err as the failure of the job. Chain errors keep their node code, or their kind when
// the node gave none.
func (p *Processor) fail(ctx context.Context, job *types.Job, err error) error {
	code := FailureCodeUnknown
	if chainErr, ok := types.AsChainError(err); ok {
		code = chainErr.Code
		if code == "" {
			code = chainErr.Kind.String()
		}
	}

	return p.failWith(ctx, job, code, err.Error())
}

func (p *Processor) failWith(ctx context.Context, job *types.Job, code, message string) error {
	xcontext.Logger(ctx).Errorf("Transaction %s failed with code %s: %s", job.GatewayID, code, message)
	common.PromCounters[common.BlockchainTransactionFailure].WithLabelValues(string(job.Operation)).Inc()

	err := p.writeLedger(ctx, func(ctx context.Context) error {
		return p.txRepo.MarkFailed(ctx, job.GatewayID, code, message)
	})
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			return nil
		}

		xcontext.Logger(ctx).Errorf("Cannot mark transaction %s as failed: %v", job.GatewayID, err)
		return err
	}

	return nil
}

package eth

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/enfty-lab/gateway/internal/domain/blockchain/types"
	"github.com/enfty-lab/gateway/mocks"
	"github.com/enfty-lab/gateway/pkg/testutil"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type rpcError struct {
	code int
	msg  string
}

func (e rpcError) Error() string  { return e.msg }
func (e rpcError) ErrorCode() int { return e.code }

var (
	owner     = common.HexToAddress(testutil.OwnerAccount)
	recipient = common.HexToAddress(testutil.AddressB)
)

func newTestContract(t *testing.T, client *mocks.EthClient) *EnftyContract {
	contract, err := NewEnftyContract(client, testutil.MockConfigs().Eth)
	require.NoError(t, err)
	return contract
}

func TestNewEnftyContract(t *testing.T) {
	cfg := testutil.MockConfigs().Eth
	contract, err := NewEnftyContract(&mocks.EthClient{}, cfg)
	require.NoError(t, err)
	require.Equal(t, owner, contract.Owner())

	wrongOwner := cfg
	wrongOwner.OwnerAccount = testutil.AddressA
	_, err = NewEnftyContract(&mocks.EthClient{}, wrongOwner)
	require.Error(t, err)

	wrongFee := cfg
	wrongFee.MaxFeePerGas = "abc"
	_, err = NewEnftyContract(&mocks.EthClient{}, wrongFee)
	require.Error(t, err)

	wrongAddress := cfg
	wrongAddress.ContractAddress = "0x123"
	_, err = NewEnftyContract(&mocks.EthClient{}, wrongAddress)
	require.Error(t, err)
}

func TestEnftyContract_Mint(t *testing.T) {
	tests := []struct {
		name     string
		escalate bool
		balance  *big.Int
		sendErr  error
		wantKind types.ErrorKind
		wantCode string
		wantErr  bool
		wantNoTx bool
		wantFee  int64
		wantTip  int64
	}{
		{
			name:    "happy case",
			balance: big.NewInt(1e18),
			wantFee: 2e9,
			wantTip: 1e9,
		},
		{
			name:     "escalated fees",
			escalate: true,
			balance:  big.NewInt(1e18),
			wantFee:  2.4e9,
			wantTip:  1.2e9,
		},
		{
			name:     "insufficient balance",
			balance:  big.NewInt(1),
			wantErr:  true,
			wantKind: types.ErrInsufficientFunds,
			wantNoTx: true,
		},
		{
			name:    "already known counts as success",
			balance: big.NewInt(1e18),
			sendErr: errors.New("already known"),
			wantFee: 2e9,
			wantTip: 1e9,
		},
		{
			name:     "node rejects the transaction",
			balance:  big.NewInt(1e18),
			sendErr:  rpcError{code: -32000, msg: "nonce too low"},
			wantErr:  true,
			wantKind: types.ErrSubmissionRejected,
			wantCode: "-32000",
		},
		{
			name:     "transport error",
			balance:  big.NewInt(1e18),
			sendErr:  errors.New("connection refused"),
			wantErr:  true,
			wantKind: types.ErrSubmissionRejected,
			wantCode: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.MockContext()
			client := &mocks.EthClient{}
			client.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(100000), nil)
			client.On("BalanceAt", mock.Anything, owner, mock.Anything).Return(tt.balance, nil)
			client.On("SendTransaction", mock.Anything, mock.Anything).Return(tt.sendErr)

			contract := newTestContract(t, client)
			submitted, err := contract.Mint(ctx, recipient, "ipfs://token", types.TxOpts{
				Nonce:       7,
				EscalateGas: tt.escalate,
			})

			if tt.wantNoTx {
				client.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
			}

			if tt.wantErr {
				require.True(t, types.IsKind(err, tt.wantKind), "unexpected error %v", err)
				if tt.wantCode != "" {
					chainErr, ok := types.AsChainError(err)
					require.True(t, ok)
					require.Equal(t, tt.wantCode, chainErr.Code)
				}
				return
			}

			require.NoError(t, err)
			require.Equal(t, submitted.Tx.Hash(), submitted.TxHash)
			require.Equal(t, uint64(7), submitted.Tx.Nonce())
			require.Equal(t, uint64(100000), submitted.Tx.Gas())
			require.Equal(t, big.NewInt(tt.wantFee), submitted.Tx.GasFeeCap())
			require.Equal(t, big.NewInt(tt.wantTip), submitted.Tx.GasTipCap())

			sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(big.NewInt(1337)), submitted.Tx)
			require.NoError(t, err)
			require.Equal(t, owner, sender)
		})
	}
}

func TestEnftyContract_Mint_estimateReverted(t *testing.T) {
	ctx := testutil.MockContext()
	client := &mocks.EthClient{}
	client.On("EstimateGas", mock.Anything, mock.Anything).
		Return(uint64(0), rpcError{code: 3, msg: "execution reverted"})

	contract := newTestContract(t, client)
	_, err := contract.Mint(ctx, recipient, "ipfs://token", types.TxOpts{Nonce: 1})

	chainErr, ok := types.AsChainError(err)
	require.True(t, ok)
	require.Equal(t, types.ErrSubmissionRejected, chainErr.Kind)
	require.Equal(t, "3", chainErr.Code)
	client.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func TestEnftyContract_Transfer_wrongKey(t *testing.T) {
	ctx := testutil.MockContext()
	contract := newTestContract(t, &mocks.EthClient{})

	_, err := contract.Transfer(ctx, common.HexToAddress(testutil.AddressA), contract.ownerKey,
		recipient, big.NewInt(1), types.TxOpts{})
	require.True(t, types.IsKind(err, types.ErrInvalidArgument))

	_, err = contract.Burn(ctx, owner, nil, big.NewInt(1), types.TxOpts{})
	require.True(t, types.IsKind(err, types.ErrInvalidArgument))
}

func TestEnftyContract_TokenURI(t *testing.T) {
	contractABI, err := LoadABI("")
	require.NoError(t, err)

	pack := func(s string) []byte {
		out, err := contractABI.Methods["tokenURI"].Outputs.Pack(s)
		require.NoError(t, err)
		return out
	}

	tests := []struct {
		name     string
		output   []byte
		callErr  error
		want     string
		wantKind types.ErrorKind
	}{
		{
			name:   "metadata inside a longer string",
			output: pack(`data:{"name":"bol","hash":"Qm"}`),
			want:   `{"name":"bol","hash":"Qm"}`,
		},
		{
			name:   "greedy match spans several objects",
			output: pack(`{"a":1} and {"b":2}`),
			want:   `{"a":1} and {"b":2}`,
		},
		{
			name:     "no metadata object",
			output:   pack("ipfs://nothing"),
			wantKind: types.ErrContractLogic,
		},
		{
			name:     "nonexistent token reverts",
			callErr:  rpcError{code: 3, msg: "execution reverted: ERC721: invalid token ID"},
			wantKind: types.ErrContractLogic,
		},
		{
			name:     "empty output",
			output:   []byte{},
			wantKind: types.ErrContractLogic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.MockContext()
			client := &mocks.EthClient{}
			client.On("CallContract", mock.Anything, mock.Anything, mock.Anything).Return(tt.output, tt.callErr)

			got, err := newTestContract(t, client).TokenURI(ctx, big.NewInt(1))
			if tt.want == "" {
				require.True(t, types.IsKind(err, tt.wantKind), "unexpected error %v", err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEnftyContract_AwaitReceipt(t *testing.T) {
	cfg := testutil.MockConfigs().Eth
	contractAddress := common.HexToAddress(cfg.ContractAddress)
	txHash := common.HexToHash("0x1234")

	contractABI, err := LoadABI("")
	require.NoError(t, err)
	transferID := contractABI.Events["Transfer"].ID

	transferLog := &ethtypes.Log{
		Address: contractAddress,
		Topics: []common.Hash{
			transferID,
			common.BytesToHash(common.Address{}.Bytes()),
			common.BytesToHash(recipient.Bytes()),
			common.BigToHash(big.NewInt(42)),
		},
	}

	otherLog := &ethtypes.Log{
		Address: common.HexToAddress(testutil.AddressA),
		Topics:  transferLog.Topics,
	}

	tests := []struct {
		name     string
		receipt  *ethtypes.Receipt
		want     *types.TransferEvent
		wantKind types.ErrorKind
	}{
		{
			name: "mint is cleared",
			receipt: &ethtypes.Receipt{
				Status:      ethtypes.ReceiptStatusSuccessful,
				TxHash:      txHash,
				BlockNumber: big.NewInt(5),
				Logs:        []*ethtypes.Log{otherLog, transferLog},
			},
			want: &types.TransferEvent{
				TxHash:      txHash,
				To:          recipient,
				TokenID:     big.NewInt(42),
				BlockNumber: 5,
			},
		},
		{
			name: "reverted",
			receipt: &ethtypes.Receipt{
				Status:      ethtypes.ReceiptStatusFailed,
				TxHash:      txHash,
				BlockNumber: big.NewInt(5),
			},
			wantKind: types.ErrTransactionReverted,
		},
		{
			name: "no transfer event",
			receipt: &ethtypes.Receipt{
				Status:      ethtypes.ReceiptStatusSuccessful,
				TxHash:      txHash,
				BlockNumber: big.NewInt(5),
				Logs:        []*ethtypes.Log{otherLog},
			},
			wantKind: types.ErrTransactionReverted,
		},
		{
			name:     "never mined",
			wantKind: types.ErrReceiptTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.MockContext()
			client := &mocks.EthClient{}
			client.On("TransactionReceipt", mock.Anything, txHash).Return(nil, ethereum.NotFound).Once()
			if tt.receipt != nil {
				client.On("TransactionReceipt", mock.Anything, txHash).Return(tt.receipt, nil)
			} else {
				client.On("TransactionReceipt", mock.Anything, txHash).Return(nil, ethereum.NotFound)
			}

			got, err := newTestContract(t, client).AwaitReceipt(ctx, txHash)
			if tt.want == nil {
				require.True(t, types.IsKind(err, tt.wantKind), "unexpected error %v", err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEnftyContract_AwaitReceipt_fixedInterval(t *testing.T) {
	cfg := testutil.MockConfigs().Eth
	cfg.ReceiptPollInterval = 30 * time.Millisecond
	cfg.ReceiptTimeout = 100 * time.Millisecond

	txHash := common.HexToHash("0x1234")
	client := &mocks.EthClient{}
	client.On("TransactionReceipt", mock.Anything, txHash).Return(nil, ethereum.NotFound)

	contract, err := NewEnftyContract(client, cfg)
	require.NoError(t, err)

	start := time.Now()
	_, err = contract.AwaitReceipt(testutil.MockContext(), txHash)
	require.True(t, types.IsKind(err, types.ErrReceiptTimeout), "unexpected error %v", err)
	require.GreaterOrEqual(t, time.Since(start), cfg.ReceiptTimeout)

	// Attempts at 0, 30, 60 and 90ms.
	calls := 0
	for _, call := range client.Calls {
		if call.Method == "TransactionReceipt" {
			calls++
		}
	}
	require.GreaterOrEqual(t, calls, 3)
	require.LessOrEqual(t, calls, 5)
}

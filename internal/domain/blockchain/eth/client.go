package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/enfty-lab/gateway/config"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

const (
	RpcTimeOut = time.Second * 5
)

// A wrapper around eth.client so that we can mock in contract and processor tests.
type EthClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	Close()
}

// Default implementation of ETH client. Since eth RPC often unstable, this client keeps a
// connection to every configured RPC and moves to another one when a node cannot be reached.
type defaultEthClient struct {
	clients   []*ethclient.Client
	healthies []bool
	rpcs      []string

	mutex   sync.RWMutex
	limiter *rate.Limiter
}

func NewEthClients(ctx context.Context, cfg config.EthConfigs) (*defaultEthClient, error) {
	c := &defaultEthClient{limiter: rate.NewLimiter(rate.Inf, 0)}
	if cfg.RPCRateLimit > 0 {
		burst := cfg.RPCBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPCRateLimit), burst)
	}

	for _, url := range cfg.RPCs() {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot dial rpc %s: %v", url, err)
			continue
		}

		c.clients = append(c.clients, client)
		c.healthies = append(c.healthies, true)
		c.rpcs = append(c.rpcs, url)
	}

	if len(c.clients) == 0 {
		return nil, errors.New("no rpc can be dialed")
	}

	return c, nil
}

func (c *defaultEthClient) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, client := range c.clients {
		client.Close()
	}
}

// candidates returns the indexes of healthy clients in random order. If every client is marked as
// unhealthy, all of them are given another chance.
func (c *defaultEthClient) candidates() []int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	result := []int{}
	for _, i := range rand.Perm(len(c.clients)) {
		if c.healthies[i] {
			result = append(result, i)
		}
	}

	if len(result) == 0 {
		for i := range c.healthies {
			c.healthies[i] = true
		}
		result = rand.Perm(len(c.clients))
	}

	return result
}

func (c *defaultEthClient) setHealthy(i int, healthy bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.healthies[i] = healthy
}

func (c *defaultEthClient) execute(
	ctx context.Context, f func(ctx context.Context, client *ethclient.Client, rpc string) (any, error),
) (any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for _, i := range c.candidates() {
		callCtx, cancel := context.WithTimeout(ctx, RpcTimeOut)
		ret, err := f(callCtx, c.clients[i], c.rpcs[i])
		cancel()

		if err == nil || isNodeResponse(err) || ctx.Err() != nil {
			return ret, err
		}

		xcontext.Logger(ctx).Warnf("Rpc %s is unreachable: %v", c.rpcs[i], err)
		c.setHealthy(i, false)
		lastErr = err
	}

	return nil, fmt.Errorf("no healthy rpc: %w", lastErr)
}

// isNodeResponse reports whether err was produced by a node which answered the request, as opposed
// to a transport failure.
func isNodeResponse(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) || errors.Is(err, ethereum.NotFound)
}

func (c *defaultEthClient) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.execute(ctx, func(ctx context.Context, client *ethclient.Client, _ string) (any, error) {
		return client.ChainID(ctx)
	})
	if err != nil {
		return nil, err
	}

	return id.(*big.Int), nil
}

func (c *defaultEthClient) NonceAt(
	ctx context.Context, account common.Address, blockNumber *big.Int,
) (uint64, error) {
	nonce, err := c.execute(ctx, func(ctx context.Context, client *ethclient.Client, _ string) (any, error) {
		return client.NonceAt(ctx, account, blockNumber)
	})
	if err != nil {
		return 0, err
	}

	return nonce.(uint64), nil
}

func (c *defaultEthClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	nonce, err := c.execute(ctx, func(ctx context.Context, client *ethclient.Client, _ string) (any, error) {
		return client.PendingNonceAt(ctx, account)
	})
	if err != nil {
		return 0, err
	}

	return nonce.(uint64), nil
}

func (c *defaultEthClient) BalanceAt(
	ctx context.Context, account common.Address, blockNumber *big.Int,
) (*big.Int, error) {
	balance, err := c.execute(ctx, func(ctx context.Context, client *ethclient.Client, rpc string) (any, error) {
		balance, err := client.BalanceAt(ctx, account, blockNumber)
		if err == nil && balance != nil && balance.Sign() == 0 {
			xcontext.Logger(ctx).Warnf("Balance of %s is 0 using rpc %s", account, rpc)
		}

		return balance, err
	})
	if err != nil {
		return nil, err
	}

	return balance.(*big.Int), nil
}

func (c *defaultEthClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	_, err := c.execute(ctx, func(ctx context.Context, client *ethclient.Client, _ string) (any, error) {
		return nil, client.SendTransaction(ctx, tx)
	})

	return err
}

func (c *defaultEthClient) TransactionReceipt(
	ctx context.Context, txHash common.Hash,
) (*ethtypes.Receipt, error) {
	receipt, err := c.execute(ctx, func(ctx context.Context, client *ethclient.Client, _ string) (any, error) {
		return client.TransactionReceipt(ctx, txHash)
	})
	if err != nil {
		return nil, err
	}

	return receipt.(*ethtypes.Receipt), nil
}

func (c *defaultEthClient) CallContract(
	ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int,
) ([]byte, error) {
	result, err := c.execute(ctx, func(ctx context.Context, client *ethclient.Client, _ string) (any, error) {
		return client.CallContract(ctx, msg, blockNumber)
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

func (c *defaultEthClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	gas, err := c.execute(ctx, func(ctx context.Context, client *ethclient.Client, _ string) (any, error) {
		return client.EstimateGas(ctx, msg)
	})
	if err != nil {
		return 0, err
	}

	return gas.(uint64), nil
}

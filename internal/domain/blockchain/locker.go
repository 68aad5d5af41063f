package blockchain

import (
	"context"
	"errors"
	"time"

	"github.com/enfty-lab/gateway/internal/common"
	"github.com/enfty-lab/gateway/pkg/crypto"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/enfty-lab/gateway/pkg/xredis"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync"
)

const lockRetryInterval = 50 * time.Millisecond

var ErrLockTimeout = errors.New("cannot acquire address lock")

// redisLocker is shared by every worker process. A lock expires after ttl, so a crashed worker
// never holds an address forever.
type redisLocker struct {
	redisClient xredis.Client
	ttl         time.Duration
}

func NewRedisLocker(redisClient xredis.Client, ttl time.Duration) *redisLocker {
	return &redisLocker{redisClient: redisClient, ttl: ttl}
}

func (l *redisLocker) Lock(ctx context.Context, address ethcommon.Address) (func(), error) {
	key := common.RedisKeyAddressLock(address.Hex())
	token, err := crypto.GenerateRandomString()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.redisClient.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return nil, err
		}

		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}

	return func() {
		// The context of the caller may be done already, the lock must be released anyway.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		released, err := l.redisClient.DelIfEqual(releaseCtx, key, token)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot release lock of %s: %v", address, err)
		} else if !released {
			xcontext.Logger(ctx).Warnf("Lock of %s expired before being released", address)
		}
	}, nil
}

// localLocker only excludes goroutines of the same process.
type localLocker struct {
	locks *xsync.MapOf[string, chan struct{}]
}

func NewLocalLocker() *localLocker {
	return &localLocker{locks: xsync.NewMapOf[chan struct{}]()}
}

func (l *localLocker) Lock(ctx context.Context, address ethcommon.Address) (func(), error) {
	lock, _ := l.locks.LoadOrStore(address.Hex(), make(chan struct{}, 1))

	select {
	case lock <- struct{}{}:
		return func() { <-lock }, nil
	case <-ctx.Done():
		return nil, ErrLockTimeout
	}
}

package pubsub

import (
	"context"
	"time"
)

// SubscribeHandler handles a message. The message is committed once the handler returns, whatever
// the error is.
type SubscribeHandler func(context.Context, *Pack, time.Time) error

type Subscriber interface {
	// Subscribe consumes messages until ctx is done.
	Subscribe(ctx context.Context) error
	Stop(ctx context.Context) error
}

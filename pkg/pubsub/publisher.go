package pubsub

import "context"

// Pack is the unit carried by the broker. Messages with the same Key keep their order.
type Pack struct {
	Key []byte
	Msg []byte
}

type Publisher interface {
	Publish(context.Context, string, *Pack) error
}

package kafka

import (
	"context"
	"errors"

	"github.com/enfty-lab/gateway/pkg/pubsub"
	"github.com/enfty-lab/gateway/pkg/xcontext"

	"github.com/Shopify/sarama"
)

type subscriber struct {
	groupID string
	topics  []string
	client  sarama.ConsumerGroup
	handler pubsub.SubscribeHandler
}

// NewSubscriber creates one member of the consumer group groupID. Run more subscribers with the
// same group to share the partitions of topics.
func NewSubscriber(
	groupID string,
	brokerAddrs []string,
	topics []string,
	handler pubsub.SubscribeHandler,
) (*subscriber, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	client, err := sarama.NewConsumerGroup(brokerAddrs, groupID, config)
	if err != nil {
		return nil, err
	}

	return &subscriber{
		groupID: groupID,
		topics:  topics,
		client:  client,
		handler: handler,
	}, nil
}

func (g *subscriber) Stop(ctx context.Context) error {
	return g.client.Close()
}

func (g *subscriber) Subscribe(ctx context.Context) error {
	consumer := consumerGroupHandler{fn: g.handler}
	for {
		// Consume returns when a server-side rebalance happens, the session needs to be recreated
		// to get the new claims.
		if err := g.client.Consume(ctx, g.topics, &consumer); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

type consumerGroupHandler struct {
	fn pubsub.SubscribeHandler
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim,
) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			xcontext.Logger(session.Context()).Debugf("Received message of topic %s partition %d offset %d",
				message.Topic, message.Partition, message.Offset)

			err := h.fn(session.Context(), &pubsub.Pack{Key: message.Key, Msg: message.Value}, message.Timestamp)
			if err != nil {
				if session.Context().Err() != nil {
					// The message is left uncommitted, the next member of the group handles it again.
					xcontext.Logger(session.Context()).Warnf("Leave message at offset %d of %s for redelivery: %v",
						message.Offset, message.Topic, err)
					return nil
				}

				xcontext.Logger(session.Context()).Errorf("Cannot handle message at offset %d of %s: %v",
					message.Offset, message.Topic, err)
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

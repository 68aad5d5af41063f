package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/enfty-lab/gateway/pkg/pubsub"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	sarama.ConsumerGroupSession

	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context {
	return s.ctx
}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim

	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage {
	return c.messages
}

func newFakeClaim(offsets ...int64) *fakeClaim {
	messages := make(chan *sarama.ConsumerMessage, len(offsets))
	for _, offset := range offsets {
		messages <- &sarama.ConsumerMessage{
			Topic:     "gateway.high",
			Offset:    offset,
			Key:       []byte("0xabc"),
			Value:     []byte(`{"id":1}`),
			Timestamp: time.Now(),
		}
	}
	close(messages)

	return &fakeClaim{messages: messages}
}

func Test_consumerGroupHandler_ConsumeClaim(t *testing.T) {
	errHandle := errors.New("cannot handle")

	tests := []struct {
		name       string
		offsets    []int64
		failAt     map[int64]bool
		shutdownAt int64
		wantCalls  int
		wantMarked []int64
	}{
		{
			name:       "marks handled messages",
			offsets:    []int64{1, 2},
			shutdownAt: -1,
			wantCalls:  2,
			wantMarked: []int64{1, 2},
		},
		{
			name:       "marks failed messages while running",
			offsets:    []int64{1, 2},
			failAt:     map[int64]bool{1: true},
			shutdownAt: -1,
			wantCalls:  2,
			wantMarked: []int64{1, 2},
		},
		{
			name:       "leaves message failed during shutdown",
			offsets:    []int64{1, 2, 3},
			failAt:     map[int64]bool{2: true},
			shutdownAt: 2,
			wantCalls:  2,
			wantMarked: []int64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			session := &fakeSession{ctx: ctx}
			calls := 0
			handler := &consumerGroupHandler{fn: func(_ context.Context, pack *pubsub.Pack, _ time.Time) error {
				calls++
				offset := tt.offsets[calls-1]
				require.Equal(t, []byte("0xabc"), pack.Key)

				if offset == tt.shutdownAt {
					cancel()
				}

				if tt.failAt[offset] {
					return errHandle
				}

				return nil
			}}

			err := handler.ConsumeClaim(session, newFakeClaim(tt.offsets...))
			require.NoError(t, err)
			require.Equal(t, tt.wantCalls, calls)
			require.Equal(t, tt.wantMarked, session.marked)
		})
	}
}

package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/enfty-lab/gateway/internal/domain/blockchain/types"
	"github.com/enfty-lab/gateway/pkg/pubsub"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/enfty-lab/gateway/pkg/xsentry"
	"github.com/ssgreg/repeat"
)

const (
	retryBaseDelay = 200 * time.Millisecond
	retryMaxDelay  = 10 * time.Second
)

// Worker feeds jobs consumed from the queue to the processor.
type Worker struct {
	processor  *Processor
	maxRetries int

	retryDelay    time.Duration
	retryMaxDelay time.Duration
}

func NewWorker(processor *Processor, maxRetries int) *Worker {
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Worker{
		processor:     processor,
		maxRetries:    maxRetries,
		retryDelay:    retryBaseDelay,
		retryMaxDelay: retryMaxDelay,
	}
}

// Subscribe handles a message of the job topics. Transient failures are retried with backoff, the
// message is dropped once retries are exhausted. A job whose transaction reached the chain without
// being recorded is never retried.
func (w *Worker) Subscribe(ctx context.Context, pack *pubsub.Pack, t time.Time) error {
	var job types.Job
	if err := json.Unmarshal(pack.Msg, &job); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot decode job of key %s: %v", pack.Key, err)
		xsentry.CaptureException(err, map[string]string{"area": "worker"})
		return nil
	}

	tags := map[string]string{
		"area":       "worker",
		"job_id":     strconv.FormatInt(job.ID, 10),
		"gateway_id": job.GatewayID,
		"operation":  string(job.Operation),
	}

	xcontext.Logger(ctx).Infof("Handle job %d of transaction %s enqueued %s ago",
		job.ID, job.GatewayID, time.Since(t))

	delay := repeat.FullJitterBackoff(w.retryDelay)
	delay.MaxDelay = w.retryMaxDelay

	var lastErr error
	countError := repeat.FnOnError(repeat.FnES(func(err error) {
		xcontext.Logger(ctx).Warnf("Job %d failed, it will be retried: %v", job.ID, err)
	}))

	_ = repeat.Repeat(
		repeat.Fn(func() error {
			lastErr = w.handle(ctx, &job, tags)
			if lastErr != nil && ctx.Err() == nil && !errors.Is(lastErr, ErrLedgerOutOfSync) {
				return repeat.HintTemporary(lastErr)
			}

			return lastErr
		}),
		repeat.StopOnSuccess(),
		countError,
		repeat.LimitMaxTries(w.maxRetries),
		repeat.WithDelay(delay.Set(), repeat.SetContext(ctx)),
	)

	if errors.Is(lastErr, ErrLedgerOutOfSync) {
		// Already reported, handling the job again would submit its transaction twice.
		return nil
	}

	if lastErr != nil {
		xsentry.CaptureException(lastErr, tags)
		return lastErr
	}

	return nil
}

func (w *Worker) handle(ctx context.Context, job *types.Job, tags map[string]string) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = xsentry.RecoverError(v, tags)
			xcontext.Logger(ctx).Errorf("Panic when handling job %d: %v", job.ID, err)
		}
	}()

	return w.processor.Handle(ctx, job)
}

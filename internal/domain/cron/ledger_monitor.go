package cron

import (
	"context"
	"time"

	"github.com/enfty-lab/gateway/config"
	"github.com/enfty-lab/gateway/internal/common"
	"github.com/enfty-lab/gateway/internal/entity"
	"github.com/enfty-lab/gateway/internal/repository"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	robfigcron "github.com/robfig/cron/v3"
)

// LedgerMonitorCronJob publishes how many transactions have been waiting in Processing or Sent for
// longer than the staleness threshold.
type LedgerMonitorCronJob struct {
	txRepo     repository.BlockchainTransactionRepository
	schedule   robfigcron.Schedule
	staleAfter time.Duration
}

func NewLedgerMonitorCronJob(
	txRepo repository.BlockchainTransactionRepository,
	cfg config.MonitorConfigs,
) (*LedgerMonitorCronJob, error) {
	schedule, err := robfigcron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, err
	}

	return &LedgerMonitorCronJob{
		txRepo:     txRepo,
		schedule:   schedule,
		staleAfter: cfg.StaleAfter,
	}, nil
}

func (job *LedgerMonitorCronJob) Do(ctx context.Context) {
	before := time.Now().Add(-job.staleAfter)
	statuses := []entity.BlockchainTransactionStatusType{
		entity.BlockchainTransactionStatusTypeProcessing,
		entity.BlockchainTransactionStatusTypeSent,
	}

	for _, status := range statuses {
		count, err := job.txRepo.CountByStatusOlderThan(ctx, status, before)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot count stale %s transactions: %v", status, err)
			continue
		}

		common.PromGauges[common.LedgerStaleTransactions].WithLabelValues(string(status)).Set(float64(count))
		if count > 0 {
			xcontext.Logger(ctx).Warnf("%d transactions are %s for more than %s", count, status, job.staleAfter)
		}
	}
}

func (job *LedgerMonitorCronJob) RunNow() bool {
	return true
}

func (job *LedgerMonitorCronJob) Next() time.Time {
	return job.schedule.Next(time.Now())
}

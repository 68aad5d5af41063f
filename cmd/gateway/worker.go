package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/enfty-lab/gateway/internal/domain/blockchain"
	"github.com/enfty-lab/gateway/pkg/kafka"
	"github.com/enfty-lab/gateway/pkg/pubsub"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func (s *srv) startWorker(*cli.Context) error {
	err := chain(
		s.loadDatabase,
		s.migrateDB,
		s.loadRepos,
		s.loadEthClient,
		s.loadLocker,
	)
	if err != nil {
		return err
	}

	cfg := xcontext.Configs(s.ctx)
	processor := blockchain.NewProcessor(
		s.txRepo,
		s.contract,
		blockchain.NewNonceSequencer(s.ethClient, s.txRepo),
		s.locker,
	)
	worker := blockchain.NewWorker(processor, cfg.Worker.MaxRetries)

	// Each topic has its own consumer group and its own workers.
	subscribers := []pubsub.Subscriber{}
	topics := []struct {
		topic   string
		workers int
	}{
		{topic: cfg.Kafka.HighTopic, workers: cfg.Worker.HighWorkers},
		{topic: cfg.Kafka.LowTopic, workers: cfg.Worker.LowWorkers},
	}

	for _, t := range topics {
		groupID := fmt.Sprintf("%s.%s", cfg.Kafka.GroupID, t.topic)
		for i := 0; i < t.workers; i++ {
			subscriber, err := kafka.NewSubscriber(groupID, cfg.Kafka.Brokers(), []string{t.topic}, worker.Subscribe)
			if err != nil {
				return fmt.Errorf("cannot subscribe to %s: %w", t.topic, err)
			}

			subscribers = append(subscribers, subscriber)
		}
	}

	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	for _, subscriber := range subscribers {
		subscriber := subscriber
		group.Go(func() error {
			return subscriber.Subscribe(ctx)
		})
	}

	group.Go(func() error {
		xcontext.Logger(ctx).Infof("Starting prometheus on port: %s", cfg.PrometheusServer.Port)
		return serve(ctx, s.newPrometheusServer())
	})

	xcontext.Logger(s.ctx).Infof("Started %d workers on %s and %d workers on %s",
		cfg.Worker.HighWorkers, cfg.Kafka.HighTopic, cfg.Worker.LowWorkers, cfg.Kafka.LowTopic)

	err = group.Wait()
	for _, subscriber := range subscribers {
		if err := subscriber.Stop(s.ctx); err != nil {
			xcontext.Logger(s.ctx).Warnf("Cannot stop subscriber: %v", err)
		}
	}

	xcontext.Logger(s.ctx).Infof("Worker stop")
	return err
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/enfty-lab/gateway/internal/domain/cron"
	"github.com/enfty-lab/gateway/internal/middleware"
	"github.com/enfty-lab/gateway/pkg/router"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/enfty-lab/gateway/pkg/xsentry"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func (s *srv) startApi(*cli.Context) error {
	err := chain(
		s.loadDatabase,
		s.migrateDB,
		s.loadRepos,
		s.loadEthClient,
		s.loadPublisher,
		s.loadEndpoint,
		s.loadDomains,
	)
	if err != nil {
		return err
	}

	cfg := xcontext.Configs(s.ctx)
	monitor, err := cron.NewLedgerMonitorCronJob(s.txRepo, cfg.Monitor)
	if err != nil {
		return err
	}

	s.loadRouter()

	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiServer := &http.Server{
		Addr:    cfg.ApiServer.Address(),
		Handler: middleware.AllowCors(xsentry.HTTPHandler(s.router.Handler())),
	}

	cronJobManager := cron.NewCronJobManager()
	cronJobManager.Register(monitor)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		xcontext.Logger(ctx).Infof("Starting server on port: %s", cfg.ApiServer.Port)
		return serve(ctx, apiServer)
	})
	group.Go(func() error {
		xcontext.Logger(ctx).Infof("Starting prometheus on port: %s", cfg.PrometheusServer.Port)
		return serve(ctx, s.newPrometheusServer())
	})
	group.Go(func() error {
		cronJobManager.Start(ctx)
		return nil
	})

	err = group.Wait()
	xcontext.Logger(s.ctx).Infof("Server stop")
	return err
}

func (s *srv) loadRouter() {
	cfg := xcontext.Configs(s.ctx)

	s.router = router.New(s.ctx)
	s.router.Before(middleware.WithStartTime())
	s.router.AddCloser(middleware.Logger())
	s.router.AddCloser(middleware.Prometheus())

	router.GET(s.router, "/", s.transactionDomain.Health)

	// The following APIs need an access token carrying the gateway scope.
	authRouter := s.router.Branch()
	authRouter.Before(middleware.Authenticate(s.verifier, cfg.Auth.Scope))
	{
		// Transaction API
		router.POST(authRouter, "/mint", s.transactionDomain.Mint)
		router.POST(authRouter, "/transfer", s.transactionDomain.Transfer)
		router.POST(authRouter, "/burn", s.transactionDomain.Burn)
		router.POST(authRouter, "/abandonTransaction", s.transactionDomain.AbandonTransaction)
		router.GET(authRouter, "/getTokenURI", s.transactionDomain.GetTokenURI)
		router.GET(authRouter, "/getTransaction", s.transactionDomain.GetTransaction)
		router.GET(authRouter, "/getNonce", s.transactionDomain.GetNonce)

		// Key API
		router.POST(authRouter, "/decrypt", s.transactionDomain.DecryptKey)

		// IPFS API
		router.POST(authRouter, "/uploadIPFS", s.ipfsDomain.UploadFile)
	}
}

// serve runs server until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

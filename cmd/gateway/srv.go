package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/enfty-lab/gateway/config"
	"github.com/enfty-lab/gateway/internal/domain"
	"github.com/enfty-lab/gateway/internal/domain/blockchain"
	"github.com/enfty-lab/gateway/internal/domain/blockchain/eth"
	"github.com/enfty-lab/gateway/internal/repository"
	"github.com/enfty-lab/gateway/migration"
	"github.com/enfty-lab/gateway/pkg/api/ipfs"
	"github.com/enfty-lab/gateway/pkg/authenticator"
	"github.com/enfty-lab/gateway/pkg/kafka"
	"github.com/enfty-lab/gateway/pkg/logger"
	"github.com/enfty-lab/gateway/pkg/prometheus"
	"github.com/enfty-lab/gateway/pkg/pubsub"
	"github.com/enfty-lab/gateway/pkg/router"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/enfty-lab/gateway/pkg/xredis"
	"github.com/enfty-lab/gateway/pkg/xsentry"
	"github.com/ssgreg/repeat"
	"github.com/urfave/cli/v2"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const release = "gateway@1.0.0"

type srv struct {
	ctx context.Context
	app *cli.App

	txRepo repository.BlockchainTransactionRepository

	ethClient eth.EthClient
	contract  *eth.EnftyContract
	publisher pubsub.Publisher
	locker    blockchain.Locker

	ipfsEndpoint ipfs.IEndpoint
	verifier     authenticator.AccessTokenVerifier

	transactionDomain domain.TransactionDomain
	ipfsDomain        domain.IPFSDomain

	router *router.Router

	closers []func()
}

// loadBase prepares the context shared by every command.
func (s *srv) loadBase(cctx *cli.Context) error {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return fmt.Errorf("cannot load configs: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	node, err := snowflake.NewNode(cctx.Int64("node"))
	if err != nil {
		return fmt.Errorf("cannot create snowflake node: %w", err)
	}

	if err := xsentry.Init(cfg.Sentry, release); err != nil {
		return fmt.Errorf("cannot init sentry: %w", err)
	}

	s.ctx = context.Background()
	s.ctx = xcontext.WithConfigs(s.ctx, cfg)
	s.ctx = xcontext.WithLogger(s.ctx, logger.NewLogger(level))
	s.ctx = xcontext.WithSnowFlake(s.ctx, node)
	return nil
}

func (s *srv) close(*cli.Context) error {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}

	xsentry.Flush()
	return nil
}

func (s *srv) newDatabase() (*gorm.DB, error) {
	cfg := xcontext.Configs(s.ctx).Database

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.URL)
	case "mysql":
		dialector = mysql.New(mysql.Config{
			DSN:                       cfg.URL,
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		})
	case "sqlite":
		dialector = sqlite.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logLevel := gormlogger.Silent
	if cfg.LogEnabled {
		logLevel = gormlogger.Info
	}

	var db *gorm.DB
	err := repeat.Repeat(
		repeat.Fn(func() error {
			var err error
			db, err = gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(logLevel)})
			if err != nil {
				xcontext.Logger(s.ctx).Warnf("Cannot connect to database: %v", err)
				return repeat.HintTemporary(err)
			}

			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(cfg.ConnRetries),
		repeat.WithDelay(repeat.FullJitterBackoff(500*time.Millisecond).Set()),
	)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}

	s.closers = append(s.closers, func() { sqlDB.Close() })
	return db, nil
}

func (s *srv) loadDatabase() error {
	db, err := s.newDatabase()
	if err != nil {
		return err
	}

	s.ctx = xcontext.WithDB(s.ctx, db)
	return nil
}

func (s *srv) migrateDB() error {
	if err := migration.AutoMigrate(s.ctx); err != nil {
		xcontext.Logger(s.ctx).Errorf("Cannot migrate database: %v", err)
		return err
	}

	return nil
}

func (s *srv) loadRepos() error {
	s.txRepo = repository.NewBlockchainTransactionRepository()
	return nil
}

func (s *srv) loadEthClient() error {
	cfg := xcontext.Configs(s.ctx).Eth

	client, err := eth.NewEthClients(s.ctx, cfg)
	if err != nil {
		return fmt.Errorf("cannot connect to rpc: %w", err)
	}
	s.closers = append(s.closers, client.Close)

	contract, err := eth.NewEnftyContract(client, cfg)
	if err != nil {
		return fmt.Errorf("cannot load contract: %w", err)
	}

	s.ethClient = client
	s.contract = contract
	return nil
}

func (s *srv) loadPublisher() error {
	cfg := xcontext.Configs(s.ctx).Kafka
	publisher, err := kafka.NewPublisher(cfg.GroupID+"-api", cfg.Brokers())
	if err != nil {
		return fmt.Errorf("cannot connect to kafka: %w", err)
	}

	s.closers = append(s.closers, func() { publisher.Stop(s.ctx) })
	s.publisher = publisher
	return nil
}

// loadLocker uses redis to share address locks between worker processes. A single worker process
// can run without redis.
func (s *srv) loadLocker() error {
	cfg := xcontext.Configs(s.ctx)
	if cfg.Redis.Addr == "" {
		xcontext.Logger(s.ctx).Warnf("No redis address, address locks are only held in this process")
		s.locker = blockchain.NewLocalLocker()
		return nil
	}

	redisClient, err := xredis.NewClient(s.ctx)
	if err != nil {
		return fmt.Errorf("cannot connect to redis: %w", err)
	}

	s.closers = append(s.closers, func() { redisClient.Close() })
	s.locker = blockchain.NewRedisLocker(redisClient, cfg.Worker.LockTTL)
	return nil
}

func (s *srv) loadEndpoint() error {
	cfg := xcontext.Configs(s.ctx)
	s.ipfsEndpoint = ipfs.New(cfg.IPFS)

	verifier, err := authenticator.NewOIDCVerifier(s.ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("cannot load token verifier: %w", err)
	}

	s.verifier = verifier
	return nil
}

func (s *srv) loadDomains() error {
	minBalance, ok := new(big.Int).SetString(xcontext.Configs(s.ctx).Eth.MinBalanceWei, 10)
	if !ok {
		return fmt.Errorf("invalid min balance %q", xcontext.Configs(s.ctx).Eth.MinBalanceWei)
	}

	s.transactionDomain = domain.NewTransactionDomain(
		s.txRepo, s.contract, s.ethClient, s.ipfsEndpoint, s.publisher, minBalance)
	s.ipfsDomain = domain.NewIPFSDomain(s.ipfsEndpoint)
	return nil
}

func (s *srv) newPrometheusServer() *http.Server {
	return &http.Server{
		Addr:    xcontext.Configs(s.ctx).PrometheusServer.Address(),
		Handler: prometheus.NewHandler(),
	}
}

// chain runs the loaders in order and stops at the first error.
func chain(loaders ...func() error) error {
	for _, load := range loaders {
		if err := load(); err != nil {
			return err
		}
	}

	return nil
}

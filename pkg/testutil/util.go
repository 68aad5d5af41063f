package testutil

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/enfty-lab/gateway/config"
	"github.com/enfty-lab/gateway/migration"
	"github.com/enfty-lab/gateway/pkg/logger"
	"github.com/enfty-lab/gateway/pkg/xcontext"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	OwnerKey     = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	OwnerAccount = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	AESKey       = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
)

func MockConfigs() config.Configs {
	return config.Configs{
		Env:      "test",
		LogLevel: "SILENCE",
		Database: config.DatabaseConfigs{Driver: "sqlite", URL: ":memory:"},
		Auth: config.AuthConfigs{
			Issuer:   "https://issuer.test/",
			Audience: "https://gateway.test",
			Scope:    "access:gateway",
		},
		Kafka: config.KafkaConfigs{
			HighTopic: "gateway.high",
			LowTopic:  "gateway.low",
			GroupID:   "gateway",
		},
		Worker: config.WorkerConfigs{
			HighWorkers: 1,
			LowWorkers:  1,
			MaxRetries:  1,
			LockTTL:     time.Minute,
		},
		Eth: config.EthConfigs{
			ChainID:                 1337,
			ContractAddress:         "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0",
			OwnerAccount:            OwnerAccount,
			OwnerKey:                OwnerKey,
			MaxFeePerGas:            "2",
			MaxPriorityFeePerGas:    "1",
			GasEscalationMultiplier: "1.2",
			MinBalanceWei:           "200000",
			ReceiptPollInterval:     time.Millisecond,
			ReceiptTimeout:          50 * time.Millisecond,
		},
		Monitor: config.MonitorConfigs{
			Schedule:   "@every 1m",
			StaleAfter: 10 * time.Minute,
		},
		AESKey: AESKey,
	}
}

// MockContext returns a context holding the test configs, a silent logger and a migrated in-memory
// database.
func MockContext() context.Context {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// Every connection of an in-memory sqlite database sees its own empty database.
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	ctx = xcontext.WithConfigs(ctx, MockConfigs())
	ctx = xcontext.WithLogger(ctx, logger.NewLogger(logger.SILENCE))
	ctx = xcontext.WithDB(ctx, db)
	ctx = xcontext.WithSnowFlake(ctx, node)

	if err := migration.AutoMigrate(ctx); err != nil {
		panic(err)
	}

	return ctx
}

func MockContextWithUserID(userID string) context.Context {
	return xcontext.WithRequestUserID(MockContext(), userID)
}

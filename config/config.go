package config

import (
	"fmt"
	"strings"
	"time"
)

type Configs struct {
	Env      string
	LogLevel string `mapstructure:"log_level"`

	Database         DatabaseConfigs
	ApiServer        ServerConfigs `mapstructure:"api_server"`
	PrometheusServer ServerConfigs `mapstructure:"prometheus_server"`
	Auth             AuthConfigs
	IPFS             IPFSConfigs
	Redis            RedisConfigs
	Kafka            KafkaConfigs
	Worker           WorkerConfigs
	Eth              EthConfigs
	Monitor          MonitorConfigs
	Sentry           SentryConfigs
	AESKey           string `mapstructure:"aes_key"`
}

type DatabaseConfigs struct {
	// Driver is one of postgres, mysql or sqlite.
	Driver      string
	URL         string `mapstructure:"database_url"`
	LogEnabled  bool   `mapstructure:"log_enabled"`
	MaxOpenConn int    `mapstructure:"max_open_conn"`
	ConnRetries int    `mapstructure:"conn_retries"`
}

type ServerConfigs struct {
	Host string
	Port string
}

func (c ServerConfigs) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type AuthConfigs struct {
	Issuer   string
	Audience string
	Scope    string
}

type IPFSConfigs struct {
	URL           string
	ProjectID     string `mapstructure:"project_id"`
	ProjectSecret string `mapstructure:"project_secret"`
	Timeout       time.Duration
}

type RedisConfigs struct {
	// Addr is optional, the worker falls back to an in-process address lock when it's empty.
	Addr     string
	Password string
}

type KafkaConfigs struct {
	Addr      string
	HighTopic string `mapstructure:"high_topic"`
	LowTopic  string `mapstructure:"low_topic"`
	GroupID   string `mapstructure:"group_id"`
}

func (c KafkaConfigs) Brokers() []string {
	return splitList(c.Addr)
}

type WorkerConfigs struct {
	HighWorkers int           `mapstructure:"high_workers"`
	LowWorkers  int           `mapstructure:"low_workers"`
	MaxRetries  int           `mapstructure:"max_retries"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

type EthConfigs struct {
	RPCURL          string `mapstructure:"rpc_url"`
	ChainID         int64  `mapstructure:"chain_id"`
	ContractAddress string `mapstructure:"contract_address"`
	// ContractABI is a path to either a raw ABI array or a build artifact holding an "abi" key.
	// The embedded ABI is used when it's empty.
	ContractABI  string `mapstructure:"contract_abi"`
	OwnerAccount string `mapstructure:"owner_account"`
	OwnerKey     string `mapstructure:"owner_key"`

	// Fees are expressed in gwei.
	MaxFeePerGas            string  `mapstructure:"max_fee_per_gas"`
	MaxPriorityFeePerGas    string  `mapstructure:"max_priority_fee_per_gas"`
	GasEscalationMultiplier string  `mapstructure:"gas_escalation_multiplier"`
	GasLimit                uint64  `mapstructure:"gas_limit"`
	MinBalanceWei           string  `mapstructure:"min_balance_wei"`
	RPCRateLimit            float64 `mapstructure:"rpc_rate_limit"`
	RPCBurst                int     `mapstructure:"rpc_burst"`

	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	ReceiptTimeout      time.Duration `mapstructure:"receipt_timeout"`
}

func (c EthConfigs) RPCs() []string {
	return splitList(c.RPCURL)
}

type MonitorConfigs struct {
	Schedule   string
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type SentryConfigs struct {
	DSN         string
	Environment string
}

func splitList(s string) []string {
	result := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}

	return result
}

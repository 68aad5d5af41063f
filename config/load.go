package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "GATEWAY"

var defaults = map[string]any{
	"env":       "local",
	"log_level": "INFO",

	"database.driver":        "postgres",
	"database.database_url":  "",
	"database.log_enabled":   false,
	"database.max_open_conn": 10,
	"database.conn_retries":  5,

	"api_server.host":        "",
	"api_server.port":        "8080",
	"prometheus_server.host": "",
	"prometheus_server.port": "9000",

	"auth.issuer":   "",
	"auth.audience": "",
	"auth.scope":    "access:gateway",

	"ipfs.url":            "https://ipfs.infura.io:5001",
	"ipfs.project_id":     "",
	"ipfs.project_secret": "",
	"ipfs.timeout":        30 * time.Second,

	"redis.addr":     "",
	"redis.password": "",

	"kafka.addr":       "localhost:9092",
	"kafka.high_topic": "gateway.high",
	"kafka.low_topic":  "gateway.low",
	"kafka.group_id":   "gateway",

	"worker.high_workers": 1,
	"worker.low_workers":  1,
	"worker.max_retries":  5,
	"worker.lock_ttl":     3 * time.Minute,

	"eth.rpc_url":                   "",
	"eth.chain_id":                  0,
	"eth.contract_address":          "",
	"eth.contract_abi":              "",
	"eth.owner_account":             "",
	"eth.owner_key":                 "",
	"eth.max_fee_per_gas":           "2",
	"eth.max_priority_fee_per_gas":  "1",
	"eth.gas_escalation_multiplier": "1.2",
	"eth.gas_limit":                 0,
	"eth.min_balance_wei":           "200000",
	"eth.rpc_rate_limit":            0,
	"eth.rpc_burst":                 1,
	"eth.receipt_poll_interval":     500 * time.Millisecond,
	"eth.receipt_timeout":           120 * time.Second,

	"monitor.schedule":    "@every 1m",
	"monitor.stale_after": 10 * time.Minute,

	"sentry.dsn":         "",
	"sentry.environment": "",

	"aes_key": "",
}

// Load reads the configs from the file at path, if any, then from GATEWAY_* environment
// variables. A nested key like eth.rpc_url is read from GATEWAY_ETH_RPC_URL.
func Load(path string) (Configs, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default, AutomaticEnv only overrides keys viper knows about.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Configs{}, err
		}
	}

	var cfg Configs
	if err := v.Unmarshal(&cfg); err != nil {
		return Configs{}, err
	}

	if err := cfg.validate(); err != nil {
		return Configs{}, err
	}

	return cfg, nil
}

func (c Configs) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.database_url is required")
	}

	if len(c.Kafka.Brokers()) == 0 {
		return errors.New("kafka.addr is required")
	}

	if c.Kafka.HighTopic == c.Kafka.LowTopic {
		return errors.New("kafka.high_topic and kafka.low_topic must be different")
	}

	return nil
}

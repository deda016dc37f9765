package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for both cmd/node and cmd/coordinator.
// Each binary reads only the sections it needs; unused sections are
// harmless zero values.
type Config struct {
	Node    NodeConfig    `mapstructure:"node"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Flush   FlushConfig   `mapstructure:"flush"`
	Router  RouterConfig  `mapstructure:"router"`
	Storage StorageConfig `mapstructure:"storage"`
}

// NodeConfig identifies this process within the cluster.
type NodeConfig struct {
	ID string `mapstructure:"id"`
}

// ServerConfig contains the internal/api HTTP server's listen settings.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig contains internal/logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// FlushConfig configures the internal/flushpolicy worker this node runs
// over its internal/evbuffer.Buffer.
type FlushConfig struct {
	Strategy      string        `mapstructure:"strategy"` // size, interval, size_or_interval, manual
	DepthThreshold uint64       `mapstructure:"depth_threshold"`
	Period        time.Duration `mapstructure:"period"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
}

// RouterConfig seeds the coordinator's internal/shardrouter.ConfigSet at
// startup. No HTTP route changes the shard table afterwards.
type RouterConfig struct {
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	MaxElapsed     time.Duration  `mapstructure:"max_elapsed"`
	Shards         []ShardEntry   `mapstructure:"shards"`
}

// ShardEntry is one bootstrap entry for RouterConfig.Shards.
type ShardEntry struct {
	Element        string `mapstructure:"element"`   // user, group, group_to_group
	Operation      string `mapstructure:"operation"` // query, event
	HashRangeStart int32  `mapstructure:"hash_range_start"`
	BaseURL        string `mapstructure:"base_url"`
}

// StorageConfig selects and configures the internal/temporal
// StorageDriver this node persists its event log to.
type StorageConfig struct {
	Driver        string         `mapstructure:"driver"` // memory or postgres
	Postgres      PostgresConfig `mapstructure:"postgres"`
	CacheCapacity int            `mapstructure:"cache_capacity"`
}

// PostgresConfig mirrors internal/temporal/pgdriver.Config.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// Load reads configuration from config.yaml (optional) and environment
// variables (no prefix: LOG_LEVEL, SERVER_LISTEN_ADDR, STORAGE_POSTGRES_DSN,
// ...), falling back to defaults, then validates the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/accessmanager")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Validate checks for configuration errors that would otherwise surface
// confusingly deep inside a component's constructor.
func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("node.id must not be empty")
	}
	switch c.Flush.Strategy {
	case "size", "interval", "size_or_interval", "manual":
	default:
		return fmt.Errorf("flush.strategy %q is not one of size, interval, size_or_interval, manual", c.Flush.Strategy)
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn must not be empty when storage.driver is postgres")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of memory, postgres", c.Storage.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("flush.strategy", "size_or_interval")
	v.SetDefault("flush.depth_threshold", 200)
	v.SetDefault("flush.period", "2s")
	v.SetDefault("flush.poll_interval", "50ms")

	v.SetDefault("router.request_timeout", "5s")
	v.SetDefault("router.max_elapsed", "30s")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.cache_capacity", 1000)
	v.SetDefault("storage.postgres.max_conns", 10)
	v.SetDefault("storage.postgres.min_conns", 2)
	v.SetDefault("storage.postgres.max_conn_lifetime", "1h")
	v.SetDefault("storage.postgres.max_conn_idle_time", "10m")
}

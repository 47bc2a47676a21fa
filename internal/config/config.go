package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	Events   EventsConfig
	Tickets  TicketsConfig
	Limits   LimitsConfig
}

type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"localhost"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type StorageConfig struct {
	Driver    string `env:"STORAGE_DRIVER" envDefault:"memory"`
	BoltPath  string `env:"BOLT_PATH" envDefault:"tixledger.db"`
	TxRetries int    `env:"STORAGE_TX_RETRIES" envDefault:"5"`
}

type RedisConfig struct {
	Enabled     bool          `env:"REDIS_ENABLED" envDefault:"false"`
	Addr        string        `env:"REDIS_ADDR" envDefault:"localhost:6380"`
	Password    string        `env:"REDIS_PASSWORD"`
	DB          int           `env:"REDIS_DB" envDefault:"0"`
	PoolSize    int           `env:"REDIS_POOL_SIZE" envDefault:"0"`
	DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"3s"`
	OpTimeout   time.Duration `env:"REDIS_OP_TIMEOUT" envDefault:"1s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017/?replicaSet=rs0"`
	Database string `env:"MONGO_DB" envDefault:"tixledger"`
}

type PostgresConfig struct {
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Name     string `env:"POSTGRES_DB"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"0"`
}

// DSN renders the connection string with credentials escaped.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

type EventsConfig struct {
	RejectDuplicates bool `env:"EVENTS_REJECT_DUPLICATES" envDefault:"false"`
}

type TicketsConfig struct {
	OwnerLookup string `env:"TICKETS_OWNER_LOOKUP" envDefault:"scan"`
}

type LimitsConfig struct {
	RatePerMinute  int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"10"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"2h"`
}

// New loads configuration from the environment. Variables from envFiles are
// loaded first without overriding ones already set; when no file is given
// an optional .env in the working directory is used.
func New(envFiles ...string) (*Config, error) {
	const op = "config.New"

	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("%s: load env file: %w", op, err)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%s: parse env: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &cfg, nil
}

// Validate checks cross-field constraints. It is exported so callers that
// override fields after New can re-check the result.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverRedis:
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("missing MONGO_URI or MONGO_DB")
		}
	case DriverBolt:
		if c.Storage.BoltPath == "" {
			return fmt.Errorf("missing BOLT_PATH")
		}
	case DriverPostgres:
		if c.Postgres.User == "" {
			return fmt.Errorf("missing POSTGRES_USER")
		}
		if c.Postgres.Password == "" {
			return fmt.Errorf("missing POSTGRES_PASSWORD")
		}
		if c.Postgres.Name == "" {
			return fmt.Errorf("missing POSTGRES_DB")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	switch c.Tickets.OwnerLookup {
	case "index", "scan":
	default:
		return fmt.Errorf("unknown TICKETS_OWNER_LOOKUP %q", c.Tickets.OwnerLookup)
	}

	if c.Storage.TxRetries < 0 {
		return fmt.Errorf("invalid STORAGE_TX_RETRIES: %d", c.Storage.TxRetries)
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverBadger   = "badger"
	DriverMemory   = "memory"
)

// Config holds every setting of the relay service, read from the environment.
type Config struct {
	Port     int    `env:"PORT,default=8083"`
	GRPCPort int    `env:"GRPC_PORT,default=0"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	StoreDriver   string `env:"STORE_DRIVER,default=postgres"`
	DBDSN         string `env:"DB_DSN"`
	MongoURI      string `env:"MONGO_URI,default=mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE,default=social"`
	BadgerPath    string `env:"BADGER_PATH,default=./data/badger"`

	PersistTimeout time.Duration `env:"PERSIST_TIMEOUT,default=3s"`
	SendBufferSize int           `env:"SEND_BUFFER_SIZE,default=64"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT,default=10s"`

	JWTSecret string `env:"JWT_SECRET"`

	AMQPURL         string `env:"AMQP_URL"`
	AMQPExchange    string `env:"AMQP_EXCHANGE,default=relay.events"`
	AuditRoutingKey string `env:"AUDIT_ROUTING_KEY,default=audit.relay"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"SERVICE_NAME,default=message-relay"`
	Environment  string `env:"ENVIRONMENT,default=local"`
	DebugRoutes  bool   `env:"DEBUG_ROUTES,default=false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values the service cannot start without.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMongo, DriverBadger, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver == DriverPostgres && c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required for the postgres store")
	}
	if c.StoreDriver == DriverBadger && c.BadgerPath == "" {
		return fmt.Errorf("BADGER_PATH is required for the badger store")
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.PersistTimeout <= 0 {
		return fmt.Errorf("PERSIST_TIMEOUT must be positive")
	}
	if c.SendBufferSize <= 0 {
		return fmt.Errorf("SEND_BUFFER_SIZE must be positive")
	}
	return nil
}

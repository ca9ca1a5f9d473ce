package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full process configuration, read from the environment.
type Config struct {
	Server    Server    `envPrefix:"KYC_"`
	Log       Log       `envPrefix:"LOG_"`
	Database  Database  `envPrefix:"DATABASE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Kafka     Kafka     `envPrefix:"KAFKA_"`
	Provider  Provider  `envPrefix:"PROVIDER_"`
	Whitelist Whitelist `envPrefix:"WHITELIST_"`
	Admin     Admin     `envPrefix:"ADMIN_"`
	ErrorLog  ErrorLog  `envPrefix:"ERROR_LOG_"`
	GeoIP     GeoIP     `envPrefix:"GEOIP_"`
	Tracing   Tracing   `envPrefix:"OTEL_"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `env:"ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// ClaimTTL bounds how long one delivery of a callback holds its
	// transaction identifier before a redelivery may proceed.
	ClaimTTL time.Duration `env:"CLAIM_TTL" envDefault:"2m"`
	// TrustedProxies are CIDRs or addresses of reverse proxies whose
	// X-Real-IP / X-Forwarded-For headers are believed. Empty trusts none.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// Log selects level and output format ("json" or "text").
type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// Database configures PostgreSQL. An empty URL selects the in-memory stores.
type Database struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	Migrate         bool          `env:"MIGRATE" envDefault:"true"`
}

// Redis configures the callback claim store. An empty URL selects the
// in-memory claim, which only serialises within one process.
type Redis struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// Kafka configures audit event publishing. No brokers disables publishing.
type Kafka struct {
	Brokers           []string `env:"BROKERS" envSeparator:","`
	Topic             string   `env:"TOPIC" envDefault:"kyc.events"`
	Partitions        int32    `env:"PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"REPLICATION_FACTOR" envDefault:"1"`
	BufferSize        int      `env:"BUFFER_SIZE" envDefault:"1024"`
}

// Provider describes the identity-verification provider.
type Provider struct {
	Origin        string `env:"ORIGIN" envDefault:"https://regtech.identitymind.store"`
	KeyPath       string `env:"KEY_PATH" envDefault:"keys/provider_public.pem"`
	TestKeyPath   string `env:"TEST_KEY_PATH" envDefault:"keys/test_public.pem"`
	FormBaseURL   string `env:"FORM_BASE_URL" envDefault:"https://regtech.identitymind.store/viewform/"`
	GeneralFormID string `env:"GENERAL_FORM_ID" envDefault:"9ypwm"`
	VIPFormID     string `env:"VIP_FORM_ID" envDefault:"gxq27"`
}

// Whitelist configures the token-sale contract client. An empty RPC URL
// leaves on-chain operations unavailable.
type Whitelist struct {
	RPCURL           string        `env:"RPC_URL"`
	PrivateKey       string        `env:"PRIVATE_KEY"`
	SaleContract     string        `env:"SALE_CONTRACT"`
	TokenContract    string        `env:"TOKEN_CONTRACT"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"30s"`
	FailureThreshold int           `env:"FAILURE_THRESHOLD" envDefault:"5"`
	SuccessThreshold int           `env:"SUCCESS_THRESHOLD" envDefault:"2"`
	MinBalance       string        `env:"MIN_BALANCE" envDefault:"100"`
	ExplorerTxURL    string        `env:"EXPLORER_TX_URL" envDefault:"https://etherscan.io/tx/"`
}

// Admin holds operator credentials as name to bcrypt hash pairs,
// e.g. ADMIN_USERS="ops:$2a$10$...,vip_desk:$2a$10$...".
type Admin struct {
	Users map[string]string `env:"USERS" envSeparator:"," envKeyValSeparator:":"`
	Realm string            `env:"REALM" envDefault:"Login Required"`
}

// ErrorLog is where operator-visible failure records are written.
type ErrorLog struct {
	Dir string `env:"DIR" envDefault:"./logs"`
}

// GeoIP points at a MaxMind country database. Empty disables the US block
// on the general form.
type GeoIP struct {
	DBPath string `env:"DB_PATH"`
}

// Tracing configures span export. An empty endpoint disables it.
type Tracing struct {
	Endpoint    string  `env:"ENDPOINT"`
	ServiceName string  `env:"SERVICE_NAME" envDefault:"presale-kyc"`
	SampleRatio float64 `env:"SAMPLE_RATIO" envDefault:"1"`
}

// FromEnv loads an optional .env file and parses the environment.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

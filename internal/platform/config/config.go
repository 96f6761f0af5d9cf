package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strs "certvault/pkg/platform/strings"
)

// Backend names accepted by the *_BACKEND variables.
const (
	BackendMemory   = "memory"
	BackendEthereum = "ethereum"
	BackendPinata   = "pinata"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendNone     = "none"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	JWTSigningKey string
	TokenIssuer   string
	TokenAudience string

	// CallTimeout bounds each ledger and content store call.
	CallTimeout time.Duration

	Ledger   LedgerConfig
	Content  ContentConfig
	Gateways GatewayConfig
	Mirror   MirrorConfig
	Audit    AuditConfig
	Postgres PostgresConfig
	Redis    RedisConfig
}

// LedgerConfig selects and configures the ledger client.
type LedgerConfig struct {
	Backend         string
	RPCURL          string
	ContractAddress string
	ChainID         int64
	// SignerKey is a hex ECDSA key. Without it the ledger is read-only.
	SignerKey string
}

// ContentConfig selects and configures the content store used by issue.
type ContentConfig struct {
	Backend      string
	PinataKey    string
	PinataSecret string
	PinataURL    string
}

// GatewayConfig is the ordered gateway list used for retrieval. An empty
// list means the resolver's public defaults.
type GatewayConfig struct {
	URLs         []string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// MirrorConfig configures the best-effort mirror of issued records.
type MirrorConfig struct {
	Backend      string
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
	RedisTTL     time.Duration
}

// AuditConfig configures where audit events go.
type AuditConfig struct {
	// Outbox writes events to Postgres and relays them to Kafka.
	Outbox        bool
	KafkaBrokers  []string
	TopicPrefix   string
	AsyncBuffer   int
	RelayInterval time.Duration
}

// PostgresConfig is shared by the mirror store and the audit outbox.
type PostgresConfig struct {
	DSN string
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := Server{
		Addr:          p.str("CERTVAULT_ADDR", ":8080"),
		Environment:   p.str("CERTVAULT_ENV", "development"),
		LogLevel:      p.str("LOG_LEVEL", "info"),
		JWTSigningKey: p.str("JWT_SIGNING_KEY", ""),
		TokenIssuer:   p.str("JWT_ISSUER", "certvault"),
		TokenAudience: p.str("JWT_AUDIENCE", "certvault-api"),
		CallTimeout:   p.duration("LEDGER_CALL_TIMEOUT", 30*time.Second),
		Ledger: LedgerConfig{
			Backend:         p.str("LEDGER_BACKEND", BackendMemory),
			RPCURL:          p.str("ETH_RPC_URL", ""),
			ContractAddress: p.str("ETH_CONTRACT_ADDRESS", ""),
			ChainID:         int64(p.integer("ETH_CHAIN_ID", 1337)),
			SignerKey:       p.str("ETH_SIGNER_KEY", ""),
		},
		Content: ContentConfig{
			Backend:      p.str("CONTENT_BACKEND", BackendMemory),
			PinataKey:    p.str("PINATA_API_KEY", ""),
			PinataSecret: p.str("PINATA_SECRET_API_KEY", ""),
			PinataURL:    p.str("PINATA_API_URL", ""),
		},
		Gateways: GatewayConfig{
			URLs:         p.list("IPFS_GATEWAYS", nil),
			Timeout:      p.duration("GATEWAY_TIMEOUT", 15*time.Second),
			MaxBodyBytes: int64(p.integer("GATEWAY_MAX_BODY_BYTES", 32<<20)),
		},
		Mirror: MirrorConfig{
			Backend:      p.str("MIRROR_BACKEND", BackendNone),
			QueueSize:    p.integer("MIRROR_QUEUE_SIZE", 256),
			Workers:      p.integer("MIRROR_WORKERS", 2),
			WriteTimeout: p.duration("MIRROR_WRITE_TIMEOUT", 5*time.Second),
			RedisTTL:     p.duration("MIRROR_REDIS_TTL", 0),
		},
		Audit: AuditConfig{
			Outbox:        p.boolean("AUDIT_OUTBOX", false),
			KafkaBrokers:  p.list("KAFKA_BROKERS", nil),
			TopicPrefix:   p.str("AUDIT_TOPIC_PREFIX", "certvault.audit."),
			AsyncBuffer:   p.integer("AUDIT_ASYNC_BUFFER", 1024),
			RelayInterval: p.duration("AUDIT_RELAY_INTERVAL", time.Second),
		},
		Postgres: PostgresConfig{
			DSN: p.str("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	if cfg.JWTSigningKey == "" && !cfg.IsProduction() {
		// Use a default for development - must be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if err := errors.Join(errs...); err != nil {
		return Server{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Validate checks that every selected backend has what it needs.
func (s Server) Validate() error {
	var errs []error
	if s.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required in production"))
	}

	switch s.Ledger.Backend {
	case BackendMemory:
	case BackendEthereum:
		if s.Ledger.RPCURL == "" || s.Ledger.ContractAddress == "" {
			errs = append(errs, errors.New("ETH_RPC_URL and ETH_CONTRACT_ADDRESS are required for the ethereum ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_BACKEND %q", s.Ledger.Backend))
	}

	switch s.Content.Backend {
	case BackendMemory:
	case BackendPinata:
		if s.Content.PinataKey == "" || s.Content.PinataSecret == "" {
			errs = append(errs, errors.New("PINATA_API_KEY and PINATA_SECRET_API_KEY are required for pinata"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CONTENT_BACKEND %q", s.Content.Backend))
	}
	if s.CallTimeout <= 0 {
		errs = append(errs, errors.New("LEDGER_CALL_TIMEOUT must be positive"))
	}

	switch s.Mirror.Backend {
	case BackendNone, BackendMemory:
	case BackendPostgres:
		if s.Postgres.DSN == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres mirror"))
		}
	case BackendRedis:
		if s.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis mirror"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MIRROR_BACKEND %q", s.Mirror.Backend))
	}

	if s.Audit.Outbox {
		if s.Postgres.DSN == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the audit outbox"))
		}
		if len(s.Audit.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the audit outbox"))
		}
	}
	return errors.Join(errs...)
}

type parser struct {
	errs *[]error
}

func (p parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p parser) integer(key string, def int) int {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p parser) boolean(key string, def bool) bool {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p parser) list(key string, def []string) []string {
	raw := p.str(key, "")
	if raw == "" {
		return append([]string(nil), def...)
	}
	return strs.SplitList(raw)
}

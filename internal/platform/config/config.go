package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	id "proofid/pkg/domain"
	pstrings "proofid/pkg/platform/strings"
)

// DevSigningKey is used when JWT_SIGNING_KEY is unset. Never use it in production.
const DevSigningKey = "dev-secret-key-change-in-production"

// ErrDevSigningKey is returned by CheckSigningKey when the public development
// key is configured without AllowDevKey.
var ErrDevSigningKey = errors.New("JWT_SIGNING_KEY is not set; refusing to sign with the development key")

// Server captures process level configuration.
type Server struct {
	Addr      string
	Admins    []string
	LogLevel  string
	LogFormat string

	JWT       JWTConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Records   RecordsConfig
	RateLimit RateLimitConfig
}

type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
	// AllowDevKey permits DevSigningKey. Local development only.
	AllowDevKey bool
}

// DatabaseConfig selects PostgreSQL persistence when URL is set.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig selects the Redis identity store when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables audit streaming when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

type RecordsConfig struct {
	// CreateExpr, when set, is an attribute expression every record creator's
	// identity must satisfy in addition to being valid.
	CreateExpr string
}

// RateLimitConfig sets sliding-window request budgets. A zero limit disables
// that budget. Buckets live in Redis when REDIS_URL is set.
type RateLimitConfig struct {
	ClientLimit    int
	PrincipalLimit int
	Window         time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:      getEnv("PROOFID_ADDR", ":8080"),
		Admins:    pstrings.SplitList(os.Getenv("PROOFID_ADMINS"), ","),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		JWT: JWTConfig{
			SigningKey: getEnv("JWT_SIGNING_KEY", DevSigningKey),
			Issuer:     getEnv("JWT_ISSUER", "proofid"),
			Audience:   getEnv("JWT_AUDIENCE", "proofid-api"),
			TokenTTL:   getEnvDuration("JWT_TOKEN_TTL", time.Hour),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    pstrings.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "proofid.audit"),
		},
		Records: RecordsConfig{
			CreateExpr: os.Getenv("RECORDS_CREATE_EXPR"),
		},
		RateLimit: RateLimitConfig{
			ClientLimit:    getEnvInt("RATE_LIMIT_CLIENT", 600),
			PrincipalLimit: getEnvInt("RATE_LIMIT_PRINCIPAL", 120),
			Window:         getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}
}

// AdminPrincipals parses the configured admin set. An empty set is an error:
// without an admin no identity can ever be issued.
func (s Server) AdminPrincipals() ([]id.Principal, error) {
	if len(s.Admins) == 0 {
		return nil, errors.New("PROOFID_ADMINS must list at least one admin principal")
	}
	admins := make([]id.Principal, 0, len(s.Admins))
	for _, raw := range s.Admins {
		p, err := id.ParsePrincipal(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid admin principal %q: %w", raw, err)
		}
		admins = append(admins, p)
	}
	return admins, nil
}

// UsesDevSigningKey reports whether the insecure default key is in effect.
func (s Server) UsesDevSigningKey() bool {
	return s.JWT.SigningKey == DevSigningKey
}

// CheckSigningKey rejects an empty key, and the development key unless
// AllowDevKey is set. Anyone can mint admin tokens with a public key.
func (s Server) CheckSigningKey() error {
	if s.JWT.SigningKey == "" {
		return errors.New("JWT signing key is empty")
	}
	if s.UsesDevSigningKey() && !s.JWT.AllowDevKey {
		return ErrDevSigningKey
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

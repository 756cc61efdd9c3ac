package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"PROOFID_ADDR", "PROOFID_ADMINS", "JWT_SIGNING_KEY", "DATABASE_URL", "KAFKA_BROKERS", "JWT_TOKEN_TTL", "RATE_LIMIT_CLIENT", "RATE_LIMIT_PRINCIPAL", "RATE_LIMIT_WINDOW"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.True(t, cfg.UsesDevSigningKey())
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "proofid.audit", cfg.Kafka.AuditTopic)
	assert.Equal(t, time.Hour, cfg.JWT.TokenTTL)
	assert.Equal(t, 600, cfg.RateLimit.ClientLimit)
	assert.Equal(t, 120, cfg.RateLimit.PrincipalLimit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)

	_, err := cfg.AdminPrincipals()
	require.Error(t, err, "empty admin set must be rejected")
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PROOFID_ADDR", ":9090")
	t.Setenv("PROOFID_ADMINS", "0x00000000000000000000000000000000000000AD, 0x00000000000000000000000000000000000000ad")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("JWT_TOKEN_TTL", "15m")
	t.Setenv("RECORDS_CREATE_EXPR", `country == "GB"`)
	t.Setenv("RATE_LIMIT_PRINCIPAL", "0")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, cfg.JWT.TokenTTL)
	assert.Equal(t, `country == "GB"`, cfg.Records.CreateExpr)
	assert.Zero(t, cfg.RateLimit.PrincipalLimit)

	admins, err := cfg.AdminPrincipals()
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "0x00000000000000000000000000000000000000ad", admins[0].String())
}

func TestCheckSigningKey(t *testing.T) {
	t.Run("development key refused by default", func(t *testing.T) {
		cfg := Server{JWT: JWTConfig{SigningKey: DevSigningKey}}
		assert.ErrorIs(t, cfg.CheckSigningKey(), ErrDevSigningKey)
	})

	t.Run("development key allowed when opted in", func(t *testing.T) {
		cfg := Server{JWT: JWTConfig{SigningKey: DevSigningKey, AllowDevKey: true}}
		assert.NoError(t, cfg.CheckSigningKey())
	})

	t.Run("empty key refused", func(t *testing.T) {
		cfg := Server{JWT: JWTConfig{AllowDevKey: true}}
		assert.Error(t, cfg.CheckSigningKey())
	})

	t.Run("configured key accepted", func(t *testing.T) {
		cfg := Server{JWT: JWTConfig{SigningKey: "a-real-secret"}}
		assert.NoError(t, cfg.CheckSigningKey())
	})
}

func TestAdminPrincipals_RejectsMalformed(t *testing.T) {
	cfg := Server{Admins: []string{"not-an-address"}}
	_, err := cfg.AdminPrincipals()
	assert.Error(t, err)
}

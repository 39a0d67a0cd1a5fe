package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/idp")
	t.Setenv("ID_ENCRYPTION_KEY", "secret")
	t.Setenv("FRONTEND_ROOT", "https://front.example/")
	t.Setenv("OPENID_ISSUER", "https://idp.example")
	t.Setenv("OPENID_SIGNING_KEY_PATH", "/keys/signing.pem")
}

func TestFromEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REQUEST_TIMEOUT", "5s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "https://front.example", cfg.FrontendRoot)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "oauth-provider.audit", cfg.AuditTopic)
}

func TestFlagsOverrideEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("ADDR", ":9000")

	v := viper.New()
	Defaults(v)
	v.Set(KeyAddr, ":9999")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
}

func TestValidation(t *testing.T) {
	t.Run("missing required values", func(t *testing.T) {
		t.Setenv("STORE", "memory")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ID_ENCRYPTION_KEY is required")
		assert.Contains(t, err.Error(), "OPENID_ISSUER is required")
		assert.NotContains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("unknown store", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STORE", "redis")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "STORE must be")
	})
}

func TestLoadDatabase(t *testing.T) {
	v := viper.New()
	Defaults(v)
	_, err := LoadDatabase(v)
	assert.ErrorContains(t, err, "DATABASE_URL is required")

	t.Setenv("DATABASE_URL", "postgres://localhost/idp")
	t.Setenv("RELAY_POLL_INTERVAL", "2s")
	cfg, err := LoadDatabase(v)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/idp", cfg.DatabaseURL)
	assert.Equal(t, 2*time.Second, cfg.RelayPollInterval)
	assert.Equal(t, 100, cfg.RelayBatchSize)
}

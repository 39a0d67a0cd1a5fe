package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the process configuration, read from the environment and
// optionally overridden by command line flags bound to the same keys.
type Config struct {
	Addr            string
	Store           string
	DatabaseURL     string
	IDEncryptionKey string
	FrontendRoot    string
	Issuer          string
	SigningKeyPath  string
	SigningKeyID    string

	IdentityServiceURL string
	ProfileServiceURL  string
	ImageServiceURL    string

	KafkaBrokers      []string
	AuditTopic        string
	RelayBatchSize    int
	RelayPollInterval time.Duration

	LogLevel        string
	LogFormat       string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Keys are the viper keys; each maps to the upper-case environment variable
// of the same name.
const (
	KeyAddr               = "addr"
	KeyStore              = "store"
	KeyDatabaseURL        = "database_url"
	KeyIDEncryptionKey    = "id_encryption_key"
	KeyFrontendRoot       = "frontend_root"
	KeyIssuer             = "openid_issuer"
	KeySigningKeyPath     = "openid_signing_key_path"
	KeySigningKeyID       = "openid_signing_key_id"
	KeyIdentityServiceURL = "identity_service_url"
	KeyProfileServiceURL  = "profile_service_url"
	KeyImageServiceURL    = "image_service_url"
	KeyKafkaBrokers       = "kafka_brokers"
	KeyAuditTopic         = "audit_topic"
	KeyRelayBatchSize     = "relay_batch_size"
	KeyRelayPollInterval  = "relay_poll_interval"
	KeyLogLevel           = "log_level"
	KeyLogFormat          = "log_format"
	KeyRequestTimeout     = "request_timeout"
	KeyShutdownTimeout    = "shutdown_timeout"
)

var allKeys = []string{
	KeyAddr, KeyStore, KeyDatabaseURL, KeyIDEncryptionKey, KeyFrontendRoot, KeyIssuer,
	KeySigningKeyPath, KeySigningKeyID, KeyIdentityServiceURL, KeyProfileServiceURL,
	KeyImageServiceURL, KeyKafkaBrokers, KeyAuditTopic, KeyRelayBatchSize, KeyRelayPollInterval,
	KeyLogLevel, KeyLogFormat, KeyRequestTimeout, KeyShutdownTimeout,
}

// Defaults installs default values and environment bindings on v.
func Defaults(v *viper.Viper) {
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyStore, StorePostgres)
	v.SetDefault(KeyAuditTopic, "oauth-provider.audit")
	v.SetDefault(KeyRelayBatchSize, 100)
	v.SetDefault(KeyRelayPollInterval, 5*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyRequestTimeout, 30*time.Second)
	v.SetDefault(KeyShutdownTimeout, 10*time.Second)

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about; bind the
	// rest explicitly so Unmarshal-free reads still see them.
	for _, key := range allKeys {
		_ = v.BindEnv(key)
	}
}

// Load reads the full server configuration from v. Call Defaults first.
func Load(v *viper.Viper) (Config, error) {
	cfg := read(v)
	return cfg, cfg.validate()
}

// LoadDatabase reads v for commands that only talk to Postgres (migrate,
// relay) and so need DATABASE_URL but none of the signing material.
func LoadDatabase(v *viper.Viper) (Config, error) {
	cfg := read(v)
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("%s is required", strings.ToUpper(KeyDatabaseURL))
	}
	return cfg, nil
}

func read(v *viper.Viper) Config {
	return Config{
		Addr:               v.GetString(KeyAddr),
		Store:              strings.ToLower(v.GetString(KeyStore)),
		DatabaseURL:        v.GetString(KeyDatabaseURL),
		IDEncryptionKey:    v.GetString(KeyIDEncryptionKey),
		FrontendRoot:       strings.TrimRight(v.GetString(KeyFrontendRoot), "/"),
		Issuer:             v.GetString(KeyIssuer),
		SigningKeyPath:     v.GetString(KeySigningKeyPath),
		SigningKeyID:       v.GetString(KeySigningKeyID),
		IdentityServiceURL: v.GetString(KeyIdentityServiceURL),
		ProfileServiceURL:  v.GetString(KeyProfileServiceURL),
		ImageServiceURL:    v.GetString(KeyImageServiceURL),
		KafkaBrokers:       splitList(v.GetString(KeyKafkaBrokers)),
		AuditTopic:         v.GetString(KeyAuditTopic),
		RelayBatchSize:     v.GetInt(KeyRelayBatchSize),
		RelayPollInterval:  v.GetDuration(KeyRelayPollInterval),
		LogLevel:           v.GetString(KeyLogLevel),
		LogFormat:          v.GetString(KeyLogFormat),
		RequestTimeout:     v.GetDuration(KeyRequestTimeout),
		ShutdownTimeout:    v.GetDuration(KeyShutdownTimeout),
	}
}

// FromEnv loads configuration from the environment only.
func FromEnv() (Config, error) {
	v := viper.New()
	Defaults(v)
	return Load(v)
}

func (c Config) validate() error {
	var errs []error
	require := func(value, key string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", strings.ToUpper(key)))
		}
	}
	switch c.Store {
	case StorePostgres:
		require(c.DatabaseURL, KeyDatabaseURL)
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store))
	}
	require(c.IDEncryptionKey, KeyIDEncryptionKey)
	require(c.FrontendRoot, KeyFrontendRoot)
	require(c.Issuer, KeyIssuer)
	require(c.SigningKeyPath, KeySigningKeyPath)
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

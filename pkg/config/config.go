package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/osvaldoandrade/budgetauth/pkg/persistence"
)

// Development secrets. Validate rejects them outside env=dev.
const (
	devAccessSecret  = "local-dev-access-secret-not-for-production"
	devRefreshSecret = "local-dev-refresh-secret-not-for-production"
)

const minSecretLength = 32

var knownWeakSecrets = []string{
	devAccessSecret,
	devRefreshSecret,
	"secret",
	"changeme",
	"jwt-secret",
	"your-secret-key",
	"your-refresh-secret-key",
}

type DirectoryConfig struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

// Provider converts the section into the registry's raw form.
func (d DirectoryConfig) Provider() (persistence.ProviderConfig, error) {
	raw := json.RawMessage("{}")
	if len(d.Config) > 0 {
		b, err := json.Marshal(d.Config)
		if err != nil {
			return persistence.ProviderConfig{}, fmt.Errorf("directory config: %w", err)
		}
		raw = b
	}
	return persistence.ProviderConfig{Type: d.Type, Config: raw}, nil
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

type Config struct {
	Port      int    `yaml:"port"`
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	RedisURL                   string `yaml:"redisUrl"`
	RedisConnectTimeoutSeconds int    `yaml:"redisConnectTimeoutSeconds"`
	RedisMaxConnectAttempts    int    `yaml:"redisMaxConnectAttempts"`
	RedisBackoffPolicy         string `yaml:"redisBackoffPolicy"`
	RedisBackoffBaseMillis     int    `yaml:"redisBackoffBaseMillis"`
	RedisBackoffMaxMillis      int    `yaml:"redisBackoffMaxMillis"`

	RevocationCheckTimeoutMillis     int `yaml:"revocationCheckTimeoutMillis"`
	RevocationCleanupIntervalSeconds int `yaml:"revocationCleanupIntervalSeconds"`

	JWTAccessSecret           string        `yaml:"jwtAccessSecret"`
	JWTRefreshSecret          string        `yaml:"jwtRefreshSecret"`
	AccessTokenTTL            time.Duration `yaml:"accessTokenTtl"`
	RefreshTokenTTL           time.Duration `yaml:"refreshTokenTtl"`
	InvitationTokenTTL        time.Duration `yaml:"invitationTokenTtl"`
	EmailVerificationTokenTTL time.Duration `yaml:"emailVerificationTokenTtl"`
	PasswordResetTokenTTL     time.Duration `yaml:"passwordResetTokenTtl"`

	Directory   DirectoryConfig `yaml:"directory"`
	AdminAPIKey string          `yaml:"adminApiKey"`
	Tracing     TracingConfig   `yaml:"tracing"`
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// LoadConfigOptional treats an empty path or a missing file as an empty
// document, so env overrides and defaults alone can configure the service.
func LoadConfigOptional(filePath string) (*Config, error) {
	if strings.TrimSpace(filePath) == "" {
		return parse(nil)
	}
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return parse(nil)
	}
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	var c Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.applyDefaults()
	log.Printf("Auth Config: {Port:%d Env:%s Redis:%s Directory:%s AccessTTL:%s RefreshTTL:%s}\n",
		c.Port, c.Env, redactURL(c.RedisURL), c.Directory.Type, c.AccessTokenTTL, c.RefreshTokenTTL)
	return &c, nil
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

func (c *Config) applyEnv() error {
	envInt("PORT", &c.Port)
	envString("APP_ENV", &c.Env)
	envString("LOG_LEVEL", &c.LogLevel)
	envString("LOG_FORMAT", &c.LogFormat)
	envString("REDIS_URL", &c.RedisURL)
	envInt("REDIS_CONNECT_TIMEOUT_SECONDS", &c.RedisConnectTimeoutSeconds)
	envInt("REDIS_MAX_CONNECT_ATTEMPTS", &c.RedisMaxConnectAttempts)
	envString("REDIS_BACKOFF_POLICY", &c.RedisBackoffPolicy)
	envInt("REDIS_BACKOFF_BASE_MILLIS", &c.RedisBackoffBaseMillis)
	envInt("REDIS_BACKOFF_MAX_MILLIS", &c.RedisBackoffMaxMillis)
	envInt("REVOCATION_CHECK_TIMEOUT_MILLIS", &c.RevocationCheckTimeoutMillis)
	envInt("REVOCATION_CLEANUP_INTERVAL_SECONDS", &c.RevocationCleanupIntervalSeconds)
	envString("JWT_SECRET", &c.JWTAccessSecret)
	envString("JWT_REFRESH_SECRET", &c.JWTRefreshSecret)
	envString("ADMIN_API_KEY", &c.AdminAPIKey)
	envString("DIRECTORY_TYPE", &c.Directory.Type)
	if v := os.Getenv("DATABASE_URL"); v != "" {
		if c.Directory.Config == nil {
			c.Directory.Config = map[string]any{}
		}
		c.Directory.Config["dsn"] = v
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		c.Tracing.Enabled = parseBool(v)
	}

	for name, dst := range map[string]*time.Duration{
		"JWT_EXPIRES_IN":               &c.AccessTokenTTL,
		"JWT_REFRESH_EXPIRES_IN":       &c.RefreshTokenTTL,
		"INVITATION_TOKEN_TTL":         &c.InvitationTokenTTL,
		"EMAIL_VERIFICATION_TOKEN_TTL": &c.EmailVerificationTokenTTL,
		"PASSWORD_RESET_TOKEN_TTL":     &c.PasswordResetTokenTTL,
	} {
		if err := envDuration(name, dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.RedisURL == "" {
		c.RedisURL = "redis://localhost:6379/0"
	}
	if c.RedisConnectTimeoutSeconds <= 0 {
		c.RedisConnectTimeoutSeconds = 30
	}
	if c.RedisMaxConnectAttempts <= 0 {
		c.RedisMaxConnectAttempts = 5
	}
	if c.RedisBackoffPolicy == "" {
		c.RedisBackoffPolicy = "exponential"
	}
	if c.RedisBackoffBaseMillis <= 0 {
		c.RedisBackoffBaseMillis = 100
	}
	if c.RedisBackoffMaxMillis <= 0 {
		c.RedisBackoffMaxMillis = 5000
	}
	if c.RevocationCheckTimeoutMillis <= 0 {
		c.RevocationCheckTimeoutMillis = 250
	}
	if c.RevocationCleanupIntervalSeconds <= 0 {
		c.RevocationCleanupIntervalSeconds = 300
	}
	if c.IsDev() {
		if c.JWTAccessSecret == "" {
			log.Println("Warning: jwtAccessSecret not set, using development secret")
			c.JWTAccessSecret = devAccessSecret
		}
		if c.JWTRefreshSecret == "" {
			log.Println("Warning: jwtRefreshSecret not set, using development secret")
			c.JWTRefreshSecret = devRefreshSecret
		}
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.InvitationTokenTTL <= 0 {
		c.InvitationTokenTTL = 24 * time.Hour
	}
	if c.EmailVerificationTokenTTL <= 0 {
		c.EmailVerificationTokenTTL = 24 * time.Hour
	}
	if c.PasswordResetTokenTTL <= 0 {
		c.PasswordResetTokenTTL = time.Hour
	}
	if c.Directory.Type == "" {
		c.Directory.Type = "memory"
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
}

func (c *Config) IsDev() bool {
	return strings.ToLower(strings.TrimSpace(c.Env)) == "dev"
}

// UsesMemoryStore reports whether revocations live in process memory.
func (c *Config) UsesMemoryStore() bool {
	return strings.HasPrefix(strings.TrimSpace(c.RedisURL), "memory://")
}

func (c *Config) Validate() error {
	var errs []string
	dev := c.IsDev()

	errs = append(errs, validateSecret("jwtAccessSecret", c.JWTAccessSecret, dev)...)
	errs = append(errs, validateSecret("jwtRefreshSecret", c.JWTRefreshSecret, dev)...)
	if c.JWTAccessSecret != "" && c.JWTAccessSecret == c.JWTRefreshSecret && !dev {
		errs = append(errs, "jwtAccessSecret and jwtRefreshSecret must differ")
	}
	if strings.TrimSpace(c.AdminAPIKey) == "" && !dev {
		errs = append(errs, "adminApiKey is required in non-dev")
	}
	if c.UsesMemoryStore() && !dev {
		errs = append(errs, "redisUrl memory:// is only allowed in dev")
	}
	if c.AccessTokenTTL > c.RefreshTokenTTL {
		errs = append(errs, "accessTokenTtl must not exceed refreshTokenTtl")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSecret(name, secret string, dev bool) []string {
	if secret == "" {
		return []string{name + " is required"}
	}
	if dev {
		return nil
	}
	for _, weak := range knownWeakSecrets {
		if secret == weak {
			return []string{name + " is a default/weak secret, not allowed in non-dev"}
		}
	}
	if len(secret) < minSecretLength {
		return []string{fmt.Sprintf("%s must be at least %d characters (got %d)", name, minSecretLength, len(secret))}
	}
	return nil
}

// ParseDuration accepts Go durations plus a whole-day suffix ("7d").
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	return d, nil
}

func parseBool(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1" || v == "yes" || v == "y" || v == "on"
}

func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	return raw[:scheme+3] + "***" + raw[at:]
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	RateLimit    RateLimitConfig
	DisplaySync  DisplaySyncConfig
	Search       SearchConfig
	Audit        AuditConfig
	GCP          GCPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		if cfg.DB.SQLitePath == "" {
			return nil, fmt.Errorf("%s is required when %s is set", EnvDBSQLitePath, EnvUseSQLite)
		}
		return &cfg, nil
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FRANCHISEPOS_APP_ENV" required:"true"`
	Port         string `envconfig:"FRANCHISEPOS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FRANCHISEPOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FRANCHISEPOS_LOG_WARN_STACK" default:"false"`
	// Origins allowed to call the API from a browser, e.g. the customer display.
	CORSOrigins []string `envconfig:"FRANCHISEPOS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"FRANCHISEPOS_DB_DSN"`
	Driver     string `envconfig:"FRANCHISEPOS_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"FRANCHISEPOS_DB_SQLITE_PATH"`

	LegacyHost     string `envconfig:"FRANCHISEPOS_DB_HOST"`
	LegacyPort     int    `envconfig:"FRANCHISEPOS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FRANCHISEPOS_DB_USER"`
	LegacyPassword string `envconfig:"FRANCHISEPOS_DB_PASSWORD"`
	LegacyName     string `envconfig:"FRANCHISEPOS_DB_NAME"`
	LegacySSLMode  string `envconfig:"FRANCHISEPOS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FRANCHISEPOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FRANCHISEPOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FRANCHISEPOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FRANCHISEPOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FRANCHISEPOS_REDIS_URL"`
	Address      string        `envconfig:"FRANCHISEPOS_REDIS_ADDR"`
	Password     string        `envconfig:"FRANCHISEPOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"FRANCHISEPOS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FRANCHISEPOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FRANCHISEPOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FRANCHISEPOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FRANCHISEPOS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FRANCHISEPOS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FRANCHISEPOS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FRANCHISEPOS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FRANCHISEPOS_JWT_EXPIRATION_MINUTES" default:"480"`
}

// LoadJWT reads only the signing settings, for tools that mint tokens offline.
func LoadJWT() (JWTConfig, error) {
	var cfg JWTConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return JWTConfig{}, fmt.Errorf("parsing jwt config: %w", err)
	}
	return cfg, nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FRANCHISEPOS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FRANCHISEPOS_AUTO_MIGRATE" default:"false"`
}

type RateLimitConfig struct {
	TenantRequestsPerSecond float64 `envconfig:"FRANCHISEPOS_RATE_LIMIT_TENANT_RPS" default:"50"`
	TenantBurst             int     `envconfig:"FRANCHISEPOS_RATE_LIMIT_TENANT_BURST" default:"100"`
}

type DisplaySyncConfig struct {
	StateTTL          time.Duration `envconfig:"FRANCHISEPOS_DISPLAY_STATE_TTL" default:"12h"`
	MaxWait           time.Duration `envconfig:"FRANCHISEPOS_DISPLAY_MAX_WAIT" default:"25s"`
	WritesPerSecond   float64       `envconfig:"FRANCHISEPOS_DISPLAY_WRITES_PER_SECOND" default:"10"`
	WriteBurst        int           `envconfig:"FRANCHISEPOS_DISPLAY_WRITE_BURST" default:"20"`
	ProcessingTimeout time.Duration `envconfig:"FRANCHISEPOS_DISPLAY_PROCESSING_TIMEOUT" default:"2m"`
}

type SearchConfig struct {
	DefaultLimit int `envconfig:"FRANCHISEPOS_SEARCH_DEFAULT_LIMIT" default:"10"`
	MaxLimit     int `envconfig:"FRANCHISEPOS_SEARCH_MAX_LIMIT" default:"50"`
}

type AuditConfig struct {
	Topic          string        `envconfig:"FRANCHISEPOS_AUDIT_TOPIC" default:"pos-audit-events"`
	BatchSize      int           `envconfig:"FRANCHISEPOS_AUDIT_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"FRANCHISEPOS_AUDIT_PUBLISH_POLL_MS" default:"1000"`
	MaxAttempts    int           `envconfig:"FRANCHISEPOS_AUDIT_MAX_ATTEMPTS" default:"10"`
	LockTTL        time.Duration `envconfig:"FRANCHISEPOS_AUDIT_LOCK_TTL" default:"30s"`
	// MetricsAddr serves /metrics from the publisher when set, e.g. ":9091".
	MetricsAddr string `envconfig:"FRANCHISEPOS_AUDIT_METRICS_ADDR"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"FRANCHISEPOS_GCP_PROJECT_ID"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

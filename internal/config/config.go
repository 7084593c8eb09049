package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type HTTPTimeoutsConfig struct {
	Read     time.Duration
	Idle     time.Duration
	Write    time.Duration
	Shutdown time.Duration // how long we give the shutdown process to gracefully terminate
}

type HTTPConfig struct {
	Port           int
	Timeouts       HTTPTimeoutsConfig
	AllowedOrigins []string
}

type RateLimiterConfig struct {
	RPS   int
	Burst int
}

type LoggerConfig struct {
	Level slog.Level
}

type AppConfig struct {
	Name        string
	Environment string // 'dev' | 'prod'
}

type DBConfig struct {
	Driver      string // 'sqlite' | 'mysql'
	DSN         string // file path for sqlite, go-sql-driver DSN for mysql
	AutoMigrate bool
}

type ProxyConfig struct {
	Trusted bool
}

type TelemetryConfig struct {
	EnableTelemetry bool
	OtelEndpoint    string
}

type AuthConfig struct {
	SessionLifetime time.Duration
	SecureCookies   bool
	LoginRPS        float64
	LoginBurst      int
}

type UploadsConfig struct {
	Dir       string
	URLPrefix string
	MaxBytes  int64
	Replicate bool // mirror promoted images to S3
}

// ImagesConfig mirrors imaging.Options so the pipeline can be tuned without a rebuild.
type ImagesConfig struct {
	Ceiling             int64
	MaxDimension        int
	EscalationDimension int
	InitialQuality      int
	NormalizeQuality    int
	QualityStep         int
	QualityFloor        int
	MaxAttempts         int
	EscalationQuality   int
	LastResortQuality   int
	Tolerance           float64
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
}

type CacheConfig struct {
	RedisURL string // empty disables caching
	TTL      time.Duration
}

type Config struct {
	App     AppConfig
	DB      DBConfig
	Proxy   ProxyConfig
	HTTP    HTTPConfig
	Limiter RateLimiterConfig
	Logger  LoggerConfig
	Metrics TelemetryConfig
	Auth    AuthConfig
	Uploads UploadsConfig
	Images  ImagesConfig
	S3      S3Config
	Cache   CacheConfig
}

func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "blogpress",
			Environment: "prod",
		},
		DB: DBConfig{
			Driver:      "sqlite",
			DSN:         "blogpress.db",
			AutoMigrate: true,
		},
		Proxy: ProxyConfig{
			Trusted: true,
		},
		HTTP: HTTPConfig{
			Port: 5000,
			Timeouts: HTTPTimeoutsConfig{
				Read:     15 * time.Second, // multipart uploads up to 5MB
				Write:    30 * time.Second,
				Idle:     10 * time.Minute,
				Shutdown: 10 * time.Second,
			},
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Limiter: RateLimiterConfig{
			RPS:   20,
			Burst: 50,
		},
		Logger: LoggerConfig{
			Level: slog.LevelInfo,
		},
		Metrics: TelemetryConfig{
			OtelEndpoint: "localhost:4318",
		},
		Auth: AuthConfig{
			SessionLifetime: 24 * time.Hour,
			SecureCookies:   true,
			LoginRPS:        0.2,
			LoginBurst:      5,
		},
		Uploads: UploadsConfig{
			Dir:       "./uploads",
			URLPrefix: "/uploads",
			MaxBytes:  5 << 20,
		},
		Images: ImagesConfig{
			Ceiling:             1 << 20,
			MaxDimension:        1920,
			EscalationDimension: 1600,
			InitialQuality:      85,
			NormalizeQuality:    85,
			QualityStep:         10,
			QualityFloor:        50,
			MaxAttempts:         5,
			EscalationQuality:   75,
			LastResortQuality:   70,
			Tolerance:           1.2,
		},
		S3: S3Config{
			Region: "garage",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
	}
}

func LoadWithDefaults() *Config {
	defaults := DefaultConfig()
	return &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", defaults.App.Name),
			Environment: getEnv("APP_ENV", defaults.App.Environment),
		},
		DB: DBConfig{
			Driver:      strings.ToLower(getEnv("DB_DRIVER", defaults.DB.Driver)),
			DSN:         getEnv("DB_DSN", getEnv("DB_PATH", defaults.DB.DSN)),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", defaults.DB.AutoMigrate),
		},
		Proxy: ProxyConfig{
			Trusted: getEnvAsBool("PROXY_TRUSTED", defaults.Proxy.Trusted),
		},
		HTTP: HTTPConfig{
			Port: getEnvAsInt("HTTP_PORT", defaults.HTTP.Port), // don't forget to add ':'
			Timeouts: HTTPTimeoutsConfig{
				Read:     getEnvAsDuration("HTTP_READ_TIMEOUT", defaults.HTTP.Timeouts.Read),
				Write:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", defaults.HTTP.Timeouts.Write),
				Idle:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", defaults.HTTP.Timeouts.Idle),
				Shutdown: getEnvAsDuration("HTTP_SHUTDOWN_DELAY", defaults.HTTP.Timeouts.Shutdown),
			},
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", defaults.HTTP.AllowedOrigins),
		},
		Limiter: RateLimiterConfig{
			RPS:   getEnvAsInt("LIMITER_RPS", defaults.Limiter.RPS),
			Burst: getEnvAsInt("LIMITER_BURST", defaults.Limiter.Burst),
		},
		Logger: LoggerConfig{
			Level: getEnvAsLogLevel("LOGGER_LEVEL", defaults.Logger.Level),
		},
		Metrics: TelemetryConfig{
			EnableTelemetry: getEnvAsBool("ENABLE_TELEMETRY", false),
			OtelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", defaults.Metrics.OtelEndpoint),
		},
		Auth: AuthConfig{
			SessionLifetime: getEnvAsDuration("SESSION_LIFETIME", defaults.Auth.SessionLifetime),
			SecureCookies:   getEnvAsBool("SESSION_SECURE_COOKIES", defaults.Auth.SecureCookies),
			LoginRPS:        getEnvAsFloat("LOGIN_LIMITER_RPS", defaults.Auth.LoginRPS),
			LoginBurst:      getEnvAsInt("LOGIN_LIMITER_BURST", defaults.Auth.LoginBurst),
		},
		Uploads: UploadsConfig{
			Dir:       getEnv("UPLOADS_DIR", defaults.Uploads.Dir),
			URLPrefix: defaults.Uploads.URLPrefix,
			MaxBytes:  getEnvAsInt64("UPLOAD_MAX_BYTES", defaults.Uploads.MaxBytes),
			Replicate: getEnvAsBool("UPLOADS_REPLICATE", false),
		},
		Images: ImagesConfig{
			Ceiling:             getEnvAsInt64("IMAGE_CEILING_BYTES", defaults.Images.Ceiling),
			MaxDimension:        getEnvAsInt("IMAGE_MAX_DIMENSION", defaults.Images.MaxDimension),
			EscalationDimension: getEnvAsInt("IMAGE_ESCALATION_DIMENSION", defaults.Images.EscalationDimension),
			InitialQuality:      getEnvAsInt("IMAGE_INITIAL_QUALITY", defaults.Images.InitialQuality),
			NormalizeQuality:    getEnvAsInt("IMAGE_NORMALIZE_QUALITY", defaults.Images.NormalizeQuality),
			QualityStep:         getEnvAsInt("IMAGE_QUALITY_STEP", defaults.Images.QualityStep),
			QualityFloor:        getEnvAsInt("IMAGE_QUALITY_FLOOR", defaults.Images.QualityFloor),
			MaxAttempts:         getEnvAsInt("IMAGE_MAX_ATTEMPTS", defaults.Images.MaxAttempts),
			EscalationQuality:   getEnvAsInt("IMAGE_ESCALATION_QUALITY", defaults.Images.EscalationQuality),
			LastResortQuality:   getEnvAsInt("IMAGE_LAST_RESORT_QUALITY", defaults.Images.LastResortQuality),
			Tolerance:           getEnvAsFloat("IMAGE_TOLERANCE", defaults.Images.Tolerance),
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", defaults.S3.Endpoint),
			Region:    getEnv("S3_REGION", defaults.S3.Region),
			AccessKey: getEnv("S3_ACCESS_KEY", defaults.S3.AccessKey),
			SecretKey: getEnv("S3_SECRET_KEY", defaults.S3.SecretKey),
			Bucket:    getEnv("S3_BUCKET", defaults.S3.Bucket),
			Prefix:    getEnv("S3_PREFIX", defaults.S3.Prefix),
		},
		Cache: CacheConfig{
			RedisURL: getEnv("REDIS_URL", defaults.Cache.RedisURL),
			TTL:      getEnvAsDuration("CACHE_TTL", defaults.Cache.TTL),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty entries.
func getEnvAsList(key string, fallback []string) []string {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	var out []string
	for part := range strings.SplitSeq(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsLogLevel(key string, fallback slog.Level) slog.Level {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	switch strings.ToLower(valueStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

var urlPrefixPattern = regexp.MustCompile(`^/[a-z0-9_-]+$`)

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("APP_NAME must not be empty")
	}
	if s := strings.ToLower(c.App.Environment); s != "dev" && s != "prod" {
		return fmt.Errorf(`APP_ENV must be "dev" or "prod"`)
	}
	if d := c.DB.Driver; d != "sqlite" && d != "mysql" {
		return fmt.Errorf(`DB_DRIVER must be "sqlite" or "mysql", got %q`, d)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("DB_DSN must not be empty")
	}
	// stay away from well-known ports
	if p := c.HTTP.Port; p < 1024 || p > 65535 {
		return fmt.Errorf("HTTP_PORT must be a positive int between 1024 and 65535, got %d", p)
	}
	if c.HTTP.Timeouts.Read <= 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT must be positive (e.g., 5s), got %s", c.HTTP.Timeouts.Read)
	}
	if c.HTTP.Timeouts.Write <= 0 {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT must be positive (e.g., 10s), got %s", c.HTTP.Timeouts.Write)
	}
	if c.HTTP.Timeouts.Idle <= 0 {
		return fmt.Errorf("HTTP_IDLE_TIMEOUT must be positive (e.g., 2m), got %s", c.HTTP.Timeouts.Idle)
	}
	if c.HTTP.Timeouts.Shutdown <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_DELAY must be positive (e.g., 10s), got %s", c.HTTP.Timeouts.Shutdown)
	}
	if c.Limiter.RPS <= 0 {
		return fmt.Errorf("LIMITER_RPS must be positive, got %d", c.Limiter.RPS)
	}
	if c.Limiter.Burst <= 0 {
		return fmt.Errorf("LIMITER_BURST must be positive, got %d", c.Limiter.Burst)
	}
	if c.Auth.LoginRPS <= 0 || c.Auth.LoginBurst <= 0 {
		return fmt.Errorf("LOGIN_LIMITER_RPS and LOGIN_LIMITER_BURST must be positive")
	}
	if c.Auth.SessionLifetime <= 0 {
		return fmt.Errorf("SESSION_LIFETIME must be positive (e.g., 24h), got %s", c.Auth.SessionLifetime)
	}
	if c.App.Environment == "prod" && !c.Auth.SecureCookies {
		return fmt.Errorf("SESSION_SECURE_COOKIES must be true in production")
	}
	if c.Uploads.Dir == "" {
		return fmt.Errorf("UPLOADS_DIR must not be empty")
	}
	if !urlPrefixPattern.MatchString(c.Uploads.URLPrefix) {
		return fmt.Errorf("uploads URL prefix must look like /uploads, got %q", c.Uploads.URLPrefix)
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.Uploads.MaxBytes)
	}
	if err := c.Images.validate(); err != nil {
		return err
	}
	if c.Uploads.Replicate && c.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET must be set when UPLOADS_REPLICATE is enabled")
	}
	if c.Cache.RedisURL != "" && c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive when REDIS_URL is set, got %s", c.Cache.TTL)
	}

	// c.Proxy.Trusted will default to true if not valid
	// c.Logger.Level will default to Info if not valid
	return nil
}

func (c ImagesConfig) validate() error {
	if c.Ceiling <= 0 {
		return fmt.Errorf("IMAGE_CEILING_BYTES must be positive, got %d", c.Ceiling)
	}
	if c.MaxDimension <= 0 || c.EscalationDimension <= 0 {
		return fmt.Errorf("IMAGE_MAX_DIMENSION and IMAGE_ESCALATION_DIMENSION must be positive")
	}
	for name, q := range map[string]int{
		"IMAGE_INITIAL_QUALITY":     c.InitialQuality,
		"IMAGE_NORMALIZE_QUALITY":   c.NormalizeQuality,
		"IMAGE_QUALITY_FLOOR":       c.QualityFloor,
		"IMAGE_ESCALATION_QUALITY":  c.EscalationQuality,
		"IMAGE_LAST_RESORT_QUALITY": c.LastResortQuality,
	} {
		if q < 1 || q > 100 {
			return fmt.Errorf("%s must be between 1 and 100, got %d", name, q)
		}
	}
	if c.QualityStep <= 0 {
		return fmt.Errorf("IMAGE_QUALITY_STEP must be positive, got %d", c.QualityStep)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("IMAGE_MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts)
	}
	if c.Tolerance < 1 {
		return fmt.Errorf("IMAGE_TOLERANCE must be at least 1, got %g", c.Tolerance)
	}
	return nil
}

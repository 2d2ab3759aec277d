package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type DatabaseConfig struct {
	Host             string        `env:"POSTGRES_HOST" env-default:"localhost"`
	Port             string        `env:"POSTGRES_PORT" env-default:"5432"`
	PostgresUser     string        `env:"POSTGRES_USER" env-required:"true"`
	PostgresPassword string        `env:"POSTGRES_PASSWORD"`
	PostgresDB       string        `env:"POSTGRES_DB" env-required:"true"`
	SSLMode          string        `env:"POSTGRES_SSLMODE" env-default:"disable"`
	MaxOpenConns     int           `env:"POSTGRES_MAX_OPEN_CONNS" env-default:"20"`
	MaxIdleConns     int           `env:"POSTGRES_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime  time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" env-default:"30m"`
	// StoreTimeout bounds every store interaction of a request.
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" env-default:"3s"`
}

func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" connect_timeout=5 TimeZone=UTC"
}

type ServerConfig struct {
	Port           string        `env:"SERVER_PORT" env-default:"8080"`
	Env            string        `env:"APP_ENV" env-default:"prod"`
	BasePath       string        `env:"API_BASE_PATH" env-default:"/api/v1"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" env-default:"10s"`
	TrustedProxies []string      `env:"TRUSTED_PROXIES" env-separator:","`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" env-separator:","`
	// BurstMaxRPS is the per-process, per-IP request ceiling applied before anything else.
	BurstMaxRPS float64 `env:"BURST_MAX_RPS" env-default:"20"`
}

type AdminConfig struct {
	Username string `env:"ADMIN_USERNAME" env-default:"admin"`
	Password string `env:"ADMIN_PASSWORD" env-required:"true"`
}

type TokenConfig struct {
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"720h"`
}

type OtpConfig struct {
	TTL         time.Duration `env:"OTP_TTL" env-default:"10m"`
	Cooldown    time.Duration `env:"OTP_COOLDOWN" env-default:"60s"`
	MaxAttempts int           `env:"OTP_MAX_ATTEMPTS" env-default:"5"`
	// ConcealUnknownPhone makes otp-send answer unknown numbers like known ones.
	ConcealUnknownPhone bool `env:"OTP_CONCEAL_UNKNOWN_PHONE" env-default:"false"`
}

type SmsConfig struct {
	GatewayURL string        `env:"SMS_GATEWAY_URL"`
	APIKey     string        `env:"SMS_API_KEY"`
	Sender     string        `env:"SMS_SENDER" env-default:"Campaign"`
	Timeout    time.Duration `env:"SMS_TIMEOUT" env-default:"5s"`
}

type RateLimitConfig struct {
	CleanupProbability float64       `env:"RATE_LIMIT_CLEANUP_PROBABILITY" env-default:"0.01"`
	Retention          time.Duration `env:"RATE_LIMIT_RETENTION" env-default:"24h"`
}

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Admin     AdminConfig
	Token     TokenConfig
	Otp       OtpConfig
	Sms       SmsConfig
	RateLimit RateLimitConfig
}

// LoadConfig reads dotenvPath into the environment when it exists and then
// parses the environment into a Config.
func LoadConfig(dotenvPath string) (*Config, error) {
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", dotenvPath, err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

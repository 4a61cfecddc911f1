// Package config загружает конфигурацию платформы из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// .env (если есть) подхватывается через godotenv.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr         string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	// Сколько запросов обрабатываем параллельно
	HTTPMaxInflight int `envconfig:"HTTP_MAX_INFLIGHT" default:"128"`
	// Максимальный размер скриншота оплаты
	ProofMaxBytes int64 `envconfig:"PROOF_MAX_BYTES" default:"5242880"`

	// --- Database ---
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"wealthfund"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"wealthfund"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis (необязательно: без него run-lock берётся через advisory lock) ---
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Asia/Kolkata"`

	// --- Auth ---
	// Хеш пароля главного админа (scripts/generate_hash.go), сидится при первом старте
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`
	SessionTTL        time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	StaffMaxAttempts  int           `envconfig:"STAFF_MAX_LOGIN_ATTEMPTS" default:"3"`

	// --- Finance ---
	DepositMin                  string `envconfig:"DEPOSIT_MIN" default:"200"`
	WithdrawMin                 string `envconfig:"WITHDRAW_MIN" default:"200"`
	WithdrawFeeRate             string `envconfig:"WITHDRAW_FEE_RATE" default:"0.05"`
	WithdrawRequireFundPassword bool   `envconfig:"WITHDRAW_REQUIRE_FUND_PASSWORD" default:"false"`

	// --- Referral ---
	ReferralCommissionRate string `envconfig:"REFERRAL_COMMISSION_RATE" default:"0.10"`
	ReferralMaxAttempts    int    `envconfig:"REFERRAL_MAX_ATTEMPTS" default:"10"`
	ReferralRetryCron      string `envconfig:"REFERRAL_RETRY_CRON" default:"*/5 * * * *"`

	// --- Distribution ---
	// Пустая строка = только ручной запуск из админки
	DistributionCron    string        `envconfig:"DISTRIBUTION_CRON" default:""`
	DistributionLockTTL time.Duration `envconfig:"DISTRIBUTION_LOCK_TTL" default:"10m"`

	// --- Proof storage (S3) ---
	S3Region     string `envconfig:"S3_REGION" default:"ap-south-1"`
	S3Bucket     string `envconfig:"S3_BUCKET" default:""`
	S3AccessKey  string `envconfig:"S3_ACCESS_KEY" default:""`
	S3SecretKey  string `envconfig:"S3_SECRET_KEY" default:""`
	S3Endpoint   string `envconfig:"S3_ENDPOINT" default:""`
	S3PresignTTL time.Duration `envconfig:"S3_PRESIGN_TTL" default:"15m"`

	// --- Telegram (уведомления админам о новых заявках) ---
	TelegramBotToken    string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramAdminChatID int64  `envconfig:"TELEGRAM_ADMIN_CHAT_ID" default:"0"`

	// --- Proxy ---
	// Адреса/подсети прокси, которым верим X-Forwarded-For и X-Real-IP.
	// Пусто — заголовки игнорируются, клиент = адрес соединения.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES" default:""`

	// --- Rate Limiting ---
	RateLimitPerSecond float64 `envconfig:"RATE_LIMIT_PER_SECOND" default:"5"`
	RateLimitBurst     int     `envconfig:"RATE_LIMIT_BURST" default:"10"`

	// Распарсенные денежные параметры
	Finance FinanceParams `envconfig:"-"`
	// Распарсенные TRUSTED_PROXIES
	Proxies []netip.Prefix `envconfig:"-"`
}

// FinanceParams — денежные параметры в decimal, чтобы не парсить их в каждом сервисе.
type FinanceParams struct {
	DepositMin      decimal.Decimal
	WithdrawMin     decimal.Decimal
	WithdrawFeeRate decimal.Decimal
	CommissionRate  decimal.Decimal
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Location возвращает часовой пояс платформы. "Сегодня" для начислений
// и чек-инов считается именно в нём.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		log.WithError(err).Warnf("Не удалось загрузить %s, используем UTC", c.AppTimezone)
		return time.UTC
	}
	return loc
}

func (c *Config) Validate() error {
	if c.HTTPMaxInflight <= 0 {
		return fmt.Errorf("HTTP_MAX_INFLIGHT должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.ReferralMaxAttempts <= 0 {
		return fmt.Errorf("REFERRAL_MAX_ATTEMPTS должен быть > 0")
	}
	if c.TelegramBotToken != "" && c.TelegramAdminChatID == 0 {
		return fmt.Errorf("TELEGRAM_ADMIN_CHAT_ID обязателен, если задан TELEGRAM_BOT_TOKEN")
	}
	f := c.Finance
	if !f.WithdrawFeeRate.IsPositive() && !f.WithdrawFeeRate.IsZero() || f.WithdrawFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("WITHDRAW_FEE_RATE должен быть в [0, 1)")
	}
	if f.CommissionRate.IsNegative() || f.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("REFERRAL_COMMISSION_RATE должен быть в [0, 1]")
	}
	if !f.DepositMin.IsPositive() || !f.WithdrawMin.IsPositive() {
		return fmt.Errorf("DEPOSIT_MIN и WITHDRAW_MIN должны быть > 0")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("Файл .env не найден, используем переменные окружения")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	if err := cfg.parseFinance(); err != nil {
		return nil, err
	}
	if err := cfg.parseProxies(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) parseFinance() error {
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"DEPOSIT_MIN", c.DepositMin, &c.Finance.DepositMin},
		{"WITHDRAW_MIN", c.WithdrawMin, &c.Finance.WithdrawMin},
		{"WITHDRAW_FEE_RATE", c.WithdrawFeeRate, &c.Finance.WithdrawFeeRate},
		{"REFERRAL_COMMISSION_RATE", c.ReferralCommissionRate, &c.Finance.CommissionRate},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("%s parse: %w", f.name, err)
		}
		*f.dst = v
	}
	return nil
}

// parseProxies принимает как подсети (10.0.0.0/8), так и одиночные адреса.
func (c *Config) parseProxies() error {
	c.Proxies = c.Proxies[:0]
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			c.Proxies = append(c.Proxies, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return fmt.Errorf("TRUSTED_PROXIES: некорректный адрес %q", raw)
		}
		c.Proxies = append(c.Proxies, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return nil
}

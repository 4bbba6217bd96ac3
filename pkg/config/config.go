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
	Orders       OrdersConfig
	WeChatPay    WeChatPayConfig
	Mail         MailConfig
	Feishu       FeishuConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	BigQuery     BigQueryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KAMISHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"KAMISHOP_APP_PORT" required:"true"`
	SiteURL      string `envconfig:"KAMISHOP_SITE_URL" default:"http://localhost:8080"`
	LogLevel     string `envconfig:"KAMISHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KAMISHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KAMISHOP_DB_DSN"`
	Driver string `envconfig:"KAMISHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KAMISHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"KAMISHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KAMISHOP_DB_USER"`
	LegacyPassword string `envconfig:"KAMISHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"KAMISHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"KAMISHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KAMISHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KAMISHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KAMISHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KAMISHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KAMISHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KAMISHOP_REDIS_ADDR"`
	Password     string        `envconfig:"KAMISHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"KAMISHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KAMISHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KAMISHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KAMISHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KAMISHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KAMISHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type OrdersConfig struct {
	ExpireAfter         time.Duration `envconfig:"KAMISHOP_ORDER_EXPIRE_AFTER" default:"30m"`
	MaxQuantity         int           `envconfig:"KAMISHOP_ORDER_MAX_QUANTITY" default:"100"`
	StockWarnThreshold  int           `envconfig:"KAMISHOP_STOCK_WARN_THRESHOLD" default:"10"`
	EventIdempotencyTTL time.Duration `envconfig:"KAMISHOP_PAYMENT_EVENT_TTL" default:"72h"`
}

type WeChatPayConfig struct {
	MchID         string        `envconfig:"KAMISHOP_WECHAT_MCH_ID"`
	AppID         string        `envconfig:"KAMISHOP_WECHAT_APP_ID"`
	CertSerialNo  string        `envconfig:"KAMISHOP_WECHAT_SERIAL_NO"`
	PrivateKeyPEM string        `envconfig:"KAMISHOP_WECHAT_PRIVATE_KEY"`
	APIv3Key      string        `envconfig:"KAMISHOP_WECHAT_API_V3_KEY"`
	NotifyURL     string        `envconfig:"KAMISHOP_WECHAT_NOTIFY_URL"`
	Timeout       time.Duration `envconfig:"KAMISHOP_WECHAT_TIMEOUT" default:"10s"`
	MaxRetries    int           `envconfig:"KAMISHOP_WECHAT_MAX_RETRIES" default:"3"`
}

type MailConfig struct {
	SMTPHost string `envconfig:"KAMISHOP_SMTP_HOST"`
	SMTPPort int    `envconfig:"KAMISHOP_SMTP_PORT" default:"587"`
	Username string `envconfig:"KAMISHOP_SMTP_USERNAME"`
	Password string `envconfig:"KAMISHOP_SMTP_PASSWORD"`
	From     string `envconfig:"KAMISHOP_MAIL_FROM"`
}

type FeishuConfig struct {
	WebhookURL string        `envconfig:"KAMISHOP_FEISHU_WEBHOOK_URL"`
	Timeout    time.Duration `envconfig:"KAMISHOP_FEISHU_TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"KAMISHOP_FEISHU_MAX_RETRIES" default:"2"`
}

type CronConfig struct {
	Secret   string        `envconfig:"KAMISHOP_CRON_SECRET"`
	Interval time.Duration `envconfig:"KAMISHOP_CRON_INTERVAL" default:"24h"`
	Port     string        `envconfig:"KAMISHOP_CRON_PORT" default:"9102"`
}

type FeatureFlagsConfig struct {
	PaymentTestMode bool `envconfig:"KAMISHOP_PAYMENT_TEST_MODE" default:"false"`
	AutoMigrate     bool `envconfig:"KAMISHOP_AUTO_MIGRATE" default:"false"`
	AnalyticsSink   bool `envconfig:"KAMISHOP_ANALYTICS_SINK" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KAMISHOP_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"KAMISHOP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type BigQueryConfig struct {
	Dataset         string `envconfig:"KAMISHOP_BIGQUERY_DATASET" default:"kamishop"`
	SalesEventTable string `envconfig:"KAMISHOP_BIGQUERY_SALES_TABLE" default:"sales_events"`
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

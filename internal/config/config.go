package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DBDriver         string // postgres / sqlite
	DatabaseURL      string // あればPostgres*より優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string
	SQLitePath       string // DB_DRIVER=sqlite のとき

	JWTSecret string // JWT署名シークレット

	GoEnv    string // dev/prod
	LogDir   string // 空なら標準出力
	LogLevel string

	TrackingPrefix   string        // 追跡番号の接頭辞（XPR）
	DeliveryLeadTime time.Duration // 配達予定日 = 作成時刻 + これ

	KafkaBrokers []string // 空なら配送イベントを流さない
	KafkaTopic   string

	S3Endpoint   string // 空ならCSVのアップロード無効
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3Region     string
	S3UseSSL     bool
	ReportURLTTL time.Duration
}

// Loadは環境変数（.envがあれば先に読む）
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	leadTime, err := durationDefault("DELIVERY_LEAD_TIME", 7*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	reportTTL, err := durationDefault("REPORT_URL_TTL", 15*time.Minute)
	if err != nil {
		return Config{}, err
	}
	useSSL, err := boolDefault("S3_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DBDriver:         getenv("DB_DRIVER", "postgres"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "xprexx"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getenv("SQLITE_PATH", "xprexx.db"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv:    getenv("GO_ENV", "dev"),
		LogDir:   os.Getenv("LOG_DIR"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		TrackingPrefix:   strings.ToUpper(getenv("TRACKING_PREFIX", "XPR")),
		DeliveryLeadTime: leadTime,

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "shipment.events"),

		S3Endpoint:   os.Getenv("S3_ENDPOINT"),
		S3AccessKey:  os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:  os.Getenv("S3_SECRET_KEY"),
		S3Bucket:     getenv("S3_BUCKET", "xprexx-reports"),
		S3Region:     getenv("S3_REGION", "us-east-1"),
		S3UseSSL:     useSSL,
		ReportURLTTL: reportTTL,
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be postgres or sqlite")
	}
	if cfg.TrackingPrefix == "" {
		return Config{}, fmt.Errorf("TRACKING_PREFIX must not be empty")
	}
	if cfg.DeliveryLeadTime <= 0 {
		return Config{}, fmt.Errorf("DELIVERY_LEAD_TIME must be positive")
	}
	if cfg.S3Endpoint != "" && (cfg.S3AccessKey == "" || cfg.S3SecretKey == "") {
		return Config{}, fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_ENDPOINT is set")
	}

	return cfg, nil
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

func getenv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func boolDefault(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be bool: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/payment"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	RedisURL           string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	DistanceServiceURL string
	PaymentMethodsFile string

	ReservationTTL        time.Duration
	AgentResponseWindow   time.Duration
	AgentFreshnessWindow  time.Duration
	MaxPaymentAttempts    int
	DispatchMaxAttempts   int
	DispatchRetryInitial  time.Duration
	DispatchFailurePolicy string

	LogLevel string
	AppEnv   string
}

// UsesPostgres reports whether a database is configured. Without one the engine
// runs on the in-memory store.
func (c Config) UsesPostgres() bool {
	return c.DBHost != ""
}

func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSslMode)
}

// LoadConfig reads the environment after loading envFile if it exists.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err = godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	cfg := Config{
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		DBHost:                os.Getenv("DB_HOST"),
		DBPort:                envOrDefault("DB_PORT", "5432"),
		DBUser:                os.Getenv("DB_USER"),
		DBPassword:            os.Getenv("DB_PASSWORD"),
		DBName:                os.Getenv("DB_NAME"),
		DBSslMode:             envOrDefault("DB_SSLMODE", "disable"),
		RedisURL:              os.Getenv("REDIS_URL"),
		KafkaBrokers:          splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicPrefix:      envOrDefault("KAFKA_TOPIC_PREFIX", "fulfillment"),
		DistanceServiceURL:    os.Getenv("DISTANCE_SERVICE_URL"),
		PaymentMethodsFile:    os.Getenv("PAYMENT_METHODS_FILE"),
		DispatchFailurePolicy: envOrDefault("DISPATCH_FAILURE_POLICY", "redispatch"),
		LogLevel:              envOrDefault("LOG_LEVEL", "info"),
		AppEnv:                envOrDefault("APP_ENV", "development"),
	}

	var err error
	if cfg.ReservationTTL, err = envDuration("RESERVATION_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.AgentResponseWindow, err = envDuration("AGENT_RESPONSE_WINDOW", 2*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.AgentFreshnessWindow, err = envDuration("AGENT_FRESHNESS_WINDOW", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.DispatchRetryInitial, err = envDuration("DISPATCH_RETRY_INITIAL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MaxPaymentAttempts, err = envInt("MAX_PAYMENT_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.DispatchMaxAttempts, err = envInt("DISPATCH_MAX_ATTEMPTS", 10); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type paymentMethodsFile struct {
	Methods []struct {
		Type          string `yaml:"type"`
		DisplayName   string `yaml:"display_name"`
		Active        *bool  `yaml:"active"`
		FeePercentage string `yaml:"fee_percentage"`
		FixedFee      string `yaml:"fixed_fee"`
		MinAmount     string `yaml:"min_amount"`
		MaxAmount     string `yaml:"max_amount"`
	} `yaml:"methods"`
}

// LoadPaymentMethods reads the payment-method table. An empty path yields the
// built-in table.
func LoadPaymentMethods(path string) (payment.Methods, error) {
	if path == "" {
		return payment.NewMethods(payment.DefaultMethods())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payment methods: %w", err)
	}
	var f paymentMethodsFile
	if err = yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse payment methods: %w", err)
	}

	rows := make([]payment.Method, 0, len(f.Methods))
	for _, m := range f.Methods {
		methodType, err := payment.ParseMethodType(m.Type)
		if err != nil {
			return nil, err
		}
		row := payment.Method{
			Type:        methodType,
			DisplayName: m.DisplayName,
			Active:      m.Active == nil || *m.Active,
		}
		if row.FeePercentage, err = parseAmount(m.FeePercentage); err != nil {
			return nil, fmt.Errorf("%s fee_percentage: %w", m.Type, err)
		}
		if row.FixedFee, err = parseAmount(m.FixedFee); err != nil {
			return nil, fmt.Errorf("%s fixed_fee: %w", m.Type, err)
		}
		if row.MinAmount, err = parseAmount(m.MinAmount); err != nil {
			return nil, fmt.Errorf("%s min_amount: %w", m.Type, err)
		}
		if m.MaxAmount != "" {
			maxAmount, err := decimal.NewFromString(m.MaxAmount)
			if err != nil {
				return nil, fmt.Errorf("%s max_amount: %w", m.Type, err)
			}
			row.MaxAmount = &maxAmount
		}
		rows = append(rows, row)
	}
	return payment.NewMethods(rows)
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
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

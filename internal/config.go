package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Gateways      GatewaysConfig      `mapstructure:"gateways"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GatewaysConfig holds credentials and endpoints for every supported
// payment gateway. It is loaded once at process start and passed by
// value into the gateway adapters; request-handling code never reads
// the environment directly.
type GatewaysConfig struct {
	VNPay VNPayConfig `mapstructure:"vnpay"`
	MoMo  MoMoConfig  `mapstructure:"momo"`
	PayOS PayOSConfig `mapstructure:"payos"`
}

type VNPayConfig struct {
	TmnCode    string `mapstructure:"tmn_code"`
	HashSecret string `mapstructure:"hash_secret"`
	PayURL     string `mapstructure:"pay_url"`
	ReturnURL  string `mapstructure:"return_url"`
}

type MoMoConfig struct {
	PartnerCode string `mapstructure:"partner_code"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Endpoint    string `mapstructure:"endpoint"`
	RedirectURL string `mapstructure:"redirect_url"`
	IPNURL      string `mapstructure:"ipn_url"`
}

type PayOSConfig struct {
	ClientID    string `mapstructure:"client_id"`
	APIKey      string `mapstructure:"api_key"`
	ChecksumKey string `mapstructure:"checksum_key"`
	Endpoint    string `mapstructure:"endpoint"`
	ReturnURL   string `mapstructure:"return_url"`
	CancelURL   string `mapstructure:"cancel_url"`
}

// ----------------- ENV LOADING -----------------

// LoadConfigFromEnv builds a Config from environment variables. Used for
// container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_SERVER_PORT", 8080),
			BaseURL:           getEnv("HTTP_SERVER_BASE_URL", "http://localhost:8080"),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
			WriteTimeout:      15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Source:          os.Getenv("DATABASE_SOURCE"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Gateways: GatewaysConfig{
			VNPay: VNPayConfig{
				TmnCode:    os.Getenv("VNPAY_TMN_CODE"),
				HashSecret: os.Getenv("VNPAY_HASH_SECRET"),
				PayURL:     getEnv("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
				ReturnURL:  os.Getenv("VNPAY_RETURN_URL"),
			},
			MoMo: MoMoConfig{
				PartnerCode: os.Getenv("MOMO_PARTNER_CODE"),
				AccessKey:   os.Getenv("MOMO_ACCESS_KEY"),
				SecretKey:   os.Getenv("MOMO_SECRET_KEY"),
				Endpoint:    getEnv("MOMO_ENDPOINT", "https://test-payment.momo.vn/v2/gateway/api/create"),
				RedirectURL: os.Getenv("MOMO_REDIRECT_URL"),
				IPNURL:      os.Getenv("MOMO_IPN_URL"),
			},
			PayOS: PayOSConfig{
				ClientID:    os.Getenv("PAYOS_CLIENT_ID"),
				APIKey:      os.Getenv("PAYOS_API_KEY"),
				ChecksumKey: os.Getenv("PAYOS_CHECKSUM_KEY"),
				Endpoint:    getEnv("PAYOS_ENDPOINT", "https://api-merchant.payos.vn/v2/payment-requests"),
				ReturnURL:   os.Getenv("PAYOS_RETURN_URL"),
				CancelURL:   os.Getenv("PAYOS_CANCEL_URL"),
			},
		},
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

// Validate fails fast at startup: a missing gateway secret is a fatal
// configuration error, never a per-request 500.
func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Gateways.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url %s: %w", c.BaseURL, err)
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *GatewaysConfig) Validate() error {
	var missing []string

	collectMissing(&missing, "vnpay.tmn_code", c.VNPay.TmnCode)
	collectMissing(&missing, "vnpay.hash_secret", c.VNPay.HashSecret)
	collectMissing(&missing, "vnpay.pay_url", c.VNPay.PayURL)
	collectMissing(&missing, "vnpay.return_url", c.VNPay.ReturnURL)

	collectMissing(&missing, "momo.partner_code", c.MoMo.PartnerCode)
	collectMissing(&missing, "momo.access_key", c.MoMo.AccessKey)
	collectMissing(&missing, "momo.secret_key", c.MoMo.SecretKey)
	collectMissing(&missing, "momo.endpoint", c.MoMo.Endpoint)
	collectMissing(&missing, "momo.redirect_url", c.MoMo.RedirectURL)
	collectMissing(&missing, "momo.ipn_url", c.MoMo.IPNURL)

	collectMissing(&missing, "payos.client_id", c.PayOS.ClientID)
	collectMissing(&missing, "payos.api_key", c.PayOS.APIKey)
	collectMissing(&missing, "payos.checksum_key", c.PayOS.ChecksumKey)
	collectMissing(&missing, "payos.endpoint", c.PayOS.Endpoint)
	collectMissing(&missing, "payos.return_url", c.PayOS.ReturnURL)
	collectMissing(&missing, "payos.cancel_url", c.PayOS.CancelURL)

	if len(missing) > 0 {
		return fmt.Errorf("missing required values: %s", strings.Join(missing, ", "))
	}
	return nil
}

func collectMissing(missing *[]string, key, value string) {
	if value == "" {
		*missing = append(*missing, key)
	}
}

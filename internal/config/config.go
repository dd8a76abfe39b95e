package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host        string   `yaml:"host"`
		Port        int      `yaml:"port"`
		Env         string   `yaml:"env"`
		Debug       bool     `yaml:"debug"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`

	Ledger struct {
		Driver string `yaml:"driver"` // file, postgres
		Path   string `yaml:"path"`   // For file driver
		DSN    string `yaml:"dsn"`    // For postgres driver
	} `yaml:"ledger"`

	Gateway struct {
		Default   string        `yaml:"default"`
		Timeout   time.Duration `yaml:"timeout"`
		ReturnURL string        `yaml:"return_url"`
	} `yaml:"gateway"`

	Webpay struct {
		BaseURL      string `yaml:"base_url"`
		CommerceCode string `yaml:"commerce_code"`
		APIKey       string `yaml:"api_key"`
	} `yaml:"webpay"`

	MercadoPago struct {
		BaseURL     string `yaml:"base_url"`
		AccessToken string `yaml:"access_token"`
		Sandbox     bool   `yaml:"sandbox"`
		Currency    string `yaml:"currency"`
	} `yaml:"mercadopago"`

	Email struct {
		Enabled      bool   `yaml:"enabled"`
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
		UseTLS       bool   `yaml:"use_tls"`
	} `yaml:"email"`

	Storage struct {
		Type      string `yaml:"type"`       // local, s3, cloudflare_r2
		BasePath  string `yaml:"base_path"`  // For local storage
		BaseURL   string `yaml:"base_url"`   // Public URL base
		Bucket    string `yaml:"bucket"`     // For S3/R2
		Region    string `yaml:"region"`     // For S3
		AccessKey string `yaml:"access_key"` // For S3/R2
		SecretKey string `yaml:"secret_key"` // For S3/R2
		Endpoint  string `yaml:"endpoint"`   // For R2 or custom S3
		UseSSL    bool   `yaml:"use_ssl"`

		// SnapshotInterval schedules ledger snapshots; zero disables them.
		SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	} `yaml:"storage"`

	Admin struct {
		Username     string        `yaml:"username"`
		PasswordHash string        `yaml:"password_hash"` // bcrypt
		JWTSecret    string        `yaml:"jwt_secret"`
		TokenTTL     time.Duration `yaml:"token_ttl"`
	} `yaml:"admin"`
}

var AppConfig *Config

// Load reads the YAML file at path (a missing file is fine), applies environment
// overrides and fills defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to parse config file at %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to open config file at %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfig() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AdminEnabled reports whether the admin routes should be mounted.
func (c *Config) AdminEnabled() bool {
	return c.Admin.PasswordHash != "" && c.Admin.JWTSecret != ""
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) validate() error {
	switch c.Ledger.Driver {
	case "file":
	case "postgres":
		if c.Ledger.DSN == "" {
			return errors.New("ledger.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}

	switch c.Storage.Type {
	case "local", "s3", "cloudflare_r2":
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Env, "SERVER_ENV")
	setString(&cfg.Ledger.Driver, "LEDGER_DRIVER")
	setString(&cfg.Ledger.Path, "LEDGER_PATH")
	setString(&cfg.Ledger.DSN, "DATABASE_URL")
	setString(&cfg.Gateway.Default, "GATEWAY_DEFAULT")
	setString(&cfg.Gateway.ReturnURL, "TBK_RETURN_URL")
	setString(&cfg.Webpay.BaseURL, "WEBPAY_BASE_URL")
	setString(&cfg.Webpay.CommerceCode, "TBK_COMMERCE_CODE")
	setString(&cfg.Webpay.APIKey, "TBK_API_KEY")
	setString(&cfg.MercadoPago.BaseURL, "MP_BASE_URL")
	setString(&cfg.MercadoPago.AccessToken, "MP_ACCESS_TOKEN")
	setString(&cfg.Email.SMTPHost, "SMTP_HOST")
	setString(&cfg.Email.SMTPUsername, "SMTP_USER")
	setString(&cfg.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&cfg.Storage.Type, "STORAGE_TYPE")
	setString(&cfg.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	setString(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")

	if err := setInt(&cfg.Server.Port, "PORT"); err != nil {
		return err
	}
	if err := setInt(&cfg.Email.SMTPPort, "SMTP_PORT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Storage.SnapshotInterval, "SNAPSHOT_INTERVAL"); err != nil {
		return err
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 10000
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}

	if cfg.Ledger.Driver == "" {
		cfg.Ledger.Driver = "file"
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "data/historial.json"
	}

	if cfg.Gateway.Default == "" {
		cfg.Gateway.Default = "webpay"
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 15 * time.Second
	}
	if cfg.Gateway.ReturnURL == "" {
		cfg.Gateway.ReturnURL = fmt.Sprintf("http://localhost:%d/payment/return", cfg.Server.Port)
	}

	if cfg.MercadoPago.Currency == "" {
		cfg.MercadoPago.Currency = "CLP"
	}

	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "Paygate"
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./data"
	}
	if cfg.Storage.BaseURL == "" {
		cfg.Storage.BaseURL = "/files"
	}

	if cfg.Admin.Username == "" {
		cfg.Admin.Username = "admin"
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = time.Hour
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret       string   `mapstructure:"JWT_SECRET"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	UploadsDir      string   `mapstructure:"UPLOADS_DIR"`
	StorageDriver   string   `mapstructure:"STORAGE_DRIVER"`
	S3Bucket        string   `mapstructure:"S3_BUCKET"`
	S3Region        string   `mapstructure:"S3_REGION"`
	S3Endpoint      string   `mapstructure:"S3_ENDPOINT"`
	MongoURI        string   `mapstructure:"MONGO_URI"`
	MongoDatabase   string   `mapstructure:"MONGO_DATABASE"`
	MaxUploadMB     int64    `mapstructure:"MAX_UPLOAD_MB"`
	LoginRatePerMin float64  `mapstructure:"LOGIN_RATE_PER_MIN"`
	LoginRateBurst  int      `mapstructure:"LOGIN_RATE_BURST"`
	TrustedProxies  []string `mapstructure:"TRUSTED_PROXIES"`
}

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageLocal  = "local"
	StorageS3     = "s3"
	StorageGridFS = "gridfs"
)

const minProductionSecretLen = 32

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "3001")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("UPLOADS_DIR", "uploads")
	v.SetDefault("STORAGE_DRIVER", StorageLocal)
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("MONGO_DATABASE", "asilo")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("LOGIN_RATE_PER_MIN", 10)
	v.SetDefault("LOGIN_RATE_BURST", 5)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"JWT_SECRET", "CORS_ORIGINS", "UPLOADS_DIR", "STORAGE_DRIVER",
		"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "MONGO_URI", "MONGO_DATABASE",
		"MAX_UPLOAD_MB", "LOGIN_RATE_PER_MIN", "LOGIN_RATE_BURST", "TRUSTED_PROXIES",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	if proxies := v.GetString("TRUSTED_PROXIES"); proxies != "" {
		cfg.TrustedProxies = splitList(proxies)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// TrustedProxyNets parses TRUSTED_PROXIES. Only hops inside these ranges may
// set X-Forwarded-For; with none, the socket peer is the client.
func (c *Config) TrustedProxyNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, cidr := range c.TrustedProxies {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid CIDR %q", cidr)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MaxUploadBytes is the upload ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Validate checks that the configuration is safe to run. JWT_SECRET is always
// required; outside development it must be at least 32 bytes long. Each
// storage driver requires its own connection settings.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if !c.IsDev() && len(c.JWTSecret) < minProductionSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes when ENV=%q", minProductionSecretLen, c.Env)
	}

	switch c.StorageDriver {
	case StorageLocal:
		if c.UploadsDir == "" {
			return fmt.Errorf("UPLOADS_DIR is required for the local storage driver")
		}
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER is %q", StorageS3)
		}
	case StorageGridFS:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORAGE_DRIVER is %q", StorageGridFS)
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q, %q, or %q, got %q",
			StorageLocal, StorageS3, StorageGridFS, c.StorageDriver)
	}

	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if _, err := c.TrustedProxyNets(); err != nil {
		return err
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	return nil
}

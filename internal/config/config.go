package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"

	"fatturex/internal/logger"
	"fatturex/pkg/models"
)

// Config holds process-wide settings read from the environment.
type Config struct {
	// Archive layout
	ArchiveRoot string

	// Portfolio configuration file (JSON or YAML)
	PortfolioFile string

	// Envelope decoding
	OpenSSLPath       string
	DecodeTimeoutSecs int

	// Batch processing
	Workers int

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load builds the configuration from environment variables with defaults.
func Load() (*Config, error) {
	config := &Config{
		ArchiveRoot:       getEnv("FATTUREX_ARCHIVE_ROOT", "aziende_processate"),
		PortfolioFile:     getEnv("FATTUREX_PORTFOLIO", ""),
		OpenSSLPath:       getEnv("FATTUREX_OPENSSL", "openssl"),
		DecodeTimeoutSecs: getEnvInt("FATTUREX_DECODE_TIMEOUT", 60),
		Workers:           getEnvInt("BATCH_WORKERS", 8),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:     getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:         getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.ArchiveRoot == "" {
		return fmt.Errorf("FATTUREX_ARCHIVE_ROOT must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.DecodeTimeoutSecs < 1 {
		return fmt.Errorf("FATTUREX_DECODE_TIMEOUT must be at least 1, got %d", c.DecodeTimeoutSecs)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// clientEntry is one portfolio client in the configuration file.
type clientEntry struct {
	CompanyName string `mapstructure:"company_name"`
	VATNumber   string `mapstructure:"vat_number"`
	TaxCode     string `mapstructure:"tax_code"`
	Active      bool   `mapstructure:"active"`
}

// LoadPortfolio reads the portfolio configuration file and flattens it
// into a tax-identifier → client-name map. Both the VAT number and the
// tax code of an active client resolve to its company name.
// Env var overrides use prefix FATTUREX_.
func LoadPortfolio(path string) (models.Portfolio, error) {
	const op = "LoadPortfolio"

	v := viper.New()
	v.SetEnvPrefix("FATTUREX")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fatturex")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%s: failed to read portfolio file: %w", op, err)
	}

	clients := map[string]clientEntry{}
	if err := v.UnmarshalKey("clients", &clients); err != nil {
		return nil, fmt.Errorf("%s: invalid clients section: %w", op, err)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("%s: portfolio has no clients configured", op)
	}

	portfolio := models.Portfolio{}
	for key, entry := range clients {
		if !entry.Active {
			continue
		}
		if entry.CompanyName == "" {
			return nil, fmt.Errorf("%s: client %q has no company_name", op, key)
		}
		if entry.VATNumber != "" {
			portfolio[entry.VATNumber] = entry.CompanyName
		}
		if entry.TaxCode != "" {
			portfolio[entry.TaxCode] = entry.CompanyName
		}
	}
	if len(portfolio) == 0 {
		return nil, fmt.Errorf("%s: portfolio has no active clients", op)
	}

	return portfolio, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Logger    Logger    `mapstructure:"logger"`
	Database  Database  `mapstructure:"database"`
	Server    Server    `mapstructure:"server"`
	Pricefeed Pricefeed `mapstructure:"pricefeed"`
	Portfolio Portfolio `mapstructure:"portfolio"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Server holds the configuration for the HTTP API server.
type Server struct {
	Port           int     `mapstructure:"port"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Pricefeed holds the configuration for the external price endpoint polled by
// the watcher. The core never talks to it directly; prices always enter the
// ledger as plain arguments.
type Pricefeed struct {
	BaseURL        string  `mapstructure:"base_url"`
	QuoteSymbol    string  `mapstructure:"quote_symbol"`
	TickInterval   int     `mapstructure:"tick_interval"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// AssetRef is a reference-data entry seeded into the asset registry.
type AssetRef struct {
	Symbol string `mapstructure:"symbol"`
	Name   string `mapstructure:"name"`
}

// Portfolio holds the holder scope and the reference data to seed.
type Portfolio struct {
	HolderID  uint       `mapstructure:"holder_id"`
	Assets    []AssetRef `mapstructure:"assets"`
	Exchanges []string   `mapstructure:"exchanges"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("database.dsn", "portfolio.db")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.rate_limit", 20) // requests per second per client
	viper.SetDefault("server.rate_limit_burst", 10)
	viper.SetDefault("pricefeed.quote_symbol", "USD")
	viper.SetDefault("pricefeed.tick_interval", 60) // seconds
	viper.SetDefault("pricefeed.rate_limit", 5)
	viper.SetDefault("pricefeed.rate_limit_burst", 2)
	viper.SetDefault("portfolio.holder_id", 1)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}

// Package config содержит логику чтения конфигурации сервиса пресейла.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса пресейла PierogiCoin.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`

	SolanaRPCURL       string `env:"SOLANA_RPC_URL"`
	TreasuryAddress    string `env:"TREASURY_ADDRESS"`
	TreasuryPrivateKey string `env:"TREASURY_PRIVATE_KEY"`
	TokenMint          string `env:"TOKEN_MINT"`
	TokenDecimals      int    `env:"TOKEN_DECIMALS" envDefault:"9"`

	PriceFeedURL    string `env:"PRICE_FEED_URL"`
	PriceFeedAPIKey string `env:"PRICE_FEED_API_KEY"`

	MonitorWebhookURL    string `env:"MONITOR_WEBHOOK_URL"`
	MonitorWebhookAPIKey string `env:"MONITOR_WEBHOOK_API_KEY"`

	WebhookSecret string `env:"WEBHOOK_SECRET"`
	WorkerSecret  string `env:"WORKER_SECRET"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envSolanaRPCURL := cfg.SolanaRPCURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.SolanaRPCURL, "s", "https://api.mainnet-beta.solana.com", "Solana RPC endpoint")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envSolanaRPCURL != "" {
		cfg.SolanaRPCURL = envSolanaRPCURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.PriceFeedURL == "" {
		cfg.PriceFeedURL = "https://rest.coincap.io"
	}

	return cfg, nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config carries every runtime knob of the orchestrator. All values come from
// the environment with working local defaults.
type Config struct {
	ServiceName string
	Env         string
	Addr        string

	InventoryBaseURL string
	AddressBaseURL   string
	OrderBaseURL     string
	PaymentBaseURL   string

	CollaboratorTimeout time.Duration

	// MarketDialPrefix is prepended when rewriting locally-formatted wallet
	// phone numbers (single leading zero) to E.164.
	MarketDialPrefix string
}

func Load() (Config, error) {
	cfg := Config{
		ServiceName:         getenvDefault("SERVICE_NAME", "checkout-orchestrator"),
		Env:                 getenvDefault("ENV", "dev"),
		Addr:                getenvDefault("ADDR", ":8080"),
		InventoryBaseURL:    getenvDefault("INVENTORY_BASE_URL", "http://localhost:9001"),
		AddressBaseURL:      getenvDefault("ADDRESS_BASE_URL", "http://localhost:9002"),
		OrderBaseURL:        getenvDefault("ORDER_BASE_URL", "http://localhost:9003"),
		PaymentBaseURL:      getenvDefault("PAYMENT_BASE_URL", "http://localhost:9004"),
		MarketDialPrefix:    getenvDefault("MARKET_DIAL_PREFIX", "+20"),
		CollaboratorTimeout: 10 * time.Second,
	}

	if raw := os.Getenv("COLLABORATOR_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse COLLABORATOR_TIMEOUT: %w", err)
		}
		cfg.CollaboratorTimeout = d
	}

	if !strings.HasPrefix(cfg.MarketDialPrefix, "+") {
		return Config{}, fmt.Errorf("config: MARKET_DIAL_PREFIX must start with '+', got %q", cfg.MarketDialPrefix)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

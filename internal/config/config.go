package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process configuration. Values come from the environment
// with an optional YAML overlay for upstream endpoints and tuning.
type Config struct {
	HTTPHost string `yaml:"http_host"`
	HTTPPort int    `yaml:"http_port"`

	DatabaseURL string `yaml:"database_url"`
	RedisAddr   string `yaml:"redis_addr"`

	// Payment middleware boundary (x402).
	X402Network    string `yaml:"x402_network"`
	FacilitatorURL string `yaml:"facilitator_url"`
	// EVM address paid requests settle to; also the wallet watched by the
	// on-chain USDC receives cache.
	PaymentReceiver string `yaml:"payment_receiver_address"`

	AdminToken      string `yaml:"admin_token"`
	GuardianEnabled bool   `yaml:"guardian_enabled"`

	// Chain RPC endpoints tried in order for on-chain reads.
	RPCEndpoints []string `yaml:"rpc_endpoints"`
	// ERC-20 contract whose Transfer logs are scanned for receives.
	USDCContract string `yaml:"usdc_contract"`

	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

const (
	defaultHTTPPort     = 8787
	defaultUSDCContract = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913" // USDC on Base
)

var defaultRPCEndpoints = []string{
	"https://mainnet.base.org",
	"https://base.llamarpc.com",
	"https://base-rpc.publicnode.com",
}

// Load builds a Config from the environment, applying the YAML overlay at
// path first when it is non-empty.
func Load(path string) (*Config, error) {
	cfg := &Config{
		HTTPHost:         "0.0.0.0",
		HTTPPort:         defaultHTTPPort,
		USDCContract:     defaultUSDCContract,
		RPCEndpoints:     append([]string(nil), defaultRPCEndpoints...),
		SnapshotInterval: time.Hour,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Environment always wins over the file.
	if v := os.Getenv("HTTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid HTTP_PORT %q", v)
		}
		cfg.HTTPPort = p
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("X402_NETWORK"); v != "" {
		cfg.X402Network = v
	}
	if v := os.Getenv("FACILITATOR_URL"); v != "" {
		cfg.FacilitatorURL = v
	}
	if v := os.Getenv("PAYMENT_RECEIVER_ADDRESS"); v != "" {
		cfg.PaymentReceiver = v
	}
	if v := os.Getenv("CROSSFIN_ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("CROSSFIN_GUARDIAN_ENABLED"); v != "" {
		cfg.GuardianEnabled = v == "1" || v == "true"
	}
	if v := os.Getenv("CROSSFIN_RPC_ENDPOINTS"); v != "" {
		cfg.RPCEndpoints = splitCSV(v)
	}

	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = time.Hour
	}
	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"loantender/crypto"
)

// Config is the daemon's on-disk configuration.
type Config struct {
	RPCAddress           string `toml:"RPCAddress"`
	DataDir              string `toml:"DataDir"`
	Backend              string `toml:"Backend"`
	NetworkName          string `toml:"NetworkName"`
	Env                  string `toml:"Env"`
	BlockIntervalSeconds uint64 `toml:"BlockIntervalSeconds"`
	DevFaucet            bool   `toml:"DevFaucet"`

	RPC     RPCConfig      `toml:"RPC"`
	Auction AuctionConfig  `toml:"Auction"`
	Assets  []AssetConfig  `toml:"Assets"`
	Alloc   []AllocConfig  `toml:"Allocations"`
}

// RPCConfig controls the JSON-RPC authentication and throttling knobs.
type RPCConfig struct {
	AuthToken          string  `toml:"AuthToken"`
	JWTSecret          string  `toml:"JWTSecret"`
	RequestsPerMinute  float64 `toml:"RequestsPerMinute"`
	Burst              int     `toml:"Burst"`
}

// AuctionConfig mirrors auction.Params with a bech32 treasury address.
type AuctionConfig struct {
	FeeRate                  uint64 `toml:"FeeRate"`
	FeeDenom                 uint64 `toml:"FeeDenom"`
	MinDurationBlocks        uint64 `toml:"MinDurationBlocks"`
	MaxDurationBlocks        uint64 `toml:"MaxDurationBlocks"`
	MinAuctionDurationBlocks uint64 `toml:"MinAuctionDurationBlocks"`
	Treasury                 string `toml:"Treasury"`
}

// AssetConfig registers a supported asset at genesis.
type AssetConfig struct {
	Symbol   string `toml:"Symbol"`
	Name     string `toml:"Name"`
	Decimals uint8  `toml:"Decimals"`
	MinUnit  string `toml:"MinUnit"`
}

// AllocConfig credits an account at genesis. Amounts are decimal strings so
// balances exceeding int64 survive the TOML round trip.
type AllocConfig struct {
	Address string `toml:"Address"`
	Asset   string `toml:"Asset"`
	Amount  string `toml:"Amount"`
}

const defaultConfigTemplate = `RPCAddress = ":8645"
DataDir = "./loantender-data"
Backend = "leveldb"
NetworkName = "loantender-local"
Env = "dev"
BlockIntervalSeconds = 5
DevFaucet = true

[RPC]
RequestsPerMinute = 600.0
Burst = 30

[Auction]
FeeRate = 100
FeeDenom = 100000
MinDurationBlocks = 144
MaxDurationBlocks = 10080
MinAuctionDurationBlocks = 36

[[Assets]]
Symbol = "CLT"
Name = "Collateral Token"
Decimals = 8
MinUnit = "1000000"

[[Assets]]
Symbol = "LUSD"
Name = "Loan Dollar"
Decimals = 6
MinUnit = "1000000"
`

// Load reads the configuration from the given path, creating a commented
// default file when none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(defaultConfigTemplate), 0o644)
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8645"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./loantender-data"
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = "leveldb"
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "loantender-local"
	}
	if c.BlockIntervalSeconds == 0 {
		c.BlockIntervalSeconds = 5
	}
	if c.RPC.RequestsPerMinute <= 0 {
		c.RPC.RequestsPerMinute = 600
	}
	if c.RPC.Burst <= 0 {
		c.RPC.Burst = 30
	}
	if c.Auction.FeeDenom == 0 {
		c.Auction.FeeRate = 100
		c.Auction.FeeDenom = 100_000
	}
	if c.Auction.MinDurationBlocks == 0 {
		c.Auction.MinDurationBlocks = 144
	}
	if c.Auction.MaxDurationBlocks == 0 {
		c.Auction.MaxDurationBlocks = 10_080
	}
	if c.Auction.MinAuctionDurationBlocks == 0 {
		c.Auction.MinAuctionDurationBlocks = 36
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Backend {
	case "leveldb", "bolt", "mem":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Backend)
	}
	if strings.TrimSpace(c.Auction.Treasury) != "" {
		if _, err := crypto.DecodeAddress(c.Auction.Treasury); err != nil {
			return fmt.Errorf("config: invalid treasury address: %w", err)
		}
	}
	seen := make(map[string]bool, len(c.Assets))
	for _, asset := range c.Assets {
		symbol := strings.ToUpper(strings.TrimSpace(asset.Symbol))
		if symbol == "" {
			return fmt.Errorf("config: asset symbol must not be empty")
		}
		if seen[symbol] {
			return fmt.Errorf("config: asset %s declared twice", symbol)
		}
		seen[symbol] = true
		if _, err := parseAmount(asset.MinUnit); err != nil {
			return fmt.Errorf("config: asset %s: invalid MinUnit: %w", symbol, err)
		}
	}
	for _, alloc := range c.Alloc {
		if _, err := crypto.DecodeAddress(alloc.Address); err != nil {
			return fmt.Errorf("config: invalid allocation address %q: %w", alloc.Address, err)
		}
		symbol := strings.ToUpper(strings.TrimSpace(alloc.Asset))
		if !seen[symbol] {
			return fmt.Errorf("config: allocation references unknown asset %q", alloc.Asset)
		}
		if _, err := parseAmount(alloc.Amount); err != nil {
			return fmt.Errorf("config: invalid allocation amount %q: %w", alloc.Amount, err)
		}
	}
	return nil
}

// TreasuryAddress decodes the configured treasury, defaulting to the zero
// address when unset.
func (c *Config) TreasuryAddress() ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(c.Auction.Treasury)
	if trimmed == "" {
		return out, nil
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, err
	}
	return addr.Raw(), nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must not be empty")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be a positive decimal", value)
	}
	return amount, nil
}

// ParseAmount exposes the decimal-string parser for callers assembling
// genesis state from the config.
func ParseAmount(value string) (*big.Int, error) {
	return parseAmount(value)
}

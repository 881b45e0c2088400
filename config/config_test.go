package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)

	require.Equal(t, ":8645", cfg.RPCAddress)
	require.Equal(t, "leveldb", cfg.Backend)
	require.True(t, cfg.DevFaucet)
	require.Len(t, cfg.Assets, 2)
	require.Equal(t, uint64(100), cfg.Auction.FeeRate)
	require.Equal(t, uint64(100_000), cfg.Auction.FeeDenom)

	// Loading the generated file again yields the same configuration.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
Backend = "mem"

[[Assets]]
Symbol = "CLT"
Name = "Collateral Token"
Decimals = 8
MinUnit = "1"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":8645", cfg.RPCAddress)
	require.Equal(t, "loantender-local", cfg.NetworkName)
	require.Equal(t, uint64(5), cfg.BlockIntervalSeconds)
	require.Equal(t, float64(600), cfg.RPC.RequestsPerMinute)
	require.Equal(t, 30, cfg.RPC.Burst)
	require.Equal(t, uint64(144), cfg.Auction.MinDurationBlocks)
	require.Equal(t, uint64(10_080), cfg.Auction.MaxDurationBlocks)
	require.Equal(t, uint64(36), cfg.Auction.MinAuctionDurationBlocks)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `Backend = "oracle"`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "backend")
}

func TestLoadRejectsBadTreasury(t *testing.T) {
	path := writeConfig(t, `
[Auction]
Treasury = "not-a-bech32-address"
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "treasury")
}

func TestLoadRejectsDuplicateAsset(t *testing.T) {
	path := writeConfig(t, `
[[Assets]]
Symbol = "CLT"
Name = "Collateral Token"
Decimals = 8
MinUnit = "1"

[[Assets]]
Symbol = "clt"
Name = "Collateral Token"
Decimals = 8
MinUnit = "1"
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "twice")
}

func TestLoadRejectsAllocationForUnknownAsset(t *testing.T) {
	path := writeConfig(t, `
[[Assets]]
Symbol = "CLT"
Name = "Collateral Token"
Decimals = 8
MinUnit = "1"

[[Allocations]]
Address = "lt1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqpc80xj"
Asset = "DOGE"
Amount = "10"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("150000000")
	require.NoError(t, err)
	require.Equal(t, "150000000", amount.String())

	big, err := ParseAmount("123456789012345678901234567890")
	require.NoError(t, err)
	require.Equal(t, "123456789012345678901234567890", big.String())

	_, err = ParseAmount("")
	require.Error(t, err)
	_, err = ParseAmount("-5")
	require.Error(t, err)
	_, err = ParseAmount("0")
	require.Error(t, err)
	_, err = ParseAmount("1.5")
	require.Error(t, err)
}

func TestTreasuryAddressDefaultsToZero(t *testing.T) {
	cfg := &Config{}
	treasury, err := cfg.TreasuryAddress()
	require.NoError(t, err)
	require.Equal(t, [20]byte{}, treasury)
}

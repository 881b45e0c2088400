package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"loantender/config"
	"loantender/core"
	"loantender/crypto"
	"loantender/native/auction"
	"loantender/observability/logging"
	"loantender/rpc"
	"loantender/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("loantenderd", cfg.Env)

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	nodeCfg, err := buildNodeConfig(cfg)
	if err != nil {
		logger.Error("Invalid node configuration", slog.Any("error", err))
		os.Exit(1)
	}

	node, err := core.NewNode(db, nodeCfg, logger)
	if err != nil {
		logger.Error("Failed to start node", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("node ready",
		slog.String("network", cfg.NetworkName),
		slog.Uint64("height", node.Height()),
		slog.Bool("devFaucet", cfg.DevFaucet),
	)

	go runBlockTicker(node, cfg.BlockIntervalSeconds, logger)

	server := rpc.NewServer(node, rpc.Options{
		AuthToken:         cfg.RPC.AuthToken,
		JWTSecret:         cfg.RPC.JWTSecret,
		RequestsPerMinute: cfg.RPC.RequestsPerMinute,
		Burst:             cfg.RPC.Burst,
	}, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Backend {
	case "mem":
		return storage.NewMemDB(), nil
	case "bolt":
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "loantender.db"))
	case "leveldb":
		return storage.NewLevelDB(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func buildNodeConfig(cfg *config.Config) (core.NodeConfig, error) {
	params := auction.Params{
		FeeRate:                  cfg.Auction.FeeRate,
		FeeDenom:                 cfg.Auction.FeeDenom,
		MinDurationBlocks:        cfg.Auction.MinDurationBlocks,
		MaxDurationBlocks:        cfg.Auction.MaxDurationBlocks,
		MinAuctionDurationBlocks: cfg.Auction.MinAuctionDurationBlocks,
	}
	treasury, err := cfg.TreasuryAddress()
	if err != nil {
		return core.NodeConfig{}, err
	}
	params.Treasury = treasury

	assets := make([]core.GenesisAsset, 0, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		minUnit, err := config.ParseAmount(asset.MinUnit)
		if err != nil {
			return core.NodeConfig{}, fmt.Errorf("asset %s: %w", asset.Symbol, err)
		}
		assets = append(assets, core.GenesisAsset{
			Symbol:   asset.Symbol,
			Name:     asset.Name,
			Decimals: asset.Decimals,
			MinUnit:  minUnit,
		})
	}

	allocations := make([]core.GenesisAllocation, 0, len(cfg.Alloc))
	for _, alloc := range cfg.Alloc {
		addr, err := crypto.DecodeAddress(alloc.Address)
		if err != nil {
			return core.NodeConfig{}, fmt.Errorf("allocation for %s: %w", alloc.Address, err)
		}
		amount, err := config.ParseAmount(alloc.Amount)
		if err != nil {
			return core.NodeConfig{}, fmt.Errorf("allocation for %s: %w", alloc.Address, err)
		}
		allocations = append(allocations, core.GenesisAllocation{
			Address: addr,
			Asset:   alloc.Asset,
			Amount:  amount,
		})
	}

	return core.NodeConfig{
		Params:      params,
		Assets:      assets,
		Allocations: allocations,
		DevFaucet:   cfg.DevFaucet,
	}, nil
}

func runBlockTicker(node *core.Node, intervalSeconds uint64, logger *slog.Logger) {
	if intervalSeconds == 0 {
		logger.Info("block ticker disabled; advance height via chain_advance")
		return
	}
	ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := node.AdvanceHeight(1); err != nil {
			logger.Error("failed to advance height", slog.Any("error", err))
		}
	}
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"nftmarket/audit"
	"nftmarket/config"
	"nftmarket/core"
	"nftmarket/observability/logging"
	"nftmarket/rpc"
	"nftmarket/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		if errors.Is(err, config.ErrCreatedDefault) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.SetupWithFile("marketd", cfg.Env, cfg.LogFile)

	vault, err := cfg.VaultAddress()
	if err != nil {
		logger.Error("Invalid vault address", slog.Any("error", err))
		os.Exit(1)
	}
	feeRecipient, err := cfg.FeeRecipientAddress()
	if err != nil {
		logger.Error("Invalid fee recipient address", slog.Any("error", err))
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to prepare data directory: %v", err))
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node, err := core.NewNode(db, vault, feeRecipient, cfg.FeeBps)
	if err != nil {
		panic(fmt.Sprintf("Failed to create node: %v", err))
	}

	journal, err := audit.Open(cfg.AuditDB)
	if err != nil {
		panic(fmt.Sprintf("Failed to open audit journal: %v", err))
	}
	defer journal.Close()
	node.SetEmitter(journal)

	logger.Info("market node ready",
		slog.String("vault", cfg.Vault),
		slog.String("feeRecipient", cfg.FeeRecipient),
		slog.Uint64("feeBps", uint64(cfg.FeeBps)),
	)

	server := rpc.NewServer(node, journal, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

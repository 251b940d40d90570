package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/driftmark/keeper/config"
	"github.com/driftmark/keeper/internal/adapters/notify"
	"github.com/driftmark/keeper/internal/adapters/onchain"
	"github.com/driftmark/keeper/internal/adapters/prices"
	"github.com/driftmark/keeper/internal/adapters/storage"
	"github.com/driftmark/keeper/internal/domain"
	"github.com/driftmark/keeper/internal/keeper"
	"github.com/driftmark/keeper/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one maintenance cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("keeper starting",
		"config", *configPath,
		"network", cfg.Network.Name,
		"market", cfg.Contracts.Market,
		"oracle", cfg.Contracts.Oracle,
		"poll_interval", cfg.PollInterval(),
		"once", *once,
	)

	if cfg.Network.PrivateKeyHex == "" {
		slog.Error("KEEPER_PRIVATE_KEY is required")
		os.Exit(1)
	}

	gateway, err := onchain.NewGateway(
		cfg.Network.RPCURL,
		cfg.Network.PrivateKeyHex,
		cfg.Network.ChainID,
		cfg.Contracts.Market,
		cfg.Contracts.Oracle,
	)
	if err != nil {
		slog.Error("failed to connect chain gateway", "err", err, "rpc", cfg.Network.RPCURL)
		os.Exit(1)
	}
	defer gateway.Close()
	slog.Info("chain gateway ready", "keeper_address", gateway.Address().Hex())

	var journal ports.Journal
	if cfg.Journal.DSN != "" {
		j, err := storage.NewSQLiteJournal(cfg.Journal.DSN)
		if err != nil {
			slog.Error("failed to open journal", "err", err, "dsn", cfg.Journal.DSN)
			os.Exit(1)
		}
		defer j.Close()
		journal = j
	}

	assets := make([]domain.Asset, len(cfg.Assets))
	for i, a := range cfg.Assets {
		assets[i] = domain.Asset{Symbol: a.Symbol, FeedSymbol: a.FeedSymbol}
	}

	keeperCfg := keeper.DefaultConfig()
	keeperCfg.PollInterval = cfg.PollInterval()
	keeperCfg.OracleInterval = cfg.OracleInterval()
	keeperCfg.FundingInterval = cfg.FundingInterval()
	keeperCfg.WritePacing = cfg.WritePacing()
	keeperCfg.Assets = assets
	keeperCfg.Once = *once

	k := keeper.New(keeperCfg, gateway, prices.NewClient(), journal, notify.NewConsole())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := k.Run(ctx); err != nil {
		slog.Error("keeper exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("keeper stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

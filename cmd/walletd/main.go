package main

import (
	"log"
	"net/http"
	"time"

	"mcw/internal/api"
	"mcw/internal/client"
	"mcw/internal/config"
	"mcw/internal/gateway"
	"mcw/internal/handler"
	"mcw/internal/pipeline"
	"mcw/internal/portfolio"
	"mcw/internal/presale"
	"mcw/internal/txbuild"
	"mcw/internal/txlog"
	"mcw/internal/vault"
	"mcw/internal/wallet"

	"go.uber.org/zap"
)

func main() {
	if err := config.Init(); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	if err := config.PromptForPassword(); err != nil {
		log.Fatalf("failed to read password: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	password, err := config.GetPasswordBytes()
	if err != nil {
		logger.Fatal("password not available", zap.Error(err))
	}
	store, err := vault.Open(cfg.StorePath, password)
	clear(password)
	if err != nil {
		logger.Fatal("failed to open secret store", zap.Error(err))
	}
	defer store.Close()

	chain := gateway.New(cfg.RPCURL, cfg.RPCFallbackURL, logger)

	program, err := presale.NewProgram(cfg.ProgramID, cfg.TokenMint)
	if err != nil {
		logger.Fatal("failed to set up program", zap.Error(err))
	}
	state := presale.NewStateReader(program, chain, cfg.PresaleRate, logger)

	builder := txbuild.New(chain, program, txbuild.Bounds{
		MinSOL: cfg.PresaleMinSOL,
		MaxSOL: cfg.PresaleMaxSOL,
	})

	walletSvc := wallet.NewService(store, logger)
	records := txlog.New(store)
	pipe := pipeline.New(chain, walletSvc, store, records,
		time.Duration(cfg.CooldownSeconds)*time.Second, logger)

	oracle := client.NewCoinGeckoClient(cfg.PriceOracleURL)
	assetIDs := []string{"solana"}
	mintAssetIDs := map[string]string{}
	if cfg.TokenPriceID != "" {
		assetIDs = append(assetIDs, cfg.TokenPriceID)
		mintAssetIDs[cfg.TokenMint] = cfg.TokenPriceID
	}
	agg := portfolio.New(chain, oracle, assetIDs, mintAssetIDs,
		time.Duration(cfg.PriceTTLSeconds)*time.Second, logger)
	pipe.OnSuccess(agg.Invalidate)

	h := handler.New(walletSvc, pipe, builder, agg, records, chain, state,
		cfg.TokenMint, cfg.TokenDecimals)
	router := api.SetupRouter(h)

	addr := "localhost:" + cfg.Port
	logger.Info("wallet service listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

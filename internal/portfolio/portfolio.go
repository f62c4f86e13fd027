package portfolio

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"mcw/internal/common"
	"mcw/internal/model"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// BalanceReader is the slice of the gateway the aggregator needs.
type BalanceReader interface {
	Balance(ctx context.Context, addr solana.PublicKey) (uint64, error)
	TokenAccounts(ctx context.Context, owner solana.PublicKey) ([]model.TokenBalance, error)
}

// PriceSource is the external market-data oracle.
type PriceSource interface {
	Markets(ctx context.Context, ids []string) ([]model.AssetPrice, error)
}

// Aggregator combines on-chain balances with oracle prices. It owns the
// refresh policy: prices are cached for a TTL so screens share one
// fetch instead of re-hitting the oracle on every focus. Oracle failure
// serves the last-known prices marked stale; balance read failure
// degrades to zero with a warning.
type Aggregator struct {
	chain        BalanceReader
	prices       PriceSource
	assetIDs     []string
	mintAssetIDs map[string]string // token mint -> oracle asset id
	ttl          time.Duration
	log          *zap.Logger

	mu        sync.Mutex
	cached    []model.AssetPrice
	fetchedAt time.Time
}

// New creates an Aggregator tracking assetIDs. mintAssetIDs maps token
// mints to oracle asset ids; tokens without a mapping are listed in the
// portfolio but excluded from the USD total.
func New(chain BalanceReader, prices PriceSource, assetIDs []string, mintAssetIDs map[string]string, ttl time.Duration, log *zap.Logger) *Aggregator {
	return &Aggregator{
		chain:        chain,
		prices:       prices,
		assetIDs:     assetIDs,
		mintAssetIDs: mintAssetIDs,
		ttl:          ttl,
		log:          log,
	}
}

// Balances reads the owner's native and token balances. A network
// failure returns zeros rather than an error: display degrades, it
// does not break.
func (a *Aggregator) Balances(ctx context.Context, owner solana.PublicKey) model.BalanceResponse {
	out := model.BalanceResponse{
		Address: owner.String(),
		SOL:     common.LamportsToSOL(0),
		Tokens:  []model.TokenBalance{},
	}

	lamports, err := a.chain.Balance(ctx, owner)
	if err != nil {
		a.log.Warn("balance read failed, serving zero", zap.Error(err))
	} else {
		out.SOL = common.LamportsToSOL(lamports)
	}

	tokens, err := a.chain.TokenAccounts(ctx, owner)
	if err != nil {
		a.log.Warn("token account read failed, serving empty", zap.Error(err))
	} else {
		out.Tokens = tokens
	}
	return out
}

// Prices returns the tracked asset prices, cached for the TTL.
func (a *Aggregator) Prices(ctx context.Context) []model.AssetPrice {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && time.Since(a.fetchedAt) < a.ttl {
		return a.cached
	}

	fresh, err := a.prices.Markets(ctx, a.assetIDs)
	if err != nil {
		a.log.Warn("price oracle failed, serving last-known prices", zap.Error(err))
		stale := make([]model.AssetPrice, len(a.cached))
		for i, p := range a.cached {
			p.Stale = true
			stale[i] = p
		}
		return stale
	}

	a.cached = fresh
	a.fetchedAt = time.Now()
	return fresh
}

// Invalidate drops the price cache; called after a confirmed
// submission so the next read is fresh.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetchedAt = time.Time{}
}

// Portfolio combines balances and prices into a valued view. TotalUSD
// sums the SOL position and every token with a configured oracle id;
// unmapped tokens are listed unpriced. Floats are used for display math
// only, never for amounts that move funds.
func (a *Aggregator) Portfolio(ctx context.Context, owner solana.PublicKey) model.PortfolioResponse {
	balances := a.Balances(ctx, owner)
	prices := a.Prices(ctx)

	priceByID := make(map[string]float64, len(prices))
	for _, p := range prices {
		priceByID[p.ID] = p.CurrentPrice
	}

	solFloat, _ := strconv.ParseFloat(balances.SOL, 64)
	solValue := solFloat * priceByID["solana"]

	total := solValue
	for _, tb := range balances.Tokens {
		id, ok := a.mintAssetIDs[tb.Mint]
		if !ok {
			continue
		}
		price, ok := priceByID[id]
		if !ok {
			continue
		}
		amount, err := strconv.ParseFloat(tb.Amount, 64)
		if err != nil {
			continue
		}
		total += amount * price
	}

	return model.PortfolioResponse{
		Address:     balances.Address,
		TotalUSD:    fmt.Sprintf("%.2f", total),
		SOL:         balances.SOL,
		SOLValueUSD: fmt.Sprintf("%.2f", solValue),
		Tokens:      balances.Tokens,
		Prices:      prices,
	}
}

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mcw/internal/model"
)

// CoinGeckoClient client for the CoinGecko market-data API. Read-only
// and best-effort; callers degrade to cached prices on failure.
type CoinGeckoClient struct {
	baseURL string
	client  *http.Client
}

// NewCoinGeckoClient creates a new CoinGecko client
func NewCoinGeckoClient(baseURL string) *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Markets fetches current prices for the tracked asset ids.
func (c *CoinGeckoClient) Markets(ctx context.Context, ids []string) ([]model.AssetPrice, error) {
	u := fmt.Sprintf("%s/coins/markets?vs_currency=usd&ids=%s",
		c.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build markets request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get markets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get markets: status %d", resp.StatusCode)
	}

	var prices []model.AssetPrice
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return nil, fmt.Errorf("failed to decode markets: %w", err)
	}
	return prices, nil
}

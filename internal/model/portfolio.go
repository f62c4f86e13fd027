package model

// AssetPrice is one tracked asset from the price oracle.
type AssetPrice struct {
	ID           string  `json:"id"`
	CurrentPrice float64 `json:"current_price"`
	Change24h    float64 `json:"price_change_percentage_24h"`
	MarketCap    float64 `json:"market_cap"`
	TotalVolume  float64 `json:"total_volume"`
	Stale        bool    `json:"stale,omitempty"` // last-known value after an oracle failure
}

// PortfolioResponse represents response for GET /portfolio
type PortfolioResponse struct {
	Address     string         `json:"address"`
	TotalUSD    string         `json:"totalUSD"`
	SOL         string         `json:"sol"`
	SOLValueUSD string         `json:"solValueUSD"`
	Tokens      []TokenBalance `json:"tokens"`
	Prices      []AssetPrice   `json:"prices"`
}

// ProgramState is the cached, non-authoritative mirror of the presale
// program's on-chain config account. Informational only; fund-moving
// validation always re-reads balances at build time.
type ProgramState struct {
	TotalSold   uint64 `json:"totalSold"`
	TotalStaked uint64 `json:"totalStaked"`
	Rate        uint64 `json:"rate"`
	Active      bool   `json:"active"`
	FromChain   bool   `json:"fromChain"` // false when defaults are being served
}

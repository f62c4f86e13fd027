package model

// ErrorResponse is the consistent JSON structure for all API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CreateWalletResponse represents response for POST /wallet/create
type CreateWalletResponse struct {
	Address        string `json:"address"`
	RecoveryPhrase string `json:"recoveryPhrase"`
}

// ImportWalletRequest represents request for POST /wallet/import
type ImportWalletRequest struct {
	RecoveryPhrase string `json:"recoveryPhrase" binding:"required"`
}

// ImportWalletResponse represents response for POST /wallet/import
type ImportWalletResponse struct {
	Address string `json:"address"`
}

// AddressResponse represents response for GET /wallet/address
type AddressResponse struct {
	Address string `json:"address"`
	QR      string `json:"qr,omitempty"` // base64 PNG
}

// PayRequest represents request for POST /pay/...
type PayRequest struct {
	ToAddress string `json:"toAddress" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Mint      string `json:"mint,omitempty"` // token transfers only
}

// ProgramRequest represents request for POST /presale/...
type ProgramRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// SubmitResponse represents response for all fund-moving endpoints.
type SubmitResponse struct {
	Signature string `json:"signature"`
	Status    string `json:"status"`
}

// BalanceResponse represents response for GET /balance
type BalanceResponse struct {
	Address string         `json:"address"`
	SOL     string         `json:"sol"`
	Tokens  []TokenBalance `json:"tokens"`
}

// TokenBalance is one fungible token position.
type TokenBalance struct {
	Mint     string `json:"mint"`
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

// HistoryResponse represents response for GET /history
type HistoryResponse struct {
	Address string        `json:"address"`
	Items   []HistoryItem `json:"items"`
}

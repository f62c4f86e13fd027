package api

import (
	"net/http"

	"mcw/internal/handler"

	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRouter sets up router with handlers
func SetupRouter(h *handler.Handler) http.Handler {
	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Wallet lifecycle
	mux.HandleFunc("/wallet/create", h.CreateWallet)
	mux.HandleFunc("/wallet/import", h.ImportWallet)
	mux.HandleFunc("/wallet/logout", h.Logout)
	mux.HandleFunc("/wallet/address", h.Address)

	// Balances and history
	mux.HandleFunc("/balance", h.Balance)
	mux.HandleFunc("/portfolio", h.Portfolio)
	mux.HandleFunc("/history", h.History)

	// Payments
	mux.HandleFunc("/pay/sol", h.PaySOL)
	mux.HandleFunc("/pay/token", h.PayToken)

	// Presale program
	mux.HandleFunc("/presale/state", h.PresaleState)
	mux.HandleFunc("/presale/buy", h.PresaleBuy)
	mux.HandleFunc("/presale/stake", h.Stake)
	mux.HandleFunc("/presale/unstake", h.Unstake)
	mux.HandleFunc("/presale/claim", h.Claim)

	return mux
}

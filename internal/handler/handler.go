package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"mcw/internal/model"
	"mcw/internal/pipeline"
	"mcw/internal/portfolio"
	"mcw/internal/presale"
	"mcw/internal/txbuild"
	"mcw/internal/txlog"
	"mcw/internal/wallet"

	"github.com/gagliardetto/solana-go"
)

// ChainHistory is the slice of the gateway the history endpoint needs.
type ChainHistory interface {
	History(ctx context.Context, addr solana.PublicKey, limit int) ([]model.ChainEntry, error)
	TransactionFee(ctx context.Context, sig solana.Signature) string
}

// Handler wires the wallet core to the localhost HTTP facade the
// mobile shell talks to.
type Handler struct {
	wallet        *wallet.Service
	pipe          *pipeline.Pipeline
	builder       *txbuild.Builder
	agg           *portfolio.Aggregator
	records       *txlog.Log
	chain         ChainHistory
	state         *presale.StateReader
	tokenMint     string
	tokenDecimals int
}

// New creates a Handler.
func New(
	walletSvc *wallet.Service,
	pipe *pipeline.Pipeline,
	builder *txbuild.Builder,
	agg *portfolio.Aggregator,
	records *txlog.Log,
	chain ChainHistory,
	state *presale.StateReader,
	tokenMint string,
	tokenDecimals int,
) *Handler {
	return &Handler{
		wallet:        walletSvc,
		pipe:          pipe,
		builder:       builder,
		agg:           agg,
		records:       records,
		chain:         chain,
		state:         state,
		tokenMint:     tokenMint,
		tokenDecimals: tokenDecimals,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses and a stable
// machine-readable code.
func writeError(w http.ResponseWriter, err error) {
	var (
		verr *model.ValidationError
		nerr *model.NetworkError
		serr *model.SubmissionError
		perr *model.PersistenceError
	)

	switch {
	case errors.Is(err, model.ErrInvalidPhrase):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "invalid_phrase"})
	case errors.Is(err, model.ErrWalletNotInitialized):
		writeJSON(w, http.StatusConflict, model.ErrorResponse{Error: err.Error(), Code: "not_initialized"})
	case errors.Is(err, model.ErrCooldownActive):
		writeJSON(w, http.StatusTooManyRequests, model.ErrorResponse{Error: err.Error(), Code: "cooldown"})
	case errors.Is(err, model.ErrSubmissionInFlight):
		writeJSON(w, http.StatusConflict, model.ErrorResponse{Error: err.Error(), Code: "busy"})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{Error: err.Error(), Code: "validation"})
	case errors.As(err, &nerr):
		writeJSON(w, http.StatusBadGateway, model.ErrorResponse{Error: err.Error(), Code: "network"})
	case errors.As(err, &serr):
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: err.Error(), Code: "submission_" + string(serr.Kind)})
	case errors.As(err, &perr):
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: err.Error(), Code: "persistence"})
	default:
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
	}
}

// CreateWallet handles POST /wallet/create
// @Summary      Create new wallet
// @Description  Generates a recovery phrase and keypair, persists them in the secret store
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.CreateWalletResponse
// @Router       /wallet/create [post]
func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	address, phrase, err := h.wallet.Create()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.CreateWalletResponse{
		Address:        address,
		RecoveryPhrase: phrase,
	})
}

// ImportWallet handles POST /wallet/import
// @Summary      Import wallet
// @Description  Validates a recovery phrase and restores the wallet identity from it
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      model.ImportWalletRequest  true  "Recovery phrase"
// @Success      200      {object}  model.ImportWalletResponse
// @Router       /wallet/import [post]
func (h *Handler) ImportWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.ImportWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	address, err := h.wallet.Import(req.RecoveryPhrase)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ImportWalletResponse{Address: address})
}

// Logout handles POST /wallet/logout
// @Summary      Logout
// @Description  Erases the wallet identity and all auxiliary state from the device
// @Tags         wallet
// @Produce      json
// @Success      200
// @Router       /wallet/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	if err := h.wallet.Logout(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Address handles GET /wallet/address
// @Summary      Get receive address
// @Description  Returns the wallet address and a QR code for receiving funds
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.AddressResponse
// @Router       /wallet/address [get]
func (h *Handler) Address(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	address, qr, err := h.wallet.ReceiveQR()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.AddressResponse{Address: address, QR: qr})
}

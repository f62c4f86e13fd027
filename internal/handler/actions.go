package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"mcw/internal/model"
	"mcw/internal/pipeline"
	"mcw/internal/txbuild"
	"mcw/internal/txlog"

	"github.com/gagliardetto/solana-go"
)

const historyFetchLimit = 20

// Balance handles GET /balance
// @Summary      Get balances
// @Description  Returns native and token balances; degrades to zero when the node is unreachable
// @Tags         balance
// @Produce      json
// @Success      200  {object}  model.BalanceResponse
// @Router       /balance [get]
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	owner, err := h.wallet.PublicKey()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.agg.Balances(r.Context(), owner))
}

// Portfolio handles GET /portfolio
// @Summary      Get portfolio
// @Description  Balances combined with oracle prices and USD valuation
// @Tags         balance
// @Produce      json
// @Success      200  {object}  model.PortfolioResponse
// @Router       /portfolio [get]
func (h *Handler) Portfolio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	owner, err := h.wallet.PublicKey()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.agg.Portfolio(r.Context(), owner))
}

// History handles GET /history
// @Summary      Get transaction history
// @Description  On-chain history merged with the local action log, newest first
// @Tags         history
// @Produce      json
// @Success      200  {object}  model.HistoryResponse
// @Router       /history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	owner, err := h.wallet.PublicKey()
	if err != nil {
		writeError(w, err)
		return
	}

	onChain, err := h.chain.History(r.Context(), owner, historyFetchLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	// Fee lookups are independent and best-effort; run them concurrently
	// instead of serially round-tripping the node per entry
	var wg sync.WaitGroup
	for i := range onChain {
		sig, serr := solana.SignatureFromBase58(onChain[i].Signature)
		if serr != nil {
			continue
		}
		wg.Add(1)
		go func(i int, sig solana.Signature) {
			defer wg.Done()
			onChain[i].FeeSOL = h.chain.TransactionFee(r.Context(), sig)
		}(i, sig)
	}
	wg.Wait()

	local, err := h.records.List()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.HistoryResponse{
		Address: owner.String(),
		Items:   txlog.Merge(onChain, local),
	})
}

// PaySOL handles POST /pay/sol
// @Summary      Send SOL
// @Description  Builds, simulates, signs, sends and confirms a native transfer
// @Tags         pay
// @Accept       json
// @Produce      json
// @Param        request  body      model.PayRequest  true  "Recipient and decimal amount"
// @Success      200      {object}  model.SubmitResponse
// @Failure      422      {object}  model.ErrorResponse
// @Failure      429      {object}  model.ErrorResponse
// @Router       /pay/sol [post]
func (h *Handler) PaySOL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	owner, err := h.wallet.PublicKey()
	if err != nil {
		writeError(w, err)
		return
	}

	record := model.Record{
		Type:     model.ActionSend,
		From:     owner.String(),
		To:       req.ToAddress,
		Amount:   req.Amount,
		Currency: "SOL",
	}
	build := func(ctx context.Context) (*txbuild.Built, error) {
		return h.builder.NativeTransfer(ctx, owner, req.ToAddress, req.Amount)
	}
	h.submit(w, r, record, build, false)
}

// PayToken handles POST /pay/token
// @Summary      Send SPL token
// @Description  Token transfer; creates the recipient token account in the same transaction when missing
// @Tags         pay
// @Accept       json
// @Produce      json
// @Param        request  body      model.PayRequest  true  "Recipient, decimal amount and optional mint"
// @Success      200      {object}  model.SubmitResponse
// @Failure      422      {object}  model.ErrorResponse
// @Failure      429      {object}  model.ErrorResponse
// @Router       /pay/token [post]
func (h *Handler) PayToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	mint := req.Mint
	if mint == "" {
		mint = h.tokenMint
	}

	owner, err := h.wallet.PublicKey()
	if err != nil {
		writeError(w, err)
		return
	}

	record := model.Record{
		Type:     model.ActionSend,
		From:     owner.String(),
		To:       req.ToAddress,
		Amount:   req.Amount,
		Currency: mint,
	}
	build := func(ctx context.Context) (*txbuild.Built, error) {
		return h.builder.TokenTransfer(ctx, owner, req.ToAddress, mint, h.tokenDecimals, req.Amount)
	}
	h.submit(w, r, record, build, false)
}

// PresaleState handles GET /presale/state
// @Summary      Get presale state
// @Description  Mirror of the program's on-chain config account
// @Tags         presale
// @Produce      json
// @Success      200  {object}  model.ProgramState
// @Router       /presale/state [get]
func (h *Handler) PresaleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.state.Read(r.Context()))
}

// PresaleBuy handles POST /presale/buy
// @Summary      Buy presale tokens
// @Description  Purchase within the configured SOL bounds; aborts on failed simulation
// @Tags         presale
// @Accept       json
// @Produce      json
// @Param        request  body      model.ProgramRequest  true  "Decimal SOL amount"
// @Success      200      {object}  model.SubmitResponse
// @Failure      422      {object}  model.ErrorResponse
// @Failure      429      {object}  model.ErrorResponse
// @Router       /presale/buy [post]
func (h *Handler) PresaleBuy(w http.ResponseWriter, r *http.Request) {
	h.programAction(w, r, model.ActionPresale, "SOL")
}

// Stake handles POST /presale/stake
// @Summary      Stake tokens
// @Tags         presale
// @Accept       json
// @Produce      json
// @Param        request  body      model.ProgramRequest  true  "Decimal token amount"
// @Success      200      {object}  model.SubmitResponse
// @Router       /presale/stake [post]
func (h *Handler) Stake(w http.ResponseWriter, r *http.Request) {
	h.programAction(w, r, model.ActionStake, h.tokenMint)
}

// Unstake handles POST /presale/unstake
// @Summary      Unstake tokens
// @Tags         presale
// @Accept       json
// @Produce      json
// @Param        request  body      model.ProgramRequest  true  "Decimal token amount"
// @Success      200      {object}  model.SubmitResponse
// @Router       /presale/unstake [post]
func (h *Handler) Unstake(w http.ResponseWriter, r *http.Request) {
	h.programAction(w, r, model.ActionUnstake, h.tokenMint)
}

// Claim handles POST /presale/claim
// @Summary      Claim staking rewards
// @Tags         presale
// @Produce      json
// @Success      200  {object}  model.SubmitResponse
// @Router       /presale/claim [post]
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	h.programAction(w, r, model.ActionClaim, h.tokenMint)
}

// programAction is the shared flow of the presale endpoints: decode the
// amount (claim takes none), re-read the program's active flag right
// before the build, and run the submission with strict simulation.
func (h *Handler) programAction(w http.ResponseWriter, r *http.Request, action model.ActionType, currency string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.ProgramRequest
	if action != model.ActionClaim {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
			return
		}
	}

	owner, err := h.wallet.PublicKey()
	if err != nil {
		writeError(w, err)
		return
	}

	record := model.Record{
		Type:     action,
		From:     owner.String(),
		Amount:   req.Amount,
		Currency: currency,
	}
	build := func(ctx context.Context) (*txbuild.Built, error) {
		state := h.state.Read(ctx)
		return h.builder.ProgramAction(ctx, owner, action, req.Amount, h.tokenDecimals, state.Active)
	}
	// Program interactions never proceed past a failed dry-run
	h.submit(w, r, record, build, true)
}

// submit runs the pipeline with a confirmation deadline and maps the
// outcome onto the wire.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, record model.Record, build pipeline.BuildFunc, strict bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 90*time.Second)
	defer cancel()

	sig, err := h.pipe.Submit(ctx, record, build, strict)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SubmitResponse{
		Signature: sig,
		Status:    string(model.StatusCompleted),
	})
}

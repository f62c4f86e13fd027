package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mcw/internal/common"
	"mcw/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const confirmPollInterval = 2 * time.Second

// Gateway is the JSON-RPC client to the chain node. Every read runs
// against the primary endpoint and is retried exactly once against the
// fallback before a NetworkError is surfaced. Sends are never retried
// here - a silent resend risks double-submission; retry policy belongs
// to the submission pipeline.
type Gateway struct {
	primary  *rpc.Client
	fallback *rpc.Client
	log      *zap.Logger
}

// New creates a Gateway over a primary/fallback RPC endpoint pair.
func New(primaryURL, fallbackURL string, log *zap.Logger) *Gateway {
	return &Gateway{
		primary:  rpc.New(primaryURL),
		fallback: rpc.New(fallbackURL),
		log:      log,
	}
}

// do runs fn against the primary client, then once against the fallback.
// The NetworkError carries the primary's error.
func (g *Gateway) do(method string, fn func(*rpc.Client) error) error {
	primaryErr := fn(g.primary)
	if primaryErr == nil {
		return nil
	}

	g.log.Warn("primary rpc failed, retrying on fallback",
		zap.String("method", method),
		zap.Error(primaryErr),
	)

	if err := fn(g.fallback); err != nil {
		return &model.NetworkError{Method: method, Cause: primaryErr}
	}
	return nil
}

// Balance returns the native balance of addr in lamports.
func (g *Gateway) Balance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	var lamports uint64
	err := g.do("getBalance", func(c *rpc.Client) error {
		out, err := c.GetBalance(ctx, addr, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		lamports = out.Value
		return nil
	})
	return lamports, err
}

// parsedTokenAccount is the jsonParsed shape of an SPL token account.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			Owner       string `json:"owner"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals int    `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// TokenAccounts enumerates owner's SPL token balances. Zero-amount
// accounts are filtered out client-side.
func (g *Gateway) TokenAccounts(ctx context.Context, owner solana.PublicKey) ([]model.TokenBalance, error) {
	var out []model.TokenBalance
	err := g.do("getTokenAccountsByOwner", func(c *rpc.Client) error {
		res, err := c.GetTokenAccountsByOwner(
			ctx,
			owner,
			&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
			&rpc.GetTokenAccountsOpts{
				Commitment: rpc.CommitmentConfirmed,
				Encoding:   solana.EncodingJSONParsed,
			},
		)
		if err != nil {
			return err
		}

		balances := make([]model.TokenBalance, 0, len(res.Value))
		for _, acc := range res.Value {
			var parsed parsedTokenAccount
			if err := json.Unmarshal(acc.Account.Data.GetRawJSON(), &parsed); err != nil {
				return fmt.Errorf("malformed token account data: %w", err)
			}
			amount, err := strconv.ParseUint(parsed.Parsed.Info.TokenAmount.Amount, 10, 64)
			if err != nil {
				return fmt.Errorf("malformed token amount: %w", err)
			}
			if amount == 0 {
				continue
			}
			balances = append(balances, model.TokenBalance{
				Mint:     parsed.Parsed.Info.Mint,
				Amount:   common.FormatUnits(amount, parsed.Parsed.Info.TokenAmount.Decimals),
				Decimals: parsed.Parsed.Info.TokenAmount.Decimals,
			})
		}
		out = balances
		return nil
	})
	return out, err
}

// TokenAccountBalance returns the base-unit balance held by a token
// account, or 0 if the account does not exist.
func (g *Gateway) TokenAccountBalance(ctx context.Context, ata solana.PublicKey) (uint64, error) {
	var amount uint64
	err := g.do("getTokenAccountBalance", func(c *rpc.Client) error {
		out, err := c.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
		if err != nil {
			if isNotFoundError(err) {
				amount = 0
				return nil
			}
			return err
		}
		if out.Value == nil {
			amount = 0
			return nil
		}
		n, err := strconv.ParseUint(out.Value.Amount, 10, 64)
		if err != nil {
			return fmt.Errorf("malformed token balance amount: %w", err)
		}
		amount = n
		return nil
	})
	return amount, err
}

// isNotFoundError checks if error indicates that an account doesn't exist
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "could not find account") ||
		strings.Contains(errStr, "not found")
}

// AccountExists reports whether addr holds an initialized account.
func (g *Gateway) AccountExists(ctx context.Context, addr solana.PublicKey) (bool, error) {
	var exists bool
	err := g.do("getAccountInfo", func(c *rpc.Client) error {
		out, err := c.GetAccountInfo(ctx, addr)
		if err != nil {
			if err == rpc.ErrNotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = out != nil && out.Value != nil
		return nil
	})
	return exists, err
}

// AccountData returns the raw data of addr, or nil if the account does
// not exist.
func (g *Gateway) AccountData(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	var data []byte
	err := g.do("getAccountInfo", func(c *rpc.Client) error {
		out, err := c.GetAccountInfo(ctx, addr)
		if err != nil {
			if err == rpc.ErrNotFound {
				data = nil
				return nil
			}
			return err
		}
		if out == nil || out.Value == nil {
			data = nil
			return nil
		}
		data = out.Value.Data.GetBinary()
		return nil
	})
	return data, err
}

// Blockhash holds a recent blockhash and the last block height it is
// valid at. Transactions built on it must be signed and sent
// immediately; the hash expires after a bounded number of blocks.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// LatestBlockhash fetches a fresh blockhash.
func (g *Gateway) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	var bh Blockhash
	err := g.do("getLatestBlockhash", func(c *rpc.Client) error {
		out, err := c.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return err
		}
		bh = Blockhash{
			Hash:                 out.Value.Blockhash,
			LastValidBlockHeight: out.Value.LastValidBlockHeight,
		}
		return nil
	})
	return bh, err
}

// Simulate dry-runs tx. Returns the simulation error reported by the
// node, nil if the simulation passed.
func (g *Gateway) Simulate(ctx context.Context, tx *solana.Transaction) error {
	var simErr error
	err := g.do("simulateTransaction", func(c *rpc.Client) error {
		out, err := c.SimulateTransaction(ctx, tx)
		if err != nil {
			return err
		}
		if out.Value != nil && out.Value.Err != nil {
			simErr = fmt.Errorf("simulation failed: %v", out.Value.Err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return simErr
}

// Send submits a signed transaction. No fallback hop and no retry: the
// primary may have broadcast it even when the call errors.
func (g *Gateway) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := g.primary.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// WaitForConfirmation polls until sig reaches confirmed commitment or
// the blockhash it was built on expires. The ceiling is tied to block
// height, not wall clock; ctx bounds the overall wait as a backstop.
func (g *Gateway) WaitForConfirmation(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		status, err := g.signatureStatus(ctx, sig)
		if err == nil && status != nil {
			if status.Err != nil {
				return &model.SubmissionError{Kind: model.SubmissionUnknown, Cause: fmt.Errorf("transaction failed on-chain: %v", status.Err)}
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		height, heightErr := g.blockHeight(ctx)
		if heightErr == nil && height > lastValidBlockHeight {
			return &model.SubmissionError{
				Kind:  model.SubmissionBlockhashExpired,
				Cause: fmt.Errorf("block height %d exceeded last valid %d", height, lastValidBlockHeight),
			}
		}

		select {
		case <-ctx.Done():
			return &model.SubmissionError{Kind: model.SubmissionTimeout, Cause: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (g *Gateway) signatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	var status *rpc.SignatureStatusesResult
	err := g.do("getSignatureStatuses", func(c *rpc.Client) error {
		out, err := c.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			return err
		}
		if len(out.Value) > 0 {
			status = out.Value[0]
		}
		return nil
	})
	return status, err
}

func (g *Gateway) blockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := g.do("getBlockHeight", func(c *rpc.Client) error {
		out, err := c.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		height = out
		return nil
	})
	return height, err
}

// History returns recent settled transactions touching addr, newest
// first as reported by the node.
func (g *Gateway) History(ctx context.Context, addr solana.PublicKey, limit int) ([]model.ChainEntry, error) {
	var entries []model.ChainEntry
	err := g.do("getSignaturesForAddress", func(c *rpc.Client) error {
		sigs, err := c.GetSignaturesForAddressWithOpts(ctx, addr, &rpc.GetSignaturesForAddressOpts{
			Limit: &limit,
		})
		if err != nil {
			return err
		}

		out := make([]model.ChainEntry, 0, len(sigs))
		for _, s := range sigs {
			entry := model.ChainEntry{
				Signature: s.Signature.String(),
				Slot:      s.Slot,
				Failed:    s.Err != nil,
			}
			if s.BlockTime != nil {
				t := s.BlockTime.Time()
				entry.BlockTime = &t
			}
			out = append(out, entry)
		}
		entries = out
		return nil
	})
	return entries, err
}

// TransactionFee returns the fee paid by a settled transaction, as a
// SOL decimal string. Best-effort: returns "" when the lookup fails.
func (g *Gateway) TransactionFee(ctx context.Context, sig solana.Signature) string {
	maxVersion := uint64(0)
	var fee string
	err := g.do("getTransaction", func(c *rpc.Client) error {
		out, err := c.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if err != nil {
			return err
		}
		if out != nil && out.Meta != nil {
			fee = common.LamportsToSOL(out.Meta.Fee)
		}
		return nil
	})
	if err != nil {
		return ""
	}
	return fee
}

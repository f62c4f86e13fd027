package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"mcw/internal/model"
	"mcw/internal/txbuild"
	"mcw/internal/txlog"
	"mcw/internal/vault"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Chain is the slice of the gateway the pipeline drives.
type Chain interface {
	Simulate(ctx context.Context, tx *solana.Transaction) error
	Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	WaitForConfirmation(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error
}

// SignerSource hands out the signing key for exactly one run.
type SignerSource interface {
	Signer() (solana.PrivateKey, error)
}

// Store is the slice of the vault used for the cooldown timestamp.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// BuildFunc produces the unsigned transaction for a run. It is called
// inside the run so no user-interaction gap opens between blockhash
// fetch and signing.
type BuildFunc func(ctx context.Context) (*txbuild.Built, error)

// Pipeline orchestrates one fund-moving submission:
// Built -> Simulated -> Signed -> Sent -> Confirmed, or Failed at any
// step. One run at a time per wallet; a 30s cooldown separates runs.
type Pipeline struct {
	chain    Chain
	signer   SignerSource
	store    Store
	records  *txlog.Log
	log      *zap.Logger
	cooldown time.Duration

	busy      atomic.Bool
	onSuccess func() // balance refresh hook, may be nil
}

// New creates a Pipeline.
func New(chain Chain, signer SignerSource, store Store, records *txlog.Log, cooldown time.Duration, log *zap.Logger) *Pipeline {
	return &Pipeline{
		chain:    chain,
		signer:   signer,
		store:    store,
		records:  records,
		cooldown: cooldown,
		log:      log,
	}
}

// OnSuccess registers a hook run after a confirmed submission.
func (p *Pipeline) OnSuccess(fn func()) { p.onSuccess = fn }

// Submit runs the full state machine for one intent. record carries the
// user-facing semantics and is logged optimistically before the build;
// it is settled with the signature and final status before Submit
// returns. strictSimulation aborts on a failed dry-run instead of
// proceeding with a warning.
func (p *Pipeline) Submit(ctx context.Context, record model.Record, build BuildFunc, strictSimulation bool) (string, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return "", model.ErrSubmissionInFlight
	}
	defer p.busy.Store(false)

	// Cooldown gate: rejected client-side before any network traffic
	if err := p.checkCooldown(); err != nil {
		return "", err
	}

	record.Status = model.StatusPending
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if err := p.records.Append(record); err != nil {
		return "", err
	}

	sig, err := p.run(ctx, record, build, strictSimulation)
	if err != nil {
		p.settle(record, sig, model.StatusFailed, err)
		return "", err
	}

	p.settle(record, sig, model.StatusCompleted, nil)
	if err := p.store.Set(vault.KeyLastTxTime, time.Now().UTC().Format(time.RFC3339)); err != nil {
		p.log.Warn("failed to persist last transaction time", zap.Error(err))
	}
	if p.onSuccess != nil {
		p.onSuccess()
	}
	return sig, nil
}

func (p *Pipeline) run(ctx context.Context, record model.Record, build BuildFunc, strictSimulation bool) (string, error) {
	// Built
	built, err := build(ctx)
	if err != nil {
		return "", err
	}

	// Simulated (advisory unless strict)
	if simErr := p.chain.Simulate(ctx, built.Tx); simErr != nil {
		if strictSimulation {
			return "", Classify(simErr)
		}
		p.log.Warn("simulation failed, proceeding to send",
			zap.String("type", string(record.Type)),
			zap.Error(simErr),
		)
	}

	// Signed: key lives for this run only
	key, err := p.signer.Signer()
	if err != nil {
		return "", err
	}
	defer clear(key)

	_, err = built.Tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if key.PublicKey().Equals(pub) {
			return &key
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	// Sent: never auto-resent, the node may have it even when the call
	// errors
	sig, err := p.chain.Send(ctx, built.Tx)
	if err != nil {
		return "", Classify(err)
	}

	// Confirmed, bounded by blockhash expiry
	if err := p.chain.WaitForConfirmation(ctx, sig, built.LastValidBlockHeight); err != nil {
		return sig.String(), Classify(err)
	}
	return sig.String(), nil
}

// settle updates the optimistic record with the outcome. A failure to
// persist the outcome is logged but does not mask the run's result.
func (p *Pipeline) settle(record model.Record, sig string, status model.RecordStatus, cause error) {
	err := p.records.Update(
		func(r model.Record) bool {
			return r.Status == model.StatusPending && r.Type == record.Type && r.Timestamp.Equal(record.Timestamp)
		},
		func(r *model.Record) {
			r.Signature = sig
			r.Status = status
			if cause != nil {
				r.Error = cause.Error()
			}
		},
	)
	if err != nil {
		p.log.Error("failed to settle transaction record", zap.Error(err))
	}
}

func (p *Pipeline) checkCooldown() error {
	raw, ok, err := p.store.Get(vault.KeyLastTxTime)
	if err != nil || !ok || raw == "" {
		return nil // unreadable timestamp never blocks; worst case is an extra submission attempt
	}
	last, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	if since := time.Since(last); since < p.cooldown {
		remaining := (p.cooldown - since).Round(time.Second)
		return fmt.Errorf("%w: wait %v", model.ErrCooldownActive, remaining)
	}
	return nil
}

// Classify maps a send/confirm failure onto the submission taxonomy.
// Already-classified errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var sub *model.SubmissionError
	if errors.As(err, &sub) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &model.SubmissionError{Kind: model.SubmissionTimeout, Cause: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "blockhashnotfound") ||
		strings.Contains(msg, "blockhash not found") ||
		strings.Contains(msg, "block height exceeded"):
		return &model.SubmissionError{Kind: model.SubmissionBlockhashExpired, Cause: err}
	case strings.Contains(msg, "insufficient funds") ||
		strings.Contains(msg, "insufficient lamports"):
		return &model.SubmissionError{Kind: model.SubmissionInsufficientFunds, Cause: err}
	case strings.Contains(msg, "rejected"):
		return &model.SubmissionError{Kind: model.SubmissionUserRejected, Cause: err}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return &model.SubmissionError{Kind: model.SubmissionTimeout, Cause: err}
	default:
		return &model.SubmissionError{Kind: model.SubmissionUnknown, Cause: err}
	}
}

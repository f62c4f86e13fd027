package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mcw/internal/model"
	"mcw/internal/txbuild"
	"mcw/internal/txlog"
	"mcw/internal/vault"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore map[string]string

func (m memStore) Get(key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memStore) Set(key, value string) error {
	m[key] = value
	return nil
}

type fakeChain struct {
	simulateErr error
	sendErr     error
	confirmErr  error
	sendCalls   int
}

func (f *fakeChain) Simulate(ctx context.Context, tx *solana.Transaction) error {
	return f.simulateErr
}

func (f *fakeChain) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.sendCalls++
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	return solana.Signature{1}, nil
}

func (f *fakeChain) WaitForConfirmation(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error {
	return f.confirmErr
}

type fakeSigner struct {
	key solana.PrivateKey
}

func (f *fakeSigner) Signer() (solana.PrivateKey, error) {
	out := make(solana.PrivateKey, len(f.key))
	copy(out, f.key)
	return out, nil
}

func testBuild(key solana.PrivateKey) BuildFunc {
	return func(ctx context.Context) (*txbuild.Built, error) {
		from := key.PublicKey()
		to := solana.MustPublicKeyFromBase58("4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU")
		tx, err := solana.NewTransaction(
			[]solana.Instruction{system.NewTransferInstruction(1000, from, to).Build()},
			solana.Hash{1},
			solana.TransactionPayer(from),
		)
		if err != nil {
			return nil, err
		}
		return &txbuild.Built{Tx: tx, LastValidBlockHeight: 100}, nil
	}
}

func testPipeline(t *testing.T, chain *fakeChain, store memStore) (*Pipeline, *txlog.Log, solana.PrivateKey) {
	t.Helper()
	wallet := solana.NewWallet()
	records := txlog.New(store)
	p := New(chain, &fakeSigner{key: wallet.PrivateKey}, store, records, 30*time.Second, zap.NewNop())
	return p, records, wallet.PrivateKey
}

func sendRecord() model.Record {
	return model.Record{
		Type:      model.ActionSend,
		Amount:    "0.000001",
		Currency:  "SOL",
		Timestamp: time.Now().UTC(),
	}
}

func TestSubmitSuccess(t *testing.T) {
	chain := &fakeChain{}
	store := memStore{}
	p, records, key := testPipeline(t, chain, store)

	refreshed := false
	p.OnSuccess(func() { refreshed = true })

	sig, err := p.Submit(context.Background(), sendRecord(), testBuild(key), false)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
	assert.Equal(t, 1, chain.sendCalls)
	assert.True(t, refreshed)

	// last tx time persisted for the cooldown gate
	_, ok, _ := store.Get(vault.KeyLastTxTime)
	assert.True(t, ok)

	// record settled as completed with the signature
	list, err := records.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusCompleted, list[0].Status)
	assert.Equal(t, sig, list[0].Signature)
}

func TestCooldownRejectsSecondSubmission(t *testing.T) {
	chain := &fakeChain{}
	store := memStore{}
	p, _, key := testPipeline(t, chain, store)

	_, err := p.Submit(context.Background(), sendRecord(), testBuild(key), false)
	require.NoError(t, err)
	require.Equal(t, 1, chain.sendCalls)

	_, err = p.Submit(context.Background(), sendRecord(), testBuild(key), false)
	require.ErrorIs(t, err, model.ErrCooldownActive)
	// rejected client-side: no gateway call at all
	assert.Equal(t, 1, chain.sendCalls)
}

func TestCooldownExpires(t *testing.T) {
	chain := &fakeChain{}
	store := memStore{}
	p, _, key := testPipeline(t, chain, store)

	store[vault.KeyLastTxTime] = time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)

	_, err := p.Submit(context.Background(), sendRecord(), testBuild(key), false)
	require.NoError(t, err)
}

func TestValidationFailureNeverSends(t *testing.T) {
	chain := &fakeChain{}
	store := memStore{}
	p, records, _ := testPipeline(t, chain, store)

	build := func(ctx context.Context) (*txbuild.Built, error) {
		return nil, &model.ValidationError{Reason: "insufficient balance"}
	}

	_, err := p.Submit(context.Background(), sendRecord(), build, false)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, chain.sendCalls)

	list, err := records.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusFailed, list[0].Status)
}

func TestAdvisorySimulationProceeds(t *testing.T) {
	chain := &fakeChain{simulateErr: fmt.Errorf("simulation failed: AccountNotFound")}
	store := memStore{}
	p, _, key := testPipeline(t, chain, store)

	_, err := p.Submit(context.Background(), sendRecord(), testBuild(key), false)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.sendCalls)
}

func TestStrictSimulationAborts(t *testing.T) {
	chain := &fakeChain{simulateErr: fmt.Errorf("simulation failed: custom program error: 0x1")}
	store := memStore{}
	p, _, key := testPipeline(t, chain, store)

	_, err := p.Submit(context.Background(), sendRecord(), testBuild(key), true)
	var sub *model.SubmissionError
	require.ErrorAs(t, err, &sub)
	assert.Equal(t, 0, chain.sendCalls)
}

func TestSendFailureClassified(t *testing.T) {
	chain := &fakeChain{sendErr: errors.New("rpc error: Blockhash not found")}
	store := memStore{}
	p, records, key := testPipeline(t, chain, store)

	_, err := p.Submit(context.Background(), sendRecord(), testBuild(key), false)
	var sub *model.SubmissionError
	require.ErrorAs(t, err, &sub)
	assert.Equal(t, model.SubmissionBlockhashExpired, sub.Kind)

	list, err := records.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusFailed, list[0].Status)
	assert.NotEmpty(t, list[0].Error)
}

func TestConfirmExpiryPassesThrough(t *testing.T) {
	chain := &fakeChain{confirmErr: &model.SubmissionError{
		Kind:  model.SubmissionBlockhashExpired,
		Cause: errors.New("block height 200 exceeded last valid 100"),
	}}
	store := memStore{}
	p, _, key := testPipeline(t, chain, store)

	_, err := p.Submit(context.Background(), sendRecord(), testBuild(key), false)
	var sub *model.SubmissionError
	require.ErrorAs(t, err, &sub)
	assert.Equal(t, model.SubmissionBlockhashExpired, sub.Kind)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		kind model.SubmissionKind
	}{
		{"Transaction simulation failed: Blockhash not found", model.SubmissionBlockhashExpired},
		{"insufficient funds for transaction", model.SubmissionInsufficientFunds},
		{"Transaction results in an account with insufficient lamports", model.SubmissionInsufficientFunds},
		{"request rejected by user", model.SubmissionUserRejected},
		{"i/o timeout", model.SubmissionTimeout},
		{"something else entirely", model.SubmissionUnknown},
	}
	for _, tc := range cases {
		var sub *model.SubmissionError
		require.ErrorAs(t, Classify(errors.New(tc.msg)), &sub, tc.msg)
		assert.Equal(t, tc.kind, sub.Kind, tc.msg)
	}
}

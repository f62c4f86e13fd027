package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mcw/internal/model"
	"mcw/internal/txlog"
	"mcw/internal/vault"
	"mcw/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPhrase = "legal winner thank year wave sausage worth useful legal winner thank yellow"

type fakeHistory struct {
	mu       sync.Mutex
	entries  []model.ChainEntry
	feeCalls int
}

func (f *fakeHistory) History(ctx context.Context, addr solana.PublicKey, limit int) ([]model.ChainEntry, error) {
	return f.entries, nil
}

func (f *fakeHistory) TransactionFee(ctx context.Context, sig solana.Signature) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeCalls++
	return "0.000005"
}

func TestHistoryMergesChainAndLocal(t *testing.T) {
	store, err := vault.Open(filepath.Join(t.TempDir(), "store.json"), []byte("test-password"))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	walletSvc := wallet.NewService(store, zap.NewNop())
	_, err = walletSvc.Import(testPhrase)
	require.NoError(t, err)

	sig := solana.Signature{1}.String()
	sig2 := solana.Signature{2}.String()
	blockTime := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	chain := &fakeHistory{entries: []model.ChainEntry{
		{Signature: sig, Slot: 10, BlockTime: &blockTime},
		{Signature: sig2, Slot: 11, BlockTime: &blockTime},
	}}

	records := txlog.New(store)
	require.NoError(t, records.Append(model.Record{
		Type:      model.ActionStake,
		Amount:    "100",
		Currency:  "TOK",
		Signature: sig,
		Timestamp: blockTime.Add(-time.Minute),
		Status:    model.StatusPending,
	}))

	h := New(walletSvc, nil, nil, nil, records, chain, nil, "", 6)

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Items, 2)

	// local record supplies the semantics, chain supplies settlement + fee
	assert.Equal(t, model.ActionStake, resp.Items[0].Type)
	assert.Equal(t, "100", resp.Items[0].Amount)
	assert.Equal(t, model.StatusCompleted, resp.Items[0].Status)
	assert.Equal(t, "0.000005", resp.Items[0].FeeSOL)

	// chain-only entry surfaces without local semantics
	assert.Equal(t, model.ActionReceive, resp.Items[1].Type)
	assert.Equal(t, "0.000005", resp.Items[1].FeeSOL)

	// one fee lookup per settled entry
	assert.Equal(t, 2, chain.feeCalls)
}

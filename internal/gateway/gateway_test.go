package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"mcw/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testAddr = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

// rpcServer fakes a JSON-RPC node, answering per-method from results.
type rpcServer struct {
	*httptest.Server
	calls   map[string]int
	results map[string]string // method -> raw JSON for the "result" field
	fail    bool
}

func newRPCServer(t *testing.T, results map[string]string) *rpcServer {
	t.Helper()
	s := &rpcServer{calls: map[string]int{}, results: results}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     any    `json:"id"`
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		s.calls[req.Method]++

		if s.fail {
			http.Error(w, "node unavailable", http.StatusInternalServerError)
			return
		}

		result, ok := s.results[req.Method]
		if !ok {
			http.Error(w, "unexpected method "+req.Method, http.StatusBadRequest)
			return
		}
		id, _ := json.Marshal(req.ID)
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, id, result)
	}))
	t.Cleanup(s.Close)
	return s
}

const balanceResult = `{"context":{"slot":100},"value":2039280}`

func TestBalancePrimary(t *testing.T) {
	primary := newRPCServer(t, map[string]string{"getBalance": balanceResult})
	fallback := newRPCServer(t, map[string]string{"getBalance": balanceResult})
	g := New(primary.URL, fallback.URL, zap.NewNop())

	lamports, err := g.Balance(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(2039280), lamports)
	assert.Equal(t, 1, primary.calls["getBalance"])
	assert.Equal(t, 0, fallback.calls["getBalance"])
}

func TestBalanceFallsBackExactlyOnce(t *testing.T) {
	primary := newRPCServer(t, nil)
	primary.fail = true
	fallback := newRPCServer(t, map[string]string{"getBalance": balanceResult})
	g := New(primary.URL, fallback.URL, zap.NewNop())

	lamports, err := g.Balance(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(2039280), lamports)
	assert.Equal(t, 1, primary.calls["getBalance"])
	assert.Equal(t, 1, fallback.calls["getBalance"])
}

func TestBothEndpointsFailing(t *testing.T) {
	primary := newRPCServer(t, nil)
	primary.fail = true
	fallback := newRPCServer(t, nil)
	fallback.fail = true
	g := New(primary.URL, fallback.URL, zap.NewNop())

	_, err := g.Balance(context.Background(), testAddr)
	var nerr *model.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "getBalance", nerr.Method)
	assert.Equal(t, 1, primary.calls["getBalance"])
	assert.Equal(t, 1, fallback.calls["getBalance"])
}

func TestLatestBlockhash(t *testing.T) {
	primary := newRPCServer(t, map[string]string{
		"getLatestBlockhash": `{"context":{"slot":100},"value":{"blockhash":"EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N","lastValidBlockHeight":3090}}`,
	})
	fallback := newRPCServer(t, nil)
	g := New(primary.URL, fallback.URL, zap.NewNop())

	bh, err := g.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3090), bh.LastValidBlockHeight)
	assert.NotEqual(t, solana.Hash{}, bh.Hash)
}

func TestWaitForConfirmationConfirmed(t *testing.T) {
	primary := newRPCServer(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":100},"value":[{"slot":98,"confirmations":4,"err":null,"confirmationStatus":"confirmed"}]}`,
	})
	fallback := newRPCServer(t, nil)
	g := New(primary.URL, fallback.URL, zap.NewNop())

	err := g.WaitForConfirmation(context.Background(), solana.Signature{1}, 5000)
	require.NoError(t, err)
}

func TestWaitForConfirmationBlockhashExpired(t *testing.T) {
	// never confirmed, chain height already past the last valid height
	primary := newRPCServer(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":100},"value":[null]}`,
		"getBlockHeight":       `250`,
	})
	fallback := newRPCServer(t, nil)
	g := New(primary.URL, fallback.URL, zap.NewNop())

	err := g.WaitForConfirmation(context.Background(), solana.Signature{1}, 100)
	var sub *model.SubmissionError
	require.ErrorAs(t, err, &sub)
	assert.Equal(t, model.SubmissionBlockhashExpired, sub.Kind)
}

func TestWaitForConfirmationOnChainFailure(t *testing.T) {
	primary := newRPCServer(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":100},"value":[{"slot":98,"confirmations":4,"err":{"InstructionError":[0,{"Custom":1}]},"confirmationStatus":"confirmed"}]}`,
	})
	fallback := newRPCServer(t, nil)
	g := New(primary.URL, fallback.URL, zap.NewNop())

	err := g.WaitForConfirmation(context.Background(), solana.Signature{1}, 5000)
	var sub *model.SubmissionError
	require.ErrorAs(t, err, &sub)
	assert.Equal(t, model.SubmissionUnknown, sub.Kind)
}

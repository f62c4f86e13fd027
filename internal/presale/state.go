package presale

import (
	"context"
	"encoding/binary"
	"sync"

	"mcw/internal/model"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Config account layout after the 8-byte discriminator:
//   total_sold u64 | total_staked u64 | rate u64 | active u8
const configAccountMinLen = 8 + 3*8 + 1

// AccountDataReader is the slice of the gateway the state reader needs.
type AccountDataReader interface {
	AccountData(ctx context.Context, addr solana.PublicKey) ([]byte, error)
}

// StateReader mirrors the program's on-chain config account. The mirror
// is informational only: it backs display copy and the active flag
// shown to the user, never balance math. When the account is missing or
// the read fails it serves the last-known state, falling back to the
// configured defaults.
type StateReader struct {
	program  *Program
	chain    AccountDataReader
	log      *zap.Logger
	defaults model.ProgramState

	mu        sync.Mutex
	lastKnown *model.ProgramState
}

// NewStateReader creates a StateReader serving defaultRate until the
// first successful chain read.
func NewStateReader(program *Program, chain AccountDataReader, defaultRate uint64, log *zap.Logger) *StateReader {
	return &StateReader{
		program: program,
		chain:   chain,
		log:     log,
		defaults: model.ProgramState{
			Rate:   defaultRate,
			Active: true,
		},
	}
}

// Read refreshes the mirror from the config PDA.
func (r *StateReader) Read(ctx context.Context) model.ProgramState {
	data, err := r.chain.AccountData(ctx, r.program.ConfigPDA)
	if err != nil {
		r.log.Warn("failed to read program config account, serving cached state", zap.Error(err))
		return r.fallback()
	}
	if len(data) < configAccountMinLen {
		// Account not created yet (or unexpected layout)
		return r.fallback()
	}

	state := model.ProgramState{
		TotalSold:   binary.LittleEndian.Uint64(data[8:16]),
		TotalStaked: binary.LittleEndian.Uint64(data[16:24]),
		Rate:        binary.LittleEndian.Uint64(data[24:32]),
		Active:      data[32] != 0,
		FromChain:   true,
	}

	r.mu.Lock()
	r.lastKnown = &state
	r.mu.Unlock()
	return state
}

func (r *StateReader) fallback() model.ProgramState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastKnown != nil {
		return *r.lastKnown
	}
	return r.defaults
}

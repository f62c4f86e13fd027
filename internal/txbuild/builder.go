package txbuild

import (
	"context"
	"fmt"

	"mcw/internal/common"
	"mcw/internal/gateway"
	"mcw/internal/model"
	"mcw/internal/presale"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

const feeLamports = 5000 // flat signature fee (0.000005 SOL)

// ChainReader is the slice of the gateway the builder needs to validate
// an intent against fresh on-chain state.
type ChainReader interface {
	Balance(ctx context.Context, addr solana.PublicKey) (uint64, error)
	AccountExists(ctx context.Context, addr solana.PublicKey) (bool, error)
	TokenAccountBalance(ctx context.Context, ata solana.PublicKey) (uint64, error)
	LatestBlockhash(ctx context.Context) (gateway.Blockhash, error)
}

// Bounds are the configured presale purchase limits, decimal SOL strings.
type Bounds struct {
	MinSOL string
	MaxSOL string
}

// Built is a fully-formed unsigned transaction plus the blockhash facts
// it was built on. The caller must sign and send without a
// user-interaction gap: the blockhash expires within a bounded number
// of blocks.
type Built struct {
	Tx                   *solana.Transaction
	LastValidBlockHeight uint64
}

// Builder assembles unsigned transactions from validated intents.
// All validation that gates fund movement happens here, against
// balances fetched inside the build, not against cached view state.
type Builder struct {
	chain   ChainReader
	program *presale.Program
	bounds  Bounds
}

// New creates a Builder. program may be nil when the presale feature is
// not configured; program intents then fail validation.
func New(chain ChainReader, program *presale.Program, bounds Bounds) *Builder {
	return &Builder{chain: chain, program: program, bounds: bounds}
}

// withMargin adds the ~1% safety margin on top of amount+fee, guarding
// against fee drift between validation and settlement.
func withMargin(amount uint64) uint64 {
	return amount + feeLamports + amount/100
}

// NativeTransfer builds a system transfer of a decimal SOL amount.
func (b *Builder) NativeTransfer(ctx context.Context, from solana.PublicKey, to, amount string) (*Built, error) {
	toKey, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, &model.ValidationError{Reason: "invalid recipient address"}
	}

	lamports, err := common.SOLToLamports(amount)
	if err != nil || lamports == 0 {
		return nil, &model.ValidationError{Reason: "invalid amount"}
	}

	balance, err := b.chain.Balance(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}
	if balance < withMargin(lamports) {
		return nil, &model.ValidationError{Reason: "insufficient balance"}
	}

	ix := system.NewTransferInstruction(lamports, from, toKey).Build()
	return b.assemble(ctx, from, ix)
}

// TokenTransfer builds an SPL token transfer of a decimal amount at the
// mint's decimals. When the receiver has no associated token account, a
// create-ATA instruction (payer = sender) is prepended so the create
// and the transfer land atomically.
func (b *Builder) TokenTransfer(ctx context.Context, from solana.PublicKey, to, mint string, decimals int, amount string) (*Built, error) {
	toKey, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, &model.ValidationError{Reason: "invalid recipient address"}
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, &model.ValidationError{Reason: "invalid token mint"}
	}
	if decimals <= 0 {
		decimals = common.DefaultTokenDecimals
	}

	baseUnits, err := common.ParseUnits(amount, decimals)
	if err != nil || baseUnits == 0 {
		return nil, &model.ValidationError{Reason: "invalid amount"}
	}

	sourceATA, _, err := solana.FindAssociatedTokenAddress(from, mintKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive source token account: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(toKey, mintKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive destination token account: %w", err)
	}

	tokenBalance, err := b.chain.TokenAccountBalance(ctx, sourceATA)
	if err != nil {
		return nil, fmt.Errorf("failed to check token balance: %w", err)
	}
	if tokenBalance < baseUnits {
		return nil, &model.ValidationError{Reason: "insufficient token balance"}
	}

	solBalance, err := b.chain.Balance(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}
	if solBalance < withMargin(0) {
		return nil, &model.ValidationError{Reason: "insufficient balance for fee"}
	}

	destExists, err := b.chain.AccountExists(ctx, destATA)
	if err != nil {
		return nil, fmt.Errorf("failed to check destination token account: %w", err)
	}

	var instructions []solana.Instruction
	if !destExists {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(
			from,    // payer
			toKey,   // owner
			mintKey, // mint
		).Build())
	}
	instructions = append(instructions, token.NewTransferCheckedInstruction(
		baseUnits,
		uint8(decimals),
		sourceATA,
		mintKey,
		destATA,
		from,
		[]solana.PublicKey{},
	).Build())

	return b.assemble(ctx, from, instructions...)
}

// ProgramAction builds a presale/staking program transaction. active is
// the program's current active flag, re-read by the caller immediately
// before the build.
func (b *Builder) ProgramAction(ctx context.Context, owner solana.PublicKey, action model.ActionType, amount string, tokenDecimals int, active bool) (*Built, error) {
	if b.program == nil {
		return nil, &model.ValidationError{Reason: "program not configured"}
	}
	if !active {
		return nil, &model.ValidationError{Reason: "program inactive"}
	}

	var ix solana.Instruction
	var err error

	switch action {
	case model.ActionPresale:
		lamports, perr := common.SOLToLamports(amount)
		if perr != nil || lamports == 0 {
			return nil, &model.ValidationError{Reason: "invalid amount"}
		}
		if err := b.checkPurchaseBounds(amount); err != nil {
			return nil, err
		}
		balance, berr := b.chain.Balance(ctx, owner)
		if berr != nil {
			return nil, fmt.Errorf("failed to check balance: %w", berr)
		}
		if balance < withMargin(lamports) {
			return nil, &model.ValidationError{Reason: "insufficient balance"}
		}
		ix, err = b.program.PurchaseInstruction(owner, lamports)

	case model.ActionStake, model.ActionUnstake:
		baseUnits, perr := common.ParseUnits(amount, tokenDecimals)
		if perr != nil || baseUnits == 0 {
			return nil, &model.ValidationError{Reason: "invalid amount"}
		}
		if action == model.ActionStake {
			ownerATA, _, aerr := solana.FindAssociatedTokenAddress(owner, b.program.Mint)
			if aerr != nil {
				return nil, fmt.Errorf("failed to derive token account: %w", aerr)
			}
			tokenBalance, terr := b.chain.TokenAccountBalance(ctx, ownerATA)
			if terr != nil {
				return nil, fmt.Errorf("failed to check token balance: %w", terr)
			}
			if tokenBalance < baseUnits {
				return nil, &model.ValidationError{Reason: "insufficient token balance"}
			}
			ix, err = b.program.StakeInstruction(owner, baseUnits)
		} else {
			ix, err = b.program.UnstakeInstruction(owner, baseUnits)
		}

	case model.ActionClaim:
		ix, err = b.program.ClaimInstruction(owner)

	default:
		return nil, &model.ValidationError{Reason: fmt.Sprintf("unsupported program action %q", action)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build instruction: %w", err)
	}

	// Fee sufficiency applies to every program action
	balance, err := b.chain.Balance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}
	if balance < withMargin(0) {
		return nil, &model.ValidationError{Reason: "insufficient balance for fee"}
	}

	return b.assemble(ctx, owner, ix)
}

func (b *Builder) checkPurchaseBounds(amount string) error {
	if b.bounds.MinSOL != "" {
		cmp, err := common.CompareAmounts(amount, b.bounds.MinSOL, common.SOLDecimals)
		if err != nil {
			return &model.ValidationError{Reason: "invalid amount"}
		}
		if cmp < 0 {
			return &model.ValidationError{Reason: fmt.Sprintf("amount below minimum %s SOL", b.bounds.MinSOL)}
		}
	}
	if b.bounds.MaxSOL != "" {
		cmp, err := common.CompareAmounts(amount, b.bounds.MaxSOL, common.SOLDecimals)
		if err != nil {
			return &model.ValidationError{Reason: "invalid amount"}
		}
		if cmp > 0 {
			return &model.ValidationError{Reason: fmt.Sprintf("amount above maximum %s SOL", b.bounds.MaxSOL)}
		}
	}
	return nil
}

// assemble fetches the blockhash last, so the validity window starts as
// close to signing as possible, and wraps the instructions into an
// unsigned transaction with feePayer set.
func (b *Builder) assemble(ctx context.Context, feePayer solana.PublicKey, instructions ...solana.Instruction) (*Built, error) {
	bh, err := b.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		bh.Hash,
		solana.TransactionPayer(feePayer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return &Built{Tx: tx, LastValidBlockHeight: bh.LastValidBlockHeight}, nil
}

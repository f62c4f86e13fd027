package presale

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction opcodes. The payload is the opcode byte followed by the
// amount as a little-endian u64.
const (
	OpPurchase uint8 = 1
	OpStake    uint8 = 2
	OpUnstake  uint8 = 3
	OpClaim    uint8 = 4
)

// PDA seeds fixed by the deployed program.
var (
	seedConfig         = []byte("config")
	seedVault          = []byte("vault")
	seedVaultAuthority = []byte("vault_authority")
	seedUserStake      = []byte("user_stake")
)

// Program holds the presale/staking program's fixed addresses. The
// config, vault and vault-authority PDAs are deterministic functions of
// the program ID and are derived once at construction.
type Program struct {
	ID             solana.PublicKey
	Mint           solana.PublicKey
	ConfigPDA      solana.PublicKey
	VaultPDA       solana.PublicKey
	VaultAuthority solana.PublicKey
	VaultATA       solana.PublicKey // token vault, ATA of the vault authority
}

// NewProgram derives the program's account set from its ID and the
// token mint it sells/stakes.
func NewProgram(programID, mint string) (*Program, error) {
	id, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint: %w", err)
	}

	configPDA, _, err := solana.FindProgramAddress([][]byte{seedConfig}, id)
	if err != nil {
		return nil, fmt.Errorf("failed to derive config pda: %w", err)
	}
	vaultPDA, _, err := solana.FindProgramAddress([][]byte{seedVault}, id)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault pda: %w", err)
	}
	vaultAuth, _, err := solana.FindProgramAddress([][]byte{seedVaultAuthority}, id)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault authority pda: %w", err)
	}
	vaultATA, _, err := solana.FindAssociatedTokenAddress(vaultAuth, mintKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault token account: %w", err)
	}

	return &Program{
		ID:             id,
		Mint:           mintKey,
		ConfigPDA:      configPDA,
		VaultPDA:       vaultPDA,
		VaultAuthority: vaultAuth,
		VaultATA:       vaultATA,
	}, nil
}

// UserStakePDA derives the per-user stake state account.
func (p *Program) UserStakePDA(owner solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress([][]byte{seedUserStake, owner.Bytes()}, p.ID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive user stake pda: %w", err)
	}
	return pda, nil
}

// encodePayload serializes opcode + amount little-endian.
func encodePayload(opcode uint8, amount uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteUint8(opcode); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(amount, binary.LittleEndian); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PurchaseInstruction assembles a presale purchase for amount lamports.
// Account ordering fixed by the program: buyer, config, vault, system.
func (p *Program) PurchaseInstruction(buyer solana.PublicKey, lamports uint64) (solana.Instruction, error) {
	data, err := encodePayload(OpPurchase, lamports)
	if err != nil {
		return nil, fmt.Errorf("failed to encode purchase payload: %w", err)
	}
	return solana.NewInstruction(
		p.ID,
		solana.AccountMetaSlice{
			solana.Meta(buyer).WRITE().SIGNER(),
			solana.Meta(p.ConfigPDA).WRITE(),
			solana.Meta(p.VaultPDA).WRITE(),
			solana.Meta(solana.SystemProgramID),
		},
		data,
	), nil
}

// StakeInstruction assembles a stake of amount token base units.
// Ordering: staker, config, user stake state, staker ATA, vault token
// account, token program.
func (p *Program) StakeInstruction(staker solana.PublicKey, baseUnits uint64) (solana.Instruction, error) {
	return p.stakeShaped(OpStake, staker, baseUnits)
}

// UnstakeInstruction assembles an unstake of amount token base units.
func (p *Program) UnstakeInstruction(staker solana.PublicKey, baseUnits uint64) (solana.Instruction, error) {
	return p.stakeShaped(OpUnstake, staker, baseUnits)
}

func (p *Program) stakeShaped(opcode uint8, staker solana.PublicKey, baseUnits uint64) (solana.Instruction, error) {
	userStake, err := p.UserStakePDA(staker)
	if err != nil {
		return nil, err
	}
	stakerATA, _, err := solana.FindAssociatedTokenAddress(staker, p.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive staker token account: %w", err)
	}
	data, err := encodePayload(opcode, baseUnits)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return solana.NewInstruction(
		p.ID,
		solana.AccountMetaSlice{
			solana.Meta(staker).WRITE().SIGNER(),
			solana.Meta(p.ConfigPDA).WRITE(),
			solana.Meta(userStake).WRITE(),
			solana.Meta(stakerATA).WRITE(),
			solana.Meta(p.VaultATA).WRITE(),
			solana.Meta(solana.TokenProgramID),
		},
		data,
	), nil
}

// ClaimInstruction assembles a rewards claim. Amount is fixed by the
// program from accrued rewards; the payload carries 0.
// Ordering: claimer, config, user stake state, claimer ATA, vault token
// account, vault authority, token program.
func (p *Program) ClaimInstruction(claimer solana.PublicKey) (solana.Instruction, error) {
	userStake, err := p.UserStakePDA(claimer)
	if err != nil {
		return nil, err
	}
	claimerATA, _, err := solana.FindAssociatedTokenAddress(claimer, p.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive claimer token account: %w", err)
	}
	data, err := encodePayload(OpClaim, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to encode claim payload: %w", err)
	}
	return solana.NewInstruction(
		p.ID,
		solana.AccountMetaSlice{
			solana.Meta(claimer).WRITE().SIGNER(),
			solana.Meta(p.ConfigPDA).WRITE(),
			solana.Meta(userStake).WRITE(),
			solana.Meta(claimerATA).WRITE(),
			solana.Meta(p.VaultATA).WRITE(),
			solana.Meta(p.VaultAuthority),
			solana.Meta(solana.TokenProgramID),
		},
		data,
	), nil
}

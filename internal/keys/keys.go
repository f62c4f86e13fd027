package keys

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"mcw/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
)

const phraseWords = 12

// Generate produces a new random 12-word recovery phrase and the keypair
// derived from it.
func Generate() (phrase string, key solana.PrivateKey, err error) {
	// 128 bits of entropy -> 12 words
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate entropy: %w", err)
	}

	phrase, err = bip39.NewMnemonic(entropy)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate phrase: %w", err)
	}

	key, err = Derive(phrase)
	if err != nil {
		return "", nil, err
	}
	return phrase, key, nil
}

// Normalize lowercases, trims and collapses whitespace in a phrase.
func Normalize(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(phrase))), " ")
}

// Validate checks word count and BIP39 checksum. It never attempts
// derivation; callers must Validate before Derive on imported phrases.
func Validate(phrase string) error {
	phrase = Normalize(phrase)
	if len(strings.Fields(phrase)) != phraseWords {
		return model.ErrInvalidPhrase
	}
	if !bip39.IsMnemonicValid(phrase) {
		return model.ErrInvalidPhrase
	}
	return nil
}

// Derive deterministically turns a validated phrase into the signing
// keypair. The signing seed is the first 32 bytes of the BIP39 seed with
// no derivation path, matching every wallet already created by deployed
// builds; phrases are therefore not interchangeable with wallets that
// use the chain's hierarchical derivation.
func Derive(phrase string) (solana.PrivateKey, error) {
	phrase = Normalize(phrase)

	seed := bip39.NewSeed(phrase, "")
	defer clear(seed)

	key := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	return solana.PrivateKey(key), nil
}

// Address returns the base58 public address controlled by key.
func Address(key solana.PrivateKey) string {
	return key.PublicKey().String()
}

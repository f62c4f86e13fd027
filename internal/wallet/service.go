package wallet

import (
	"encoding/base64"
	"errors"
	"fmt"

	"mcw/internal/keys"
	"mcw/internal/model"
	"mcw/internal/vault"

	"github.com/gagliardetto/solana-go"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// Service owns the wallet identity lifecycle: create, import, logout,
// and scoped signer handout. Constructed once at app start and passed
// down; there is no ambient singleton.
type Service struct {
	store *vault.Vault
	log   *zap.Logger
}

// NewService creates a Service over the secret store.
func NewService(store *vault.Vault, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// Initialized reports whether a wallet identity is present. Store read
// failure is non-fatal here and reads as "not initialized".
func (s *Service) Initialized() bool {
	flag, ok, err := s.store.Get(vault.KeyInitialized)
	if err != nil {
		s.log.Warn("failed to read initialized flag, treating as uninitialized", zap.Error(err))
		return false
	}
	return ok && flag == "true"
}

// Create generates a fresh identity: random phrase, derived keypair,
// all four identity fields persisted in order. Each write is awaited
// before the next; any failure is fatal to the flow and leaves the
// initialized flag unset.
func (s *Service) Create() (address, phrase string, err error) {
	if s.Initialized() {
		return "", "", fmt.Errorf("wallet already initialized")
	}

	phrase, key, err := keys.Generate()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate wallet: %w", err)
	}
	defer clear(key)

	address, err = s.persistIdentity(phrase, key)
	if err != nil {
		return "", "", err
	}

	s.log.Info("wallet created", zap.String("address", address))
	return address, phrase, nil
}

// Import accepts an externally supplied phrase. The phrase is validated
// before any derivation is attempted.
func (s *Service) Import(phrase string) (address string, err error) {
	if s.Initialized() {
		return "", fmt.Errorf("wallet already initialized")
	}

	if err := keys.Validate(phrase); err != nil {
		return "", err
	}
	phrase = keys.Normalize(phrase)

	key, err := keys.Derive(phrase)
	if err != nil {
		return "", fmt.Errorf("failed to derive keypair: %w", err)
	}
	defer clear(key)

	address, err = s.persistIdentity(phrase, key)
	if err != nil {
		return "", err
	}

	s.log.Info("wallet imported", zap.String("address", address))
	return address, nil
}

func (s *Service) persistIdentity(phrase string, key solana.PrivateKey) (string, error) {
	address := keys.Address(key)

	if err := s.store.Set(vault.KeyRecoveryPhrase, phrase); err != nil {
		return "", err
	}
	if err := s.store.Set(vault.KeySecretKey, base64.StdEncoding.EncodeToString(key)); err != nil {
		return "", err
	}
	if err := s.store.Set(vault.KeyPublicAddress, address); err != nil {
		return "", err
	}
	// Flag written last: a partial identity never reads as initialized
	if err := s.store.Set(vault.KeyInitialized, "true"); err != nil {
		return "", err
	}
	return address, nil
}

// Logout erases the identity and auxiliary state. Best-effort: every
// delete is attempted, failures are aggregated, the app is never left
// stuck behind a partial logout.
func (s *Service) Logout() error {
	var errs []error
	for _, key := range []string{
		vault.KeyInitialized,
		vault.KeySecretKey,
		vault.KeyRecoveryPhrase,
		vault.KeyPublicAddress,
		vault.KeyLastTxTime,
		vault.KeyTxHistory,
	} {
		if err := s.store.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("logout incomplete: %w", errors.Join(errs...))
	}
	s.log.Info("wallet logged out")
	return nil
}

// Address returns the stored public address.
func (s *Service) Address() (string, error) {
	if !s.Initialized() {
		return "", model.ErrWalletNotInitialized
	}
	address, ok, err := s.store.Get(vault.KeyPublicAddress)
	if err != nil {
		return "", err
	}
	if !ok || address == "" {
		return "", model.ErrWalletNotInitialized
	}
	return address, nil
}

// PublicKey returns the stored public address parsed.
func (s *Service) PublicKey() (solana.PublicKey, error) {
	address, err := s.Address()
	if err != nil {
		return solana.PublicKey{}, err
	}
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("stored address is corrupt: %w", err)
	}
	return key, nil
}

// ReceiveQR returns the address and a base64 PNG QR code of it.
func (s *Service) ReceiveQR() (address, qrBase64 string, err error) {
	address, err = s.Address()
	if err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", "", fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(256)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate PNG: %w", err)
	}
	return address, base64.StdEncoding.EncodeToString(png), nil
}

// Signer reconstructs the signing key for a single pipeline run. The
// caller must clear the returned key when the run completes; it is
// never cached across operations.
func (s *Service) Signer() (solana.PrivateKey, error) {
	if !s.Initialized() {
		return nil, model.ErrWalletNotInitialized
	}

	encoded, ok, err := s.store.Get(vault.KeySecretKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrWalletNotInitialized
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("stored key is corrupt: %w", err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("invalid secret key length")
	}

	key := solana.PrivateKey(raw)

	// publicAddress must always be re-derivable from the signing key
	address, ok, err := s.store.Get(vault.KeyPublicAddress)
	if err != nil || !ok {
		clear(key)
		return nil, model.ErrWalletNotInitialized
	}
	if key.PublicKey().String() != address {
		clear(key)
		return nil, fmt.Errorf("secret key does not match stored address")
	}
	return key, nil
}

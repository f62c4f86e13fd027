package wallet

import (
	"path/filepath"
	"strings"
	"testing"

	"mcw/internal/keys"
	"mcw/internal/model"
	"mcw/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPhrase = "legal winner thank year wave sausage worth useful legal winner thank yellow"

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := vault.Open(filepath.Join(t.TempDir(), "store.json"), []byte("test-password"))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return NewService(store, zap.NewNop())
}

func TestCreatePersistsIdentity(t *testing.T) {
	s := newTestService(t)
	require.False(t, s.Initialized())

	address, phrase, err := s.Create()
	require.NoError(t, err)
	assert.NotEmpty(t, address)
	assert.Len(t, strings.Fields(phrase), 12)
	assert.True(t, s.Initialized())

	got, err := s.Address()
	require.NoError(t, err)
	assert.Equal(t, address, got)
}

func TestCreateRejectedWhenInitialized(t *testing.T) {
	s := newTestService(t)
	_, _, err := s.Create()
	require.NoError(t, err)

	_, _, err = s.Create()
	assert.Error(t, err)
}

func TestImportValidatesBeforeDerivation(t *testing.T) {
	s := newTestService(t)

	_, err := s.Import("definitely not a valid recovery phrase at all ok ok ok")
	require.ErrorIs(t, err, model.ErrInvalidPhrase)
	assert.False(t, s.Initialized())
}

func TestImportIsDeterministic(t *testing.T) {
	s := newTestService(t)

	address, err := s.Import(testPhrase)
	require.NoError(t, err)

	key, err := keys.Derive(testPhrase)
	require.NoError(t, err)
	assert.Equal(t, keys.Address(key), address)
}

func TestSignerMatchesStoredAddress(t *testing.T) {
	s := newTestService(t)
	address, err := s.Import(testPhrase)
	require.NoError(t, err)

	key, err := s.Signer()
	require.NoError(t, err)
	defer clear(key)
	assert.Equal(t, address, key.PublicKey().String())
}

func TestLogoutErasesEverything(t *testing.T) {
	s := newTestService(t)
	_, err := s.Import(testPhrase)
	require.NoError(t, err)

	require.NoError(t, s.Logout())
	assert.False(t, s.Initialized())

	_, err = s.Address()
	assert.ErrorIs(t, err, model.ErrWalletNotInitialized)
	_, err = s.Signer()
	assert.ErrorIs(t, err, model.ErrWalletNotInitialized)
}

func TestReceiveQR(t *testing.T) {
	s := newTestService(t)
	address, err := s.Import(testPhrase)
	require.NoError(t, err)

	gotAddr, qr, err := s.ReceiveQR()
	require.NoError(t, err)
	assert.Equal(t, address, gotAddr)
	assert.NotEmpty(t, qr)
}

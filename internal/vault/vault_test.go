package vault

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.enc")

	v, err := Open(path, []byte("test-password"))
	require.NoError(t, err)
	defer v.Close()

	require.NoError(t, v.Set(KeyPublicAddress, "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"))
	require.NoError(t, v.Set(KeyInitialized, "true"))

	val, ok, err := v.Get(KeyPublicAddress)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", val)

	_, ok, err = v.Get(KeySecretKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.enc")

	v, err := Open(path, []byte("pw"))
	require.NoError(t, err)
	require.NoError(t, v.Set(KeyRecoveryPhrase, "some phrase"))
	v.Close()

	v2, err := Open(path, []byte("pw"))
	require.NoError(t, err)
	defer v2.Close()

	val, ok, err := v2.Get(KeyRecoveryPhrase)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "some phrase", val)
}

func TestWrongPasswordRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.enc")

	v, err := Open(path, []byte("right"))
	require.NoError(t, err)
	require.NoError(t, v.Set(KeySecretKey, "secret"))
	v.Close()

	_, err = Open(path, []byte("wrong"))
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.enc")

	v, err := Open(path, []byte("pw"))
	require.NoError(t, err)
	defer v.Close()

	require.NoError(t, v.Set(KeyLastTxTime, "2026-01-01T00:00:00Z"))
	require.NoError(t, v.Delete(KeyLastTxTime))

	_, ok, err := v.Get(KeyLastTxTime)
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting an absent key is a no-op
	require.NoError(t, v.Delete(KeyLastTxTime))
}

func TestRekey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.enc")

	v, err := Open(path, []byte("old"))
	require.NoError(t, err)
	require.NoError(t, v.Set(KeyPublicAddress, "addr"))
	require.NoError(t, v.Rekey([]byte("new")))
	v.Close()

	_, err = Open(path, []byte("old"))
	assert.Error(t, err)

	v2, err := Open(path, []byte("new"))
	require.NoError(t, err)
	defer v2.Close()

	val, ok, err := v2.Get(KeyPublicAddress)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "addr", val)
}

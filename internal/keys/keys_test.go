package keys

import (
	"testing"

	"mcw/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Standard BIP39 test vector phrase, valid checksum.
const testPhrase = "legal winner thank year wave sausage worth useful legal winner thank yellow"

func TestDeriveDeterminism(t *testing.T) {
	k1, err := Derive(testPhrase)
	require.NoError(t, err)
	k2, err := Derive(testPhrase)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Equal(t, Address(k1), Address(k2))
	assert.Len(t, []byte(k1), 64)
}

func TestDeriveNormalizes(t *testing.T) {
	k1, err := Derive(testPhrase)
	require.NoError(t, err)
	k2, err := Derive("  Legal  winner thank year wave sausage worth useful legal winner thank YELLOW ")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestAddressRederivable(t *testing.T) {
	k, err := Derive(testPhrase)
	require.NoError(t, err)
	// address must always be re-derivable from the stored key alone
	assert.Equal(t, Address(k), k.PublicKey().String())
}

func TestValidateRejectsBadPhrases(t *testing.T) {
	// wrong word count
	err := Validate("legal winner thank")
	assert.ErrorIs(t, err, model.ErrInvalidPhrase)

	// word not in the wordlist
	err = Validate("legal winner thank year wave sausage worth useful legal winner thank zzzzz")
	assert.ErrorIs(t, err, model.ErrInvalidPhrase)

	// bad checksum (all same valid word)
	err = Validate("legal legal legal legal legal legal legal legal legal legal legal legal")
	assert.ErrorIs(t, err, model.ErrInvalidPhrase)

	err = Validate("")
	assert.ErrorIs(t, err, model.ErrInvalidPhrase)
}

func TestValidateAcceptsGoodPhrase(t *testing.T) {
	assert.NoError(t, Validate(testPhrase))
	assert.NoError(t, Validate("  "+testPhrase+"  "))
}

func TestGenerate(t *testing.T) {
	phrase, key, err := Generate()
	require.NoError(t, err)

	require.NoError(t, Validate(phrase))

	// generated phrase must round-trip through Derive
	again, err := Derive(phrase)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	// two generations must not collide
	phrase2, _, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, phrase, phrase2)
}

package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNewEncryptor_KeyLength(t *testing.T) {
	_, err := NewEncryptor("short")
	assert.Error(t, err)

	_, err = NewEncryptor(testKey)
	assert.NoError(t, err)
}

func TestEncryptor_SealOpen(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	sealed, err := enc.Seal("user-1", "4111111111111111")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "4111")

	plain, err := enc.Open("user-1", sealed)
	require.NoError(t, err)
	assert.Equal(t, "4111111111111111", plain)
}

func TestEncryptor_OpenRejectsOtherOwner(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	sealed, err := enc.Seal("user-1", "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	_, err = enc.Open("user-2", sealed)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncryptor_FreshNonce(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	a, err := enc.Seal("user-1", "same")
	require.NoError(t, err)
	b, err := enc.Seal("user-1", "same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncryptor_RejectsTampering(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	sealed, err := enc.Encrypt([]byte("secret"), nil)
	require.NoError(t, err)

	// Flip a character in the ciphertext body.
	b := []byte(sealed)
	i := len(b) / 2
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	_, err = enc.Decrypt(string(b), nil)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = enc.Decrypt("not base64!", nil)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = enc.Decrypt(strings.Repeat("A", 8), nil)
	assert.ErrorIs(t, err, ErrMalformed)

	other, err := NewEncryptor(strings.Repeat("k", 32))
	require.NoError(t, err)
	_, err = other.Decrypt(sealed, nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

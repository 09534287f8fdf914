package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", 30*time.Minute)

	token, expiresAt, err := signer.Generate("blob-1")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	storageID, parsedExp, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "blob-1", storageID)
	assert.Equal(t, expiresAt.Unix(), parsedExp.Unix())
}

func TestSignedURLRejectsTamperedToken(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", 30*time.Minute)

	token, _, err := signer.Generate("blob-1")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	parts[0] = "9999999999"
	_, _, err = signer.Parse(strings.Join(parts, "."))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
}

func TestSignedURLRejectsForeignSecret(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", 30*time.Minute)
	other := NewSignedURLSigner("other-secret", 30*time.Minute)

	token, _, err := signer.Generate("blob-1")
	require.NoError(t, err)

	_, _, err = other.Parse(token)
	require.Error(t, err)
}

func TestSignedURLRejectsExpiredToken(t *testing.T) {
	signer := &SignedURLSigner{secret: []byte("test-secret"), ttl: -time.Minute}

	token, _, err := signer.Generate("blob-1")
	require.NoError(t, err)

	_, _, err = signer.Parse(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestSignedURLRequiresStorageID(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", 30*time.Minute)

	_, _, err := signer.Generate("")
	require.Error(t, err)
}

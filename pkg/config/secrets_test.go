package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autonet/pkg/errdefs"
)

func setKey(t *testing.T) {
	t.Helper()
	key, err := GenerateEncryptionKey()
	require.NoError(t, err)
	t.Setenv(EncryptionKeyEnv, key)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	setKey(t)
	sealed, err := EncryptValue("s3cr3t-api-key")
	require.NoError(t, err)
	plain, err := DecryptValue(sealed)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t-api-key", plain)
}

func TestAPIKeyPrefersEnvironment(t *testing.T) {
	t.Setenv("AUTONET_PEERINGDB_KEY", "from-env")
	got, err := APIKey("peeringdb", "from-config", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestAPIKeyDecryptsPrefixedValue(t *testing.T) {
	setKey(t)
	sealed, err := EncryptValue("wrapped")
	require.NoError(t, err)
	got, err := APIKey("peeringdb", EncryptedPrefix+sealed, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "wrapped", got)
}

func TestAPIKeyPlaintextIsWarningNotError(t *testing.T) {
	got, err := APIKey("peeringdb", "plaintext-key", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "plaintext-key", got)
}

func TestAPIKeyMissingEverywhere(t *testing.T) {
	_, err := APIKey("peeringdb", "", zap.NewNop())
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)
}

func TestDecryptWithoutKeyFails(t *testing.T) {
	t.Setenv(EncryptionKeyEnv, "")
	_, err := DecryptValue("AAAA")
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)
}

package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "hBZ4cVhsNtMDPZe0MSQ3JhkXIzk5Y2ZkZDk0ZmRh"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	envelope, err := EncryptSecret(testSecret, "hunter2")
	require.NoError(t, err)

	got, err := DecryptSecret(envelope, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testSecret, got)
}

func TestDecryptSecret_WrongPassword(t *testing.T) {
	envelope, err := EncryptSecret(testSecret, "hunter2")
	require.NoError(t, err)

	_, err = DecryptSecret(envelope, "letmein")
	assert.Error(t, err)
}

func TestEncryptSecret_RejectsBadInput(t *testing.T) {
	_, err := EncryptSecret(testSecret, "")
	assert.Error(t, err)

	_, err = EncryptSecret("", "hunter2")
	assert.Error(t, err)
}

func TestDecryptSecret_RejectsUnknownVersion(t *testing.T) {
	_, err := DecryptSecret([]byte(`{"version":99}`), "hunter2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestLoadSecret_RawTakesPrecedence(t *testing.T) {
	got, err := LoadSecret(SecretConfig{Raw: testSecret, EncryptedPath: "/nope"})
	require.NoError(t, err)
	assert.Equal(t, testSecret, got)
}

func TestLoadSecret_FromEncryptedFile(t *testing.T) {
	envelope, err := EncryptSecret(testSecret, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "clob_secret.enc")
	require.NoError(t, os.WriteFile(path, envelope, 0o600))

	got, err := LoadSecret(SecretConfig{EncryptedPath: path, Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, testSecret, got)
}

func TestLoadSecret_NoSource(t *testing.T) {
	_, err := LoadSecret(SecretConfig{})
	assert.Error(t, err)
}

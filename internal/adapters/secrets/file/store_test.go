package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/fungame/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "secrets.toml"))
	testCases := []struct {
		name    string
		key     string
		wantErr string
	}{
		{name: "empty", key: "", wantErr: "secret key is empty"},
		{name: "whitespace", key: "   ", wantErr: "secret key is empty"},
		{name: "newline", key: "gemini\napi_key", wantErr: "invalid secret key"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.Put(context.Background(), tc.key, "value")
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestStorePutGetRoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "secrets.toml")
	store := NewStore(path)

	require.NoError(t, store.Put(context.Background(), "gemini/api_key", "top-secret"))
	require.NoError(t, store.Put(context.Background(), "websocket/token", "ws"))

	got, err := store.Get(context.Background(), "gemini/api_key")
	require.NoError(t, err)
	assert.Equal(t, "top-secret", got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(secretFileMode), info.Mode().Perm())

	reopened := NewStore(path)
	got, err = reopened.Get(context.Background(), "websocket/token")
	require.NoError(t, err)
	assert.Equal(t, "ws", got)
}

func TestStoreGetMissingSecret(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "secrets.toml"))
	_, err := store.Get(context.Background(), "gemini/api_key")
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreDeleteIsIdempotentWhenSecretMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "secrets.toml"))
	require.NoError(t, store.Put(context.Background(), "gemini/api_key", "x"))

	require.NoError(t, store.Delete(context.Background(), "gemini/api_key"))
	require.NoError(t, store.Delete(context.Background(), "gemini/api_key"))

	_, err := store.Get(context.Background(), "gemini/api_key")
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}

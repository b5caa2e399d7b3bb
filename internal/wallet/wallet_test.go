package wallet

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSignVerify(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)
	assert.False(t, w.Identity().IsZero())

	msg := []byte("create_post args")
	sig, err := w.Sign(msg)
	require.NoError(t, err)

	assert.True(t, Verify(w.Identity(), msg, sig))
	assert.False(t, Verify(w.Identity(), []byte("tampered"), sig))

	other, err := Generate()
	require.NoError(t, err)
	assert.False(t, Verify(other.Identity(), msg, sig), "signature must not verify under a different identity")
}

func TestFromSeedDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, SeedLength)

	a, err := FromSeed(seed)
	require.NoError(t, err)
	b, err := FromSeed(seed)
	require.NoError(t, err)

	assert.Equal(t, a.Identity(), b.Identity(), "same seed, same identity")
}

func TestFromSeedRejectsBadLength(t *testing.T) {
	_, err := FromSeed([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "actor.key")
	require.NoError(t, w.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, w.Identity(), loaded.Identity())

	// Both wallets must produce verifiable signatures for the identity.
	sig, err := loaded.Sign([]byte("hello"))
	require.NoError(t, err)
	assert.True(t, Verify(w.Identity(), []byte("hello"), sig))
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.key"))
	assert.Error(t, err)

	garbled := filepath.Join(dir, "garbled.key")
	require.NoError(t, os.WriteFile(garbled, []byte("not-hex!!"), 0o600))
	_, err = Load(garbled)
	assert.Error(t, err)

	short := filepath.Join(dir, "short.key")
	require.NoError(t, os.WriteFile(short, []byte("abcd1234"), 0o600))
	_, err = Load(short)
	assert.Error(t, err)
}

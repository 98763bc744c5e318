package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "01234567890123456789012345678901"

func TestNewSealerRejectsShortKey(t *testing.T) {
	_, err := NewSealer("short")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal("ya29.access-token")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))

	again, err := s.Seal("ya29.access-token")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ between seals")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access-token", plain)
}

func TestOpenPassesThroughUnsealedValues(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	plain, err := s.Open("legacy-plain-token")
	require.NoError(t, err)
	assert.Equal(t, "legacy-plain-token", plain)
}

func TestNilSealerIsPassThrough(t *testing.T) {
	var s *Sealer

	sealed, err := s.Seal("token")
	require.NoError(t, err)
	assert.Equal(t, "token", sealed)

	plain, err := s.Open("token")
	require.NoError(t, err)
	assert.Equal(t, "token", plain)
}

func TestOpenTamperedValue(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal("token")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := sealedPrefix + base64.StdEncoding.EncodeToString(raw)

	_, err = s.Open(tampered)
	assert.Error(t, err)
}

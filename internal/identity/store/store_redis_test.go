package store

import (
	"testing"
	"time"

	"proofid/internal/identity/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityCodecRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := map[string]time.Time{
		"near expiry":         now.Add(time.Hour),
		"beyond 2262":         time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
		"latest valid expiry": models.MaxExpiry,
	}
	for name, expiresAt := range cases {
		t.Run(name, func(t *testing.T) {
			ident, err := models.NewIdentity(alice, map[string]string{"country": "GB"}, now, expiresAt)
			require.NoError(t, err)

			raw, err := encodeIdentity(ident)
			require.NoError(t, err)
			decoded, err := decodeIdentity(raw)
			require.NoError(t, err)

			assert.Equal(t, ident, decoded)
			assert.True(t, decoded.IsValid(now))
			assert.True(t, decoded.IsValid(expiresAt.Add(-time.Microsecond)))
		})
	}
}

func TestDecodeIdentityRejectsBadPrincipal(t *testing.T) {
	_, err := decodeIdentity([]byte(`{"principal":"nope"}`))
	assert.Error(t, err)
}

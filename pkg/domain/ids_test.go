package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "proofid/pkg/domain-errors"
)

const validAddress = "0x5fbdb2315678afecb367f032d93f642f64180aa3"

// TestParsePrincipal_Invariants validates the parsing invariant:
// "principals are 20-byte, non-zero, 0x-prefixed hex addresses"
func TestParsePrincipal_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePrincipal("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects missing prefix", func(t *testing.T) {
		_, err := ParsePrincipal(strings.TrimPrefix(validAddress, "0x"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects wrong width", func(t *testing.T) {
		_, err := ParsePrincipal(validAddress + "00")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non-hex", func(t *testing.T) {
		_, err := ParsePrincipal("0x" + strings.Repeat("zz", PrincipalLength))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects zero address", func(t *testing.T) {
		_, err := ParsePrincipal("0x" + strings.Repeat("0", 40))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts mixed case and canonicalises", func(t *testing.T) {
		p, err := ParsePrincipal("0x5FbDB2315678afecb367f032d93F642f64180aa3")
		require.NoError(t, err)
		assert.Equal(t, validAddress, p.String())
	})
}

func TestPrincipalJSON(t *testing.T) {
	type payload struct {
		Owner Principal `json:"owner"`
	}
	in := payload{Owner: MustPrincipal(validAddress)}

	body, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"`+validAddress+`"}`, string(body))

	var out payload
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, in.Owner, out.Owner)

	err = json.Unmarshal([]byte(`{"owner":"nope"}`), &out)
	require.Error(t, err)
}

func TestParseRecordID(t *testing.T) {
	id, err := ParseRecordID("1")
	require.NoError(t, err)
	assert.Equal(t, RecordID(1), id)
	assert.Equal(t, "1", id.String())

	for _, bad := range []string{"", "-1", "abc", "1.5", "18446744073709551616"} {
		_, err := ParseRecordID(bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "input %q", bad)
	}
}

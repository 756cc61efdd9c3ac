package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofid/internal/identity/models"
	"proofid/pkg/testutil"
)

func identityWith(attrs map[string]string) *models.Identity {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Identity{
		Principal:  testutil.PrincipalN(1),
		Attributes: attrs,
		IssuedAt:   now,
		ExpiresAt:  now.Add(time.Hour),
	}
}

func TestAttributePredicate(t *testing.T) {
	identity := identityWith(map[string]string{"country": "GB", "tier": "2"})

	tests := []struct {
		name string
		pred Attribute
		want bool
	}{
		{"key present, no constraints", Attribute{Key: "country"}, true},
		{"key missing", Attribute{Key: "licence"}, false},
		{"value allowed", Attribute{Key: "country", Allowed: []string{"GB", "IE"}}, true},
		{"value not allowed", Attribute{Key: "country", Allowed: []string{"FR"}}, false},
		{"value blocked", Attribute{Key: "tier", Blocked: []string{"2"}}, false},
		{"blocked wins over allowed", Attribute{Key: "tier", Allowed: []string{"2"}, Blocked: []string{"2"}}, false},
		{"value not blocked", Attribute{Key: "tier", Blocked: []string{"0"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pred.Allows(identity))
		})
	}
}

func TestExpressionPredicate(t *testing.T) {
	identity := identityWith(map[string]string{"country": "GB", "tier": "2"})

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"equality", `country == "GB"`, true},
		{"conjunction", `country == "GB" and tier != "0"`, true},
		{"conjunction fails", `country == "GB" and tier == "0"`, false},
		{"disjunction", `country == "FR" or tier == "2"`, true},
		{"regex match", `country matches "^G"`, true},
		{"missing attribute denies", `licence == "A"`, false},
		{"syntax error denies", `country ==`, false},
		{"empty expression denies", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expression(tt.expr).Allows(identity))
		})
	}
}

func TestExpressionCachesCompiledEvaluator(t *testing.T) {
	expr := `country == "NL"`
	evaluators.Remove(expr)

	Expression(expr).Allows(identityWith(map[string]string{"country": "NL"}))
	cached, ok := evaluators.Get(expr)
	require.True(t, ok)

	Expression(expr).Allows(identityWith(map[string]string{"country": "BE"}))
	again, ok := evaluators.Get(expr)
	require.True(t, ok)
	assert.Same(t, cached, again)
}

func TestAllPredicate(t *testing.T) {
	identity := identityWith(map[string]string{"country": "GB"})

	assert.True(t, All().Allows(identity))
	assert.True(t, All(ValidIdentity, Attribute{Key: "country"}).Allows(identity))
	assert.False(t, All(Attribute{Key: "country"}, Expression(`country == "FR"`)).Allows(identity))
	assert.False(t, All(ValidIdentity, nil).Allows(identity))
	assert.Equal(t, "all(valid_identity,attribute)", All(ValidIdentity, Attribute{Key: "x"}).Name())
}

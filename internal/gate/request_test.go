package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "proofid/pkg/domain-errors"
)

func TestPredicateRequestBuild(t *testing.T) {
	t.Run("empty type is valid identity", func(t *testing.T) {
		p, err := PredicateRequest{}.Build()
		require.NoError(t, err)
		assert.Equal(t, ValidIdentity, p)
	})

	t.Run("attribute", func(t *testing.T) {
		p, err := PredicateRequest{Type: TypeAttribute, Key: "country", Blocked: []string{"XX"}}.Build()
		require.NoError(t, err)
		assert.Equal(t, Attribute{Key: "country", Blocked: []string{"XX"}}, p)
	})

	t.Run("nested all", func(t *testing.T) {
		p, err := PredicateRequest{Type: TypeAll, Predicates: []PredicateRequest{
			{Type: TypeValidIdentity},
			{Type: TypeExpression, Expression: `country == "GB"`},
		}}.Build()
		require.NoError(t, err)
		assert.Equal(t, "all(valid_identity,expression)", p.Name())
	})

	rejected := map[string]PredicateRequest{
		"attribute without key":   {Type: TypeAttribute},
		"uncompilable expression": {Type: TypeExpression, Expression: `country ==`},
		"unknown type":            {Type: "any_of"},
		"bad nested child":        {Type: TypeAll, Predicates: []PredicateRequest{{Type: "nope"}}},
	}
	for name, req := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := req.Build()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		})
	}

	t.Run("nesting limit", func(t *testing.T) {
		req := PredicateRequest{Type: TypeValidIdentity}
		for range maxPredicateDepth + 1 {
			req = PredicateRequest{Type: TypeAll, Predicates: []PredicateRequest{req}}
		}
		_, err := req.Build()
		require.Error(t, err)
	})
}

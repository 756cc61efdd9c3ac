package gate

import (
	"strings"

	"github.com/hashicorp/go-bexpr"
	lru "github.com/hashicorp/golang-lru/v2"

	"proofid/internal/identity/models"
)

// DefaultExpressionCacheSize bounds the number of compiled evaluators kept.
const DefaultExpressionCacheSize = 256

// evaluators caches compiled expressions keyed by their source text.
var evaluators = mustEvaluatorCache(DefaultExpressionCacheSize)

func mustEvaluatorCache(size int) *lru.Cache[string, *bexpr.Evaluator] {
	cache, err := lru.New[string, *bexpr.Evaluator](size)
	if err != nil {
		panic(err)
	}
	return cache
}

type expression string

// Expression evaluates a go-bexpr boolean expression against the identity's
// attribute map, e.g. `country == "GB" and tier != "0"`. Expressions that fail
// to compile or evaluate deny.
func Expression(expr string) Predicate {
	return expression(strings.TrimSpace(expr))
}

func (e expression) Allows(identity *models.Identity) bool {
	if e == "" {
		return false
	}
	evaluator, err := compile(string(e))
	if err != nil {
		return false
	}

	attrs := make(map[string]any, len(identity.Attributes))
	for k, v := range identity.Attributes {
		attrs[k] = v
	}
	matches, err := evaluator.Evaluate(attrs)
	if err != nil {
		// missing attribute or type mismatch
		return false
	}
	return matches
}

func (e expression) Name() string { return "expression" }

// ValidateExpression reports whether expr compiles.
func ValidateExpression(expr string) error {
	_, err := compile(strings.TrimSpace(expr))
	return err
}

func compile(expr string) (*bexpr.Evaluator, error) {
	if cached, ok := evaluators.Get(expr); ok {
		return cached, nil
	}
	evaluator, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, err
	}
	evaluators.Add(expr, evaluator)
	return evaluator, nil
}

package gate

import (
	dErrors "proofid/pkg/domain-errors"
)

// Predicate type names accepted on the wire.
const (
	TypeValidIdentity = "valid_identity"
	TypeAttribute     = "attribute"
	TypeExpression    = "expression"
	TypeAll           = "all"
)

const maxPredicateDepth = 8

// PredicateRequest is the JSON form of a Predicate. An empty Type means
// valid_identity.
type PredicateRequest struct {
	Type       string             `json:"type"`
	Key        string             `json:"key,omitempty"`
	Allowed    []string           `json:"allowed,omitempty"`
	Blocked    []string           `json:"blocked,omitempty"`
	Expression string             `json:"expression,omitempty"`
	Predicates []PredicateRequest `json:"predicates,omitempty"`
}

// Build converts the request into a Predicate, rejecting unknown types,
// missing fields and expressions that do not compile.
func (r PredicateRequest) Build() (Predicate, error) {
	return r.build(0)
}

func (r PredicateRequest) build(depth int) (Predicate, error) {
	if depth > maxPredicateDepth {
		return nil, dErrors.New(dErrors.CodeBadRequest, "predicate nesting too deep")
	}
	switch r.Type {
	case "", TypeValidIdentity:
		return ValidIdentity, nil
	case TypeAttribute:
		if r.Key == "" {
			return nil, dErrors.New(dErrors.CodeBadRequest, "attribute predicate requires key")
		}
		return Attribute{Key: r.Key, Allowed: r.Allowed, Blocked: r.Blocked}, nil
	case TypeExpression:
		if err := ValidateExpression(r.Expression); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid expression")
		}
		return Expression(r.Expression), nil
	case TypeAll:
		preds := make([]Predicate, 0, len(r.Predicates))
		for _, child := range r.Predicates {
			p, err := child.build(depth + 1)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		return All(preds...), nil
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown predicate type")
	}
}

// VerifyResponse is the body of POST /v1/identities/{principal}/verify.
type VerifyResponse struct {
	Allowed bool `json:"allowed"`
}

package gate

import (
	"slices"
	"strings"

	"proofid/internal/identity/models"
)

// Predicate is a condition over a valid identity's attributes. The gate only
// evaluates predicates against identities that are valid at call time, so
// implementations never need to check validity themselves.
type Predicate interface {
	Allows(identity *models.Identity) bool
	// Name identifies the predicate in metrics and traces.
	Name() string
}

type validIdentity struct{}

func (validIdentity) Allows(*models.Identity) bool { return true }
func (validIdentity) Name() string                 { return "valid_identity" }

// ValidIdentity is satisfied by any valid identity.
var ValidIdentity Predicate = validIdentity{}

// Attribute requires the identity to carry Key. When Allowed is non-empty the
// value must be one of Allowed. A value in Blocked is always denied, even if it
// also appears in Allowed.
type Attribute struct {
	Key     string
	Allowed []string
	Blocked []string
}

func (a Attribute) Allows(identity *models.Identity) bool {
	value, ok := identity.Attribute(a.Key)
	if !ok {
		return false
	}
	if slices.Contains(a.Blocked, value) {
		return false
	}
	return len(a.Allowed) == 0 || slices.Contains(a.Allowed, value)
}

func (a Attribute) Name() string { return "attribute" }

type all []Predicate

// All is the conjunction of preds. All() with no arguments behaves like
// ValidIdentity.
func All(preds ...Predicate) Predicate {
	return all(preds)
}

func (a all) Allows(identity *models.Identity) bool {
	for _, p := range a {
		if p == nil || !p.Allows(identity) {
			return false
		}
	}
	return true
}

func (a all) Name() string {
	names := make([]string, 0, len(a))
	for _, p := range a {
		if p != nil {
			names = append(names, p.Name())
		}
	}
	return "all(" + strings.Join(names, ",") + ")"
}

package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(ctx context.Context, method, path, as string, body any) error
	Status() int
	ResponseField(field string) (any, error)
	Principal(name string) (string, error)
}

// RegisterSteps registers identity registry and access gate step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &identitySteps{tc: tc}

	// Issuance
	ctx.Step(`^"([^"]*)" issues an identity to "([^"]*)" valid for (\d+) days?$`, steps.issue)
	ctx.Step(`^the admin issues an identity to "([^"]*)" valid for (\d+) days?$`, steps.adminIssues)
	ctx.Step(`^the admin issues an identity to "([^"]*)" valid for (\d+) days? with attributes:$`, steps.adminIssuesWithAttributes)
	ctx.Step(`^the admin revokes the identity of "([^"]*)"$`, steps.adminRevokes)

	// Validity and gate checks
	ctx.Step(`^"([^"]*)" should hold a valid identity$`, steps.shouldHoldValidIdentity)
	ctx.Step(`^"([^"]*)" should not hold a valid identity$`, steps.shouldNotHoldValidIdentity)
	ctx.Step(`^"([^"]*)" is verified against expression '([^']*)'$`, steps.verifyExpression)
	ctx.Step(`^the gate should (allow|deny)$`, steps.gateShould)
}

type identitySteps struct {
	tc TestContext
}

func (s *identitySteps) issueWith(ctx context.Context, as, subject string, days int, attributes map[string]string) error {
	p, err := s.tc.Principal(subject)
	if err != nil {
		return err
	}
	body := map[string]any{
		"principal":  p,
		"attributes": attributes,
		"expires_at": time.Now().Add(time.Duration(days) * 24 * time.Hour).UTC(),
	}
	return s.tc.Request(ctx, http.MethodPost, "/v1/identities", as, body)
}

func (s *identitySteps) issue(ctx context.Context, as, subject string, days int) error {
	return s.issueWith(ctx, as, subject, days, nil)
}

func (s *identitySteps) adminIssues(ctx context.Context, subject string, days int) error {
	return s.issueWith(ctx, "admin", subject, days, nil)
}

func (s *identitySteps) adminIssuesWithAttributes(ctx context.Context, subject string, days int, table *godog.Table) error {
	attributes := make(map[string]string, len(table.Rows))
	for i, row := range table.Rows {
		if i == 0 || len(row.Cells) != 2 {
			continue // header
		}
		attributes[row.Cells[0].Value] = row.Cells[1].Value
	}
	return s.issueWith(ctx, "admin", subject, days, attributes)
}

func (s *identitySteps) adminRevokes(ctx context.Context, subject string) error {
	p, err := s.tc.Principal(subject)
	if err != nil {
		return err
	}
	return s.tc.Request(ctx, http.MethodPost, "/v1/identities/"+p+"/revoke", "admin", nil)
}

func (s *identitySteps) validity(ctx context.Context, subject string) (bool, error) {
	p, err := s.tc.Principal(subject)
	if err != nil {
		return false, err
	}
	if err := s.tc.Request(ctx, http.MethodGet, "/v1/identities/"+p+"/valid", "", nil); err != nil {
		return false, err
	}
	valid, err := s.tc.ResponseField("valid")
	if err != nil {
		return false, err
	}
	b, ok := valid.(bool)
	if !ok {
		return false, fmt.Errorf("valid is %T, not bool", valid)
	}
	return b, nil
}

func (s *identitySteps) shouldHoldValidIdentity(ctx context.Context, subject string) error {
	valid, err := s.validity(ctx, subject)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("expected %s to hold a valid identity", subject)
	}
	return nil
}

func (s *identitySteps) shouldNotHoldValidIdentity(ctx context.Context, subject string) error {
	valid, err := s.validity(ctx, subject)
	if err != nil {
		return err
	}
	if valid {
		return fmt.Errorf("expected %s to hold no valid identity", subject)
	}
	return nil
}

func (s *identitySteps) verifyExpression(ctx context.Context, subject, expression string) error {
	p, err := s.tc.Principal(subject)
	if err != nil {
		return err
	}
	body := map[string]any{"type": "expression", "expression": expression}
	return s.tc.Request(ctx, http.MethodPost, "/v1/identities/"+p+"/verify", "", body)
}

func (s *identitySteps) gateShould(_ context.Context, outcome string) error {
	allowed, err := s.tc.ResponseField("allowed")
	if err != nil {
		return err
	}
	if want := outcome == "allow"; allowed != want {
		return fmt.Errorf("expected allowed=%t, got %v", want, allowed)
	}
	return nil
}

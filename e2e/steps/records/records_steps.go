package records

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(ctx context.Context, method, path, as string, body any) error
	Status() int
	DecodeResponse(dst any) error
	ResponseField(field string) (any, error)
	Principal(name string) (string, error)
	RecordID(n uint64) uint64
}

// RegisterSteps registers health record and access control step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &recordSteps{tc: tc}

	ctx.Step(`^"([^"]*)" adds health record (\d+) with payload "([^"]*)"$`, steps.addRecord)
	ctx.Step(`^"([^"]*)" grants "([^"]*)" access to record (\d+)$`, steps.grantAccess)
	ctx.Step(`^"([^"]*)" revokes "([^"]*)" access to record (\d+)$`, steps.revokeAccess)
	ctx.Step(`^"([^"]*)" reads record (\d+)$`, steps.readRecord)
	ctx.Step(`^"([^"]*)" lists the grantees of record (\d+)$`, steps.listGrantees)

	ctx.Step(`^the record payload should be "([^"]*)"$`, steps.payloadShouldBe)
	ctx.Step(`^the grantees should be "([^"]*)"$`, steps.granteesShouldBe)
	ctx.Step(`^"([^"]*)" should be authorized for record (\d+)$`, steps.shouldBeAuthorized)
	ctx.Step(`^"([^"]*)" should not be authorized for record (\d+)$`, steps.shouldNotBeAuthorized)
}

type recordSteps struct {
	tc TestContext
}

func (s *recordSteps) recordPath(n uint64) string {
	return "/v1/records/" + strconv.FormatUint(s.tc.RecordID(n), 10)
}

func (s *recordSteps) addRecord(ctx context.Context, owner string, recordID uint64, payload string) error {
	body := map[string]any{
		"id":      s.tc.RecordID(recordID),
		"payload": []byte(payload),
	}
	return s.tc.Request(ctx, http.MethodPost, "/v1/records", owner, body)
}

func (s *recordSteps) grantAccess(ctx context.Context, owner, grantee string, recordID uint64) error {
	p, err := s.tc.Principal(grantee)
	if err != nil {
		return err
	}
	body := map[string]any{"grantee": p}
	return s.tc.Request(ctx, http.MethodPost, s.recordPath(recordID)+"/grants", owner, body)
}

func (s *recordSteps) revokeAccess(ctx context.Context, owner, grantee string, recordID uint64) error {
	p, err := s.tc.Principal(grantee)
	if err != nil {
		return err
	}
	return s.tc.Request(ctx, http.MethodDelete, s.recordPath(recordID)+"/grants/"+p, owner, nil)
}

func (s *recordSteps) readRecord(ctx context.Context, caller string, recordID uint64) error {
	return s.tc.Request(ctx, http.MethodGet, s.recordPath(recordID), caller, nil)
}

func (s *recordSteps) listGrantees(ctx context.Context, caller string, recordID uint64) error {
	return s.tc.Request(ctx, http.MethodGet, s.recordPath(recordID)+"/grants", caller, nil)
}

func (s *recordSteps) payloadShouldBe(_ context.Context, expected string) error {
	if status := s.tc.Status(); status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("expected a record response, got status %d", status)
	}
	var record struct {
		Payload []byte `json:"payload"`
	}
	if err := s.tc.DecodeResponse(&record); err != nil {
		return err
	}
	if string(record.Payload) != expected {
		return fmt.Errorf("expected payload %q, got %q", expected, record.Payload)
	}
	return nil
}

func (s *recordSteps) granteesShouldBe(_ context.Context, names string) error {
	var resp struct {
		Grantees []string `json:"grantees"`
	}
	if err := s.tc.DecodeResponse(&resp); err != nil {
		return err
	}
	want := map[string]bool{}
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p, err := s.tc.Principal(name)
		if err != nil {
			return err
		}
		want[p] = true
	}
	if len(resp.Grantees) != len(want) {
		return fmt.Errorf("expected %d grantees, got %v", len(want), resp.Grantees)
	}
	for _, g := range resp.Grantees {
		if !want[g] {
			return fmt.Errorf("unexpected grantee %s", g)
		}
	}
	return nil
}

func (s *recordSteps) authorized(ctx context.Context, name string, recordID uint64) (bool, error) {
	p, err := s.tc.Principal(name)
	if err != nil {
		return false, err
	}
	if err := s.tc.Request(ctx, http.MethodGet, s.recordPath(recordID)+"/authorized/"+p, "", nil); err != nil {
		return false, err
	}
	v, err := s.tc.ResponseField("authorized")
	if err != nil {
		return false, err
	}
	ok, isBool := v.(bool)
	if !isBool {
		return false, fmt.Errorf("authorized is %T, not bool", v)
	}
	return ok, nil
}

func (s *recordSteps) shouldBeAuthorized(ctx context.Context, name string, recordID uint64) error {
	ok, err := s.authorized(ctx, name, recordID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("expected %s to be authorized for record %d", name, recordID)
	}
	return nil
}

func (s *recordSteps) shouldNotBeAuthorized(ctx context.Context, name string, recordID uint64) error {
	ok, err := s.authorized(ctx, name, recordID)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("expected %s not to be authorized for record %d", name, recordID)
	}
	return nil
}

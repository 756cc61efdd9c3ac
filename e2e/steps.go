package e2e

import (
	"github.com/cucumber/godog"

	"proofid/e2e/steps/common"
	"proofid/e2e/steps/identity"
	"proofid/e2e/steps/records"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	identity.RegisterSteps(ctx, tc)
	records.RegisterSteps(ctx, tc)
}

package models

import (
	"time"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassClient budgets every API request by client address.
	ClassClient EndpointClass = "client"
	// ClassPrincipal budgets authenticated operations by caller principal.
	ClassPrincipal EndpointClass = "principal"
)

// IsValid checks if the endpoint class is one of the supported enum values.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassClient, ClassPrincipal:
		return true
	}
	return false
}

// Policy is a sliding-window budget. A zero Limit disables the class.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) Enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// RateLimitResult is the outcome of one bucket check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is in whole seconds, at least 1 when denied.
	RetryAfter int
}

// NewResult derives remaining budget and retry hints from the window state
// after the request was counted (or refused). oldest is the earliest request
// still inside the window.
func NewResult(allowed bool, limit, count int, oldest time.Time, window time.Duration, now time.Time) *RateLimitResult {
	resetAt := oldest.Add(window)
	if count == 0 {
		resetAt = now.Add(window)
	}
	result := &RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		wait := resetAt.Sub(now)
		result.RetryAfter = max(int((wait+time.Second-1)/time.Second), 1)
	}
	return result
}

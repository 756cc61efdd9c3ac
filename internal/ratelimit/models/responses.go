package models

// RateLimitExceededResponse is the API response when a budget is exhausted.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"error_description"`
	RetryAfter int    `json:"retry_after"` // seconds
}

package testutil

import (
	"net/http"
	"time"

	id "proofid/pkg/domain"
	"proofid/pkg/requestcontext"
)

// WithPrincipal sets the authenticated caller on the request context, as the
// auth middleware would.
func WithPrincipal(req *http.Request, principal id.Principal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), principal))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// PrincipalN returns a deterministic non-zero principal whose last byte is n.
func PrincipalN(n byte) id.Principal {
	var p id.Principal
	p[0] = 0xaa
	p[id.PrincipalLength-1] = n
	return p
}

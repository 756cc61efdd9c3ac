// Package e2e drives a running proofid over HTTP with godog feature files.
//
// The suite is black-box: start the server, then run
//
//	PROOFID_E2E_URL=http://localhost:8080 JWT_SIGNING_KEY=... go test -tags e2e ./...
//
// with the same signing key, issuer and audience the server uses and with
// PROOFID_E2E_ADMIN listed in its PROOFID_ADMINS.
package e2e

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config locates the server under test.
type Config struct {
	BaseURL    string
	SigningKey string
	Issuer     string
	Audience   string
	Admin      string
}

// ConfigFromEnv mirrors the server's JWT_* variables.
func ConfigFromEnv() Config {
	return Config{
		BaseURL:    getEnv("PROOFID_E2E_URL", "http://localhost:8080"),
		SigningKey: os.Getenv("JWT_SIGNING_KEY"),
		Issuer:     getEnv("JWT_ISSUER", "proofid"),
		Audience:   getEnv("JWT_AUDIENCE", "proofid-api"),
		Admin:      getEnv("PROOFID_E2E_ADMIN", "0x00000000000000000000000000000000000000ad"),
	}
}

// TestContext holds per-scenario principals and the last response. Every
// scenario draws fresh addresses and record ids so runs against a
// long-lived server never collide.
type TestContext struct {
	cfg    Config
	client *http.Client

	principals map[string]string
	recordBase uint64

	lastStatus int
	lastBody   []byte
}

func NewTestContext(cfg Config) (*TestContext, error) {
	tc := &TestContext{
		cfg:        cfg,
		client:     &http.Client{Timeout: 10 * time.Second},
		principals: map[string]string{"admin": cfg.Admin},
	}
	for _, name := range []string{"alice", "bob", "carol"} {
		addr, err := randomAddress()
		if err != nil {
			return nil, err
		}
		tc.principals[name] = addr
	}
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seed record ids: %w", err)
	}
	// Leave room below 2^53 so ids survive any JSON number handling.
	tc.recordBase = (binary.BigEndian.Uint64(seed[:]) % (1 << 40)) << 12
	return tc, nil
}

func randomAddress() (string, error) {
	var b [20]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate principal: %w", err)
	}
	return "0x" + hex.EncodeToString(b[:]), nil
}

// Principal resolves a feature-file name to this scenario's address.
func (tc *TestContext) Principal(name string) (string, error) {
	p, ok := tc.principals[name]
	if !ok {
		return "", fmt.Errorf("unknown principal %q", name)
	}
	return p, nil
}

// RecordID maps a feature-file record number into this scenario's id range.
func (tc *TestContext) RecordID(n uint64) uint64 {
	return tc.recordBase + n
}

func (tc *TestContext) token(principal string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   principal,
		Issuer:    tc.cfg.Issuer,
		Audience:  jwt.ClaimStrings{tc.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(tc.cfg.SigningKey))
}

// Request sends body as JSON. When as is non-empty the request carries a
// bearer token for that principal.
func (tc *TestContext) Request(ctx context.Context, method, path, as string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, tc.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		p, err := tc.Principal(as)
		if err != nil {
			return err
		}
		token, err := tc.token(p)
		if err != nil {
			return fmt.Errorf("mint token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) Status() int {
	return tc.lastStatus
}

// DecodeResponse unmarshals the last response body into dst.
func (tc *TestContext) DecodeResponse(dst any) error {
	if err := json.Unmarshal(tc.lastBody, dst); err != nil {
		return fmt.Errorf("decode response %q: %w", tc.lastBody, err)
	}
	return nil
}

// ResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) ResponseField(field string) (any, error) {
	var body map[string]any
	if err := tc.DecodeResponse(&body); err != nil {
		return nil, err
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("response has no field %q: %s", field, tc.lastBody)
	}
	return v, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

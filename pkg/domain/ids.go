package domain

import (
	"encoding/hex"
	"strconv"
	"strings"

	dErrors "proofid/pkg/domain-errors"
)

// PrincipalLength is the width of a principal address in bytes.
const PrincipalLength = 20

// Principal is a fixed-width account address identifying a caller.
// Invariant: values produced by ParsePrincipal are never the zero address.
type Principal [PrincipalLength]byte

// ParsePrincipal parses a 0x-prefixed, 40 hex character address.
// Input is case-insensitive; the zero address is rejected.
func ParsePrincipal(s string) (Principal, error) {
	var p Principal
	raw, ok := strings.CutPrefix(strings.TrimSpace(s), "0x")
	if !ok {
		raw, ok = strings.CutPrefix(strings.TrimSpace(s), "0X")
	}
	if !ok {
		return p, dErrors.New(dErrors.CodeInvalidInput, "principal must be 0x-prefixed")
	}
	if len(raw) != hex.EncodedLen(PrincipalLength) {
		return p, dErrors.New(dErrors.CodeInvalidInput, "principal must be 40 hex characters")
	}
	if _, err := hex.Decode(p[:], []byte(raw)); err != nil {
		return Principal{}, dErrors.New(dErrors.CodeInvalidInput, "principal is not valid hex")
	}
	if p.IsZero() {
		return Principal{}, dErrors.New(dErrors.CodeInvalidInput, "principal cannot be the zero address")
	}
	return p, nil
}

// MustPrincipal parses s and panics on failure. Intended for tests and
// compile-time constants.
func MustPrincipal(s string) Principal {
	p, err := ParsePrincipal(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the canonical lower-case 0x form.
func (p Principal) String() string {
	return "0x" + hex.EncodeToString(p[:])
}

// IsZero reports whether p is the zero address.
func (p Principal) IsZero() bool {
	return p == Principal{}
}

func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := ParsePrincipal(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// RecordID identifies a health record. IDs are chosen by the owner and are
// unique across all owners.
type RecordID uint64

// ParseRecordID parses a base-10 record identifier.
func ParseRecordID(s string) (RecordID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "record id must be an unsigned integer")
	}
	return RecordID(n), nil
}

func (id RecordID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

package domain

import (
	"encoding/hex"
	"strings"

	perrors "github.com/louisbranch/questbridge/internal/platform/errors"
)

// AddressLength is the byte length of a domain address.
const AddressLength = 20

// Address identifies an actor on a domain: a user, a ledger, a relay, a
// transport endpoint, or a quest-variant module. Addresses are opaque
// capability handles; the core never derives meaning from their bytes.
type Address [AddressLength]byte

// ParseAddress decodes a 0x-prefixed hex string into an Address.
func ParseAddress(s string) (Address, error) {
	var a Address
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "0x")
	trimmed = strings.TrimPrefix(trimmed, "0X")
	if len(trimmed) != AddressLength*2 {
		return Address{}, perrors.WithMetadata(perrors.CodeAddressInvalid, "address must be 20 hex-encoded bytes", map[string]string{"value": s})
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Address{}, perrors.Wrap(perrors.CodeAddressInvalid, "address is not valid hex", err)
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress that panics on failure. It is intended for
// tests and package-level constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the 0x-prefixed lowercase hex representation.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler so addresses round-trip
// through JSON object keys and payloads as hex strings.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

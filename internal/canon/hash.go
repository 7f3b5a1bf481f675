package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainQuery      = "provq/query/v1"
	DomainDefinition = "provq/querydef/v1"
)

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data). The null separator keeps the
// domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// QueryHash computes the content-addressed identity of a serialized query
// description. Equal hashes mean the compiled SQL can be reused.
func QueryHash(v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("QueryHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainQuery, canonical), nil
}

// DefinitionHash computes the identity of a stored query definition.
// Same byte layout as QueryHash under a distinct domain, so a raw query
// and a definition wrapping it never collide.
func DefinitionHash(v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("DefinitionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDefinition, canonical), nil
}

// MustQueryHash is like QueryHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustQueryHash(v any) string {
	h, err := QueryHash(v)
	if err != nil {
		panic(err)
	}
	return h
}

// MustDefinitionHash is like DefinitionHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDefinitionHash(v any) string {
	h, err := DefinitionHash(v)
	if err != nil {
		panic(err)
	}
	return h
}

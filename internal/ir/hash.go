package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCarrier = "splitwrite/carrier/v1"
)

// carrierIDLen is the number of hex characters kept in short carrier IDs.
const carrierIDLen = 16

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content-addressed identity of a carrier from its
// SQL text, parameters, batch groups and version flag. Labels and column
// descriptors do not participate: two carriers that would send identical
// bytes to the database share a fingerprint.
func Fingerprint(c Carrier) (string, error) {
	obj := map[string]any{
		"sql":       strings.TrimSpace(c.SQL),
		"versioned": c.Versioned,
	}
	if len(c.Params) > 0 {
		obj["params"] = c.Params
	}
	if len(c.Groups) > 0 {
		obj["groups"] = c.Groups
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCarrier, canonical), nil
}

// CarrierID returns a short fingerprint for logs and error messages.
// Carriers whose parameters have no canonical form fall back to hashing the
// SQL text alone.
func CarrierID(c Carrier) string {
	full, err := Fingerprint(c)
	if err != nil {
		full = hashWithDomain(DomainCarrier, []byte(norm.NFC.String(strings.TrimSpace(c.SQL))))
	}
	return full[:carrierIDLen]
}

// IdentityKey returns the map key for an identity value.
//
// Integer widths are unified and []byte is treated as its string content,
// since drivers report the same key column as int64 on one table and int on
// another, or as TEXT versus BLOB. NULL has no key.
func IdentityKey(v any) (string, error) {
	if v == nil {
		return "", fmt.Errorf("identity is NULL")
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("identity key: %w", err)
	}
	if string(canonical) == "null" {
		return "", fmt.Errorf("identity is NULL")
	}
	return string(canonical), nil
}

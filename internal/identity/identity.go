// Package identity derives the secondary-system user identifier from the
// primary auth system's subject.
//
// The mapping is a name-based UUID (version 5, SHA-1 over namespace+name)
// and is recomputed independently by the desktop client and the identity
// bridge service. It is never transmitted or stored by either side, so the
// two implementations must agree byte-for-byte: same namespace, same
// algorithm, no exceptions.
package identity

import "github.com/google/uuid"

// Namespace is the fixed namespace UUID shared by every component that
// derives user identifiers. Changing it orphans all previously-derived
// identities.
var Namespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

// canonicalUUIDLen is the length of a dash-formatted UUID string.
const canonicalUUIDLen = 36

// UserID maps a primary-system identifier to the secondary-system
// identifier using the shared namespace.
//
// The function is total and deterministic: the same input always produces
// the same 36-character UUID string, with no side effects and no lookups.
// Inputs that are already UUID-shaped (36 characters) are returned
// unchanged, which accommodates primary systems whose subjects happen to
// be UUIDs themselves.
func UserID(primaryID string) string {
	return Derive(Namespace, primaryID)
}

// Derive computes the name-based UUID for primaryID under an explicit
// namespace. Most callers want UserID.
func Derive(namespace uuid.UUID, primaryID string) string {
	if len(primaryID) == canonicalUUIDLen {
		return primaryID
	}
	return uuid.NewSHA1(namespace, []byte(primaryID)).String()
}

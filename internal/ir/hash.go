package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCreator  = "modelcore/creator/v1"
	DomainSnapshot = "modelcore/snapshot/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CreatorFingerprint hashes the structural description of a node creator.
// Two creators with the same description have the same fingerprint.
func CreatorFingerprint(desc Object) (string, error) {
	canonical, err := MarshalCanonical(desc)
	if err != nil {
		return "", fmt.Errorf("CreatorFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCreator, canonical), nil
}

// SnapshotHash hashes a realized model snapshot.
func SnapshotHash(snapshot Object) (string, error) {
	canonical, err := MarshalCanonical(snapshot)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

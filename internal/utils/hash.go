// Package utils provides shared utilities for the ingestion pipeline.
// This file contains content hashing helpers used for duplicate detection
// and storage key derivation.
package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes returns the full 64-character SHA256 hex digest of data.
// The digest is the content fingerprint used to detect exact duplicate
// uploads against the catalog.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ValidateHash checks if a hash string is a valid SHA256 hex digest.
func ValidateHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

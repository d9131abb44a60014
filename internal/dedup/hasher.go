package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashContent returns the sha-256 hex digest of the raw file bytes. It is
// the identity of a physical document: byte-identical files collapse onto
// one DocumentCore no matter which case they arrive through.
func HashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashMetadata returns a fuzzy-dedup hash over filename, size and declared
// type. The canonical form is a pipe-joined string with a lowercased,
// trimmed filename so cosmetic renames ("Contract.PDF" vs "contract.pdf")
// still collide.
func HashMetadata(fileName string, fileSize int64, documentType string) string {
	canonical := fmt.Sprintf("%s|%d|%s",
		strings.ToLower(strings.TrimSpace(fileName)),
		fileSize,
		strings.ToLower(strings.TrimSpace(documentType)),
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// HashText hashes chunk text for chunk-level dedup.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent generates a SHA256 hash of arbitrary content, used for ETag
// headers on generated QR images.
func HashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// Package utils provides small shared helpers used across capability handlers.
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// HashBytes computes the hex-encoded SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString computes the hex-encoded SHA-256 digest of a string.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// HashFile computes the hex-encoded SHA-256 digest of a file's contents
// without loading the whole file into memory.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ShortHash returns the first 8 characters of a full digest for display.
func ShortHash(full string) string {
	if len(full) < 8 {
		return full
	}
	return full[:8]
}

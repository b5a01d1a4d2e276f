// Package verify provides content verification for veneer: streamed
// SHA-256 checksums for manifest files and OpenPGP detached-signature
// checks for API response bodies.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileSHA256 calculates the SHA-256 digest of a file, streaming the
// contents so large files do not have to fit in memory.
func FileSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Checksum verifies a file against an expected hex digest. An empty
// expected digest trusts the file without verification; that lowered trust
// bar is a property of the manifest entry, not a global flag.
func Checksum(filePath, expected string) (bool, error) {
	if expected == "" {
		return true, nil
	}

	actual, err := FileSHA256(filePath)
	if err != nil {
		return false, err
	}

	return strings.EqualFold(actual, expected), nil
}

// Package fileid derives stable document IDs from source file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// Prefix marks IDs produced by FileDocID.
const Prefix = "resume:"

const shortLen = 12

// FileDocID returns a stable document ID for the given absolute path.
// Same path always yields the same ID, so re-ingesting or deleting a file by path finds
// the same document.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return Prefix + hex.EncodeToString(hash[:])
}

// Valid reports whether id looks like an ID produced by FileDocID.
func Valid(id string) bool {
	hexPart, ok := strings.CutPrefix(id, Prefix)
	if !ok || len(hexPart) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}

// Short returns an abbreviated form of id for display.
func Short(id string) string {
	hexPart := strings.TrimPrefix(id, Prefix)
	if len(hexPart) <= shortLen {
		return id
	}
	return Prefix + hexPart[:shortLen]
}

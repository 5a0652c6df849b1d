package domain

import (
	"fmt"
	"strings"
)

// MaxWorldArchiveSize is the largest world archive the backend accepts
const MaxWorldArchiveSize = 100 * 1024 * 1024

// ValidateWorldArchive checks the world archive before upload. The backend
// enforces the same limits server-side; validating here gives the user a
// clear message without a round trip.
func ValidateWorldArchive(filename string, size int64) error {
	if filename == "" {
		return fmt.Errorf("world archive is required")
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".zip") {
		return fmt.Errorf("world archive must be a .zip file, got %q", filename)
	}
	if size <= 0 {
		return fmt.Errorf("world archive is empty")
	}
	if size > MaxWorldArchiveSize {
		return fmt.Errorf("world archive exceeds the %d MB limit", MaxWorldArchiveSize/(1024*1024))
	}
	return nil
}

package explain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// planDomain separates plan fingerprints from other hashes of the same
// bytes. The version suffix changes with the description format.
const planDomain = "aqlc/plan/v1"

// Fingerprint returns the hex SHA-256 of the canonical plan, prefixed by
// the plan domain and a zero byte.
func Fingerprint(plan Object) (string, error) {
	data, err := Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(planDomain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DeriveWorkspaceID maps a billing customer ID to the stable pseudonymous
// identifier that keys the customer's data in the hosted app: the first 16
// bytes of SHA-256(customerID), formatted as a UUID-shaped 8-4-4-4-12 string.
//
// The derivation is unsalted on purpose. The hosted app looks workspaces up
// by this exact value, so adding a secret to the hash would orphan every
// existing workspace. The cost is that anyone who knows a customer ID can
// compute the matching workspace ID.
func DeriveWorkspaceID(customerID string) string {
	sum := sha256.Sum256([]byte(customerID))
	h := hex.EncodeToString(sum[:16])
	return fmt.Sprintf("%s-%s-%s-%s-%s", h[0:8], h[8:12], h[12:16], h[16:20], h[20:32])
}

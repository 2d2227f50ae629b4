package session

// Tier is the subscription level carried in a session token.
type Tier string

const (
	TierFree      Tier = "free"
	TierPro       Tier = "pro"
	TierProTrader Tier = "pro_trader"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierProTrader:
		return true
	default:
		return false
	}
}

// Claims is the session-token payload.
//
// Field order and JSON keys are part of the wire format: the cookie value is
// base64url(json(Claims)) signed with HMAC, and tokens minted by one process
// must verify in another. Do not reorder or rename fields.
//
// TokenID is optional and only present when a revocation deny-list is in use;
// tokens without it remain valid everywhere.
type Claims struct {
	CustomerID  string `json:"cid"`
	Tier        Tier   `json:"tier"`
	WorkspaceID string `json:"workspaceId"`
	ExpiresAt   int64  `json:"exp"`
	TokenID     string `json:"jti,omitempty"`
}

// SessionInfo is the read-side answer to "who is this request".
// An unauthenticated request always reads as free tier.
type SessionInfo struct {
	Authenticated bool   `json:"authenticated"`
	Tier          Tier   `json:"tier"`
	WorkspaceID   string `json:"workspaceId,omitempty"`
}

// Anonymous is the SessionInfo returned for any missing, malformed, expired,
// or revoked session. Callers must not be able to tell those cases apart.
func Anonymous() SessionInfo {
	return SessionInfo{Authenticated: false, Tier: TierFree}
}

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Reader answers "who is this request, at what tier" from the cookie alone,
// with no provider call.
type Reader struct {
	codec    *Codec
	denylist *Denylist // nil when revocation is not configured
	log      *slog.Logger
	clock    func() time.Time
}

func NewReader(codec *Codec, denylist *Denylist, log *slog.Logger) *Reader {
	if log == nil {
		log = slog.Default()
	}
	return &Reader{codec: codec, denylist: denylist, log: log, clock: time.Now}
}

// Read decodes a cookie value into a SessionInfo. Every failure mode
// (missing, malformed, bad signature, expired, revoked) collapses to the
// anonymous free session; callers cannot distinguish them. The failure class
// is logged at debug level so secret rotations and token corruption stay
// visible internally.
func (r *Reader) Read(ctx context.Context, cookieValue string) SessionInfo {
	if cookieValue == "" {
		return Anonymous()
	}

	claims, err := r.codec.Decode(cookieValue, r.clock())
	if err != nil {
		r.log.Debug("session decode failed", "reason", decodeReason(err))
		return Anonymous()
	}

	if r.denylist != nil && claims.TokenID != "" {
		revoked, err := r.denylist.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			// Revocation is additive; a deny-list outage must not log
			// everyone out.
			r.log.Warn("denylist check failed", "err", err)
		} else if revoked {
			r.log.Debug("session token revoked", "token_id", claims.TokenID)
			return Anonymous()
		}
	}

	return SessionInfo{
		Authenticated: true,
		Tier:          claims.Tier,
		WorkspaceID:   claims.WorkspaceID,
	}
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	default:
		return "malformed"
	}
}

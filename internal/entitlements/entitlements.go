// Package entitlements resolves the mobile/tablet tier for a user. The
// resolution order is deliberate and operationally significant:
//
//  1. free-for-all mode        -> pro for every caller, provider never asked
//  2. email override list      -> pro regardless of billing state
//  3. entitlement provider     -> pro only while the "pro" entitlement is live
//  4. anything else, including provider errors and timeouts -> free
//
// Steps 1 and 2 silently disable monetization, so both are explicit config
// switches logged at startup rather than buried conditionals. Step 4 is the
// fail-closed rule: a provider outage can only ever demote, never promote.
package entitlements

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

type Entitlement struct {
	Tier      string  `json:"tier"`
	Status    string  `json:"status"`
	Source    string  `json:"source,omitempty"`
	ExpiresAt *string `json:"expiresAt"`
}

// Provider is the external entitlement source (RevenueCat in production).
type Provider interface {
	// ProEntitlement returns the user's "pro" entitlement, or ok=false when
	// the user has none.
	ProEntitlement(ctx context.Context, appUserID string) (ProStatus, bool, error)
}

type ProStatus struct {
	Active    bool
	ExpiresAt string // provider-native timestamp, empty for lifetime grants
}

type Config struct {
	// FreeForAll grants pro to every caller unconditionally.
	FreeForAll bool
	// OverrideEmails grant pro to specific users regardless of billing.
	OverrideEmails []string
}

type Service struct {
	provider  Provider
	cfg       Config
	overrides map[string]struct{}
	log       *slog.Logger
}

func NewService(provider Provider, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	overrides := make(map[string]struct{}, len(cfg.OverrideEmails))
	for _, e := range cfg.OverrideEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			overrides[e] = struct{}{}
		}
	}
	if cfg.FreeForAll {
		log.Warn("free-for-all mode enabled: every caller is granted pro entitlement")
	}
	if len(overrides) > 0 {
		log.Warn("pro override emails configured", "count", len(overrides))
	}
	return &Service{provider: provider, cfg: cfg, overrides: overrides, log: log}
}

// Check resolves the entitlement for an identity. userID and email may be
// empty (anonymous caller); anonymity resolves to free unless free-for-all
// mode is on.
func (s *Service) Check(ctx context.Context, userID, email string) Entitlement {
	if s.cfg.FreeForAll {
		return Entitlement{Tier: "pro", Status: "active", Source: "free_mode"}
	}

	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(userID))
	}
	if _, ok := s.overrides[key]; ok && key != "" {
		return Entitlement{Tier: "pro", Status: "active", Source: "override"}
	}

	id := strings.TrimSpace(userID)
	if id == "" {
		id = key
	}
	if id == "" || s.provider == nil {
		return free()
	}

	st, ok, err := s.provider.ProEntitlement(ctx, id)
	if err != nil {
		// Fail closed: provider trouble demotes to free, never promotes.
		s.log.Warn("entitlement provider check failed", "err", err)
		return free()
	}
	if !ok {
		return free()
	}
	if !st.Active {
		// An expired pro entitlement gates as free.
		return free()
	}

	ent := Entitlement{Tier: "pro", Status: "active", Source: "revenuecat"}
	if st.ExpiresAt != "" {
		exp := st.ExpiresAt
		ent.ExpiresAt = &exp
	}
	return ent
}

func free() Entitlement {
	return Entitlement{Tier: "free", Status: "active"}
}

// ParseExpiry reports whether a provider expiry timestamp is in the future.
func ParseExpiry(value string, now time.Time) bool {
	if value == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return false
	}
	return t.After(now)
}

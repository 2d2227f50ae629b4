package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"marketscanner-platform/internal/billing"

	"github.com/google/uuid"
)

// Session lifetime constants. The refresher re-mints once less than
// RefreshWindow remains, producing a sliding 7-day session.
const (
	SessionTTL    = 7 * 24 * time.Hour
	RefreshWindow = 3 * 24 * time.Hour
)

// CookieName is the cross-subdomain session cookie.
const CookieName = "ms_auth"

var (
	ErrInvalidEmail         = errors.New("invalid email")
	ErrNoAccount            = errors.New("no billing account for email")
	ErrNoActiveSubscription = errors.New("no active subscription")
)

type IssuerConfig struct {
	Prices TierPrices

	// CookieDomain scopes the session cookie to the root marketing domain so
	// the app subdomain receives it. Empty means host-only (local dev).
	CookieDomain string
}

// Issuer runs the login flow: billing lookup, tier classification, workspace
// derivation, and token minting.
type Issuer struct {
	codec   *Codec
	billing billing.Client
	cfg     IssuerConfig
	log     *slog.Logger
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewIssuer(codec *Codec, bc billing.Client, cfg IssuerConfig, log *slog.Logger) *Issuer {
	if log == nil {
		log = slog.Default()
	}
	return &Issuer{codec: codec, billing: bc, cfg: cfg, log: log, clock: time.Now}
}

// IssuedSession is the successful login result. PriceIDs are retained only
// for the non-production debug response.
type IssuedSession struct {
	Token       string
	Tier        Tier
	WorkspaceID string
	CustomerID  string
	PriceIDs    []string
}

// IssueSession authenticates an email against the payment provider and mints
// a 7-day session token.
//
// The tier/workspace metadata writeback onto the customer record is
// best-effort: a failure there is logged and never fails the login.
func (i *Issuer) IssueSession(ctx context.Context, email string) (IssuedSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return IssuedSession{}, ErrInvalidEmail
	}

	customer, err := i.billing.CustomerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return IssuedSession{}, ErrNoAccount
		}
		return IssuedSession{}, fmt.Errorf("customer lookup: %w", err)
	}

	subs, err := i.billing.Subscriptions(ctx, customer.ID)
	if err != nil {
		return IssuedSession{}, fmt.Errorf("subscription list: %w", err)
	}

	var priceIDs []string
	for _, s := range subs {
		if s.Valid() {
			priceIDs = append(priceIDs, s.PriceIDs...)
		}
	}
	if len(priceIDs) == 0 {
		return IssuedSession{}, ErrNoActiveSubscription
	}

	tier := ClassifyTier(priceIDs, i.cfg.Prices)
	workspaceID := DeriveWorkspaceID(customer.ID)

	if err := i.billing.UpdateCustomerMetadata(ctx, customer.ID, map[string]string{
		"marketscanner_tier": string(tier),
		"workspace_id":       workspaceID,
	}); err != nil {
		i.log.Warn("customer metadata writeback failed", "customer_id", customer.ID, "err", err)
	}

	now := i.clock()
	token, err := i.codec.Encode(Claims{
		CustomerID:  customer.ID,
		Tier:        tier,
		WorkspaceID: workspaceID,
		ExpiresAt:   now.Add(SessionTTL).Unix(),
		TokenID:     uuid.NewString(),
	})
	if err != nil {
		return IssuedSession{}, fmt.Errorf("mint token: %w", err)
	}

	return IssuedSession{
		Token:       token,
		Tier:        tier,
		WorkspaceID: workspaceID,
		CustomerID:  customer.ID,
		PriceIDs:    priceIDs,
	}, nil
}

// Cookie builds the cross-subdomain login cookie for a freshly minted token.
// SameSite=None plus Secure is what lets the marketing origin hand the
// session to the app subdomain.
func (i *Issuer) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Domain:   i.cfg.CookieDomain,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

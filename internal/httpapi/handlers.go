package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"marketscanner-platform/internal/alerts"
	"marketscanner-platform/internal/billing"
	"marketscanner-platform/internal/entitlements"
	"marketscanner-platform/internal/ratelimit"
	"marketscanner-platform/internal/session"
	"marketscanner-platform/internal/subscriptions"
	"marketscanner-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const loginMessage = "Subscription activated successfully!"

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal modules, return JSON.
type Handlers struct {
	Issuer        *session.Issuer
	Reader        *session.Reader
	Codec         *session.Codec
	AppTokens     *session.AppTokenManager
	Entitlements  *entitlements.Service
	Subscriptions *subscriptions.Service
	Billing       billing.Client
	Alerts        *alerts.Service
	LoginLimiter  *ratelimit.Limiter

	// Production gates the login debug flag; price IDs feed its output.
	Production     bool
	PricePro       string
	PriceProTrader string
	AlertsSendKey  string

	cors corsPolicy
}

// NewHandlers finishes handler setup that cannot be expressed as plain field
// assignment (the CORS allow-list).
func NewHandlers(h Handlers, allowedOrigins []string) Handlers {
	h.cors = newCORSPolicy(allowedOrigins)
	return h
}

// --- Login ---

type loginRequest struct {
	Email string `json:"email"`
}

// Login authenticates an email against billing and sets the session cookie.
func (h Handlers) Login(c *gin.Context) {
	h.cors.apply(c, "POST, OPTIONS")
	log := logger.FromGin(c)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email"})
		return
	}

	if h.LoginLimiter != nil {
		key := strings.ToLower(strings.TrimSpace(req.Email))
		allowed, err := h.LoginLimiter.Allow(c.Request.Context(), key)
		if err != nil {
			// A limiter outage must not take logins down with it.
			log.Warn("login rate limiter unavailable", "err", err)
		} else if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many attempts. Please wait and try again."})
			return
		}
	}

	issued, err := h.Issuer.IssueSession(c.Request.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email"})
		case errors.Is(err, session.ErrNoAccount):
			c.JSON(http.StatusNotFound, gin.H{"error": "No subscription found for this email"})
		case errors.Is(err, session.ErrNoActiveSubscription):
			c.JSON(http.StatusNotFound, gin.H{"error": "No active subscription found"})
		default:
			log.Error("login failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed. Please try again."})
		}
		return
	}

	http.SetCookie(c.Writer, h.Issuer.Cookie(issued.Token))

	body := gin.H{
		"ok":          true,
		"tier":        issued.Tier,
		"workspaceId": issued.WorkspaceID,
		"message":     loginMessage,
	}
	// The debug payload leaks price configuration; never serve it in
	// production.
	if !h.Production && c.Query("debug") == "1" {
		body["debug"] = gin.H{
			"priceIds": issued.PriceIDs,
			"env": gin.H{
				"PRICE_PRO":        h.PricePro,
				"PRICE_PRO_TRADER": h.PriceProTrader,
			},
		}
	}
	c.JSON(http.StatusOK, body)
}

func (h Handlers) LoginPreflight(c *gin.Context) {
	h.cors.preflight("POST, OPTIONS")(c)
}

// --- Session check ---

// Session reports whether the request carries a valid session and at what
// tier. A missing or invalid cookie is a 200 with the anonymous shape, not a
// 401; the 401 below only fires if the decode path panics.
func (h Handlers) Session(c *gin.Context) {
	h.cors.apply(c, "GET, OPTIONS")

	defer func() {
		if r := recover(); r != nil {
			logger.FromGin(c).Error("session check panicked", "panic", r)
			c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false, "tier": session.TierFree})
		}
	}()

	cookie, err := c.Request.Cookie(session.CookieName)
	if err != nil || cookie.Value == "" {
		c.JSON(http.StatusOK, session.Anonymous())
		return
	}
	c.JSON(http.StatusOK, h.Reader.Read(c.Request.Context(), cookie.Value))
}

func (h Handlers) SessionPreflight(c *gin.Context) {
	h.cors.preflight("GET, OPTIONS")(c)
}

// --- App token exchange ---

// AppToken exchanges a valid session token (bearer) for a short-lived token
// consumed by the hosted dashboard.
func (h Handlers) AppToken(c *gin.Context) {
	raw := bearerToken(c)
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	claims, err := h.Codec.Decode(raw, time.Now())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	token, err := h.AppTokens.Issue(time.Now(), claims.CustomerID, "", claims.Tier)
	if err != nil {
		logger.FromGin(c).Error("app token issuance failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// --- Entitlements ---

// EntitlementCheck resolves the mobile tier. The bearer app token is
// optional: anonymous callers resolve to free unless free-for-all mode is on.
func (h Handlers) EntitlementCheck(c *gin.Context) {
	var userID, email string
	if raw := bearerToken(c); raw != "" {
		if claims, err := h.AppTokens.Verify(raw, time.Now()); err == nil {
			userID = claims.UserID
			email = claims.Email
		}
		// Invalid bearers fall through as anonymous rather than erroring;
		// the mobile shell retries without a token on upgrade prompts.
	}
	c.JSON(http.StatusOK, h.Entitlements.Check(c.Request.Context(), userID, email))
}

// --- Subscription mirror ---

type subscriptionUpdateRequest struct {
	StripeSubscriptionID string `json:"stripeSubscriptionId"`
	CustomerEmail        string `json:"customerEmail"`
	PlanType             string `json:"planType"`
	Status               string `json:"status"`
}

// SubscriptionUpdate applies a billing push to the local subscription mirror.
func (h Handlers) SubscriptionUpdate(c *gin.Context) {
	var req subscriptionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.StripeSubscriptionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing subscription ID"})
		return
	}

	in := subscriptions.UpdateInput{
		StripeSubscriptionID: req.StripeSubscriptionID,
		PlanType:             req.PlanType,
		Status:               subscriptions.Status(req.Status),
	}

	// Active pushes carry an email; resolve it to the same workspace ID the
	// session issuer derives so both paths key the same row.
	if in.Status == subscriptions.StatusActive {
		email := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing customer email"})
			return
		}
		customer, err := h.Billing.CustomerByEmail(c.Request.Context(), email)
		if err != nil {
			if errors.Is(err, billing.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "No billing customer for email"})
				return
			}
			logger.FromGin(c).Error("subscription update lookup failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Update failed"})
			return
		}
		in.WorkspaceID = session.DeriveWorkspaceID(customer.ID)
	}

	if err := h.Subscriptions.Apply(c.Request.Context(), in); err != nil {
		switch {
		case errors.Is(err, subscriptions.ErrInvalidArgument):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription update"})
		case errors.Is(err, subscriptions.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		default:
			logger.FromGin(c).Error("subscription update failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// --- Alerts ---

type sendAlertRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (h Handlers) SendAlert(c *gin.Context) {
	if h.AlertsSendKey != "" && c.GetHeader("X-Alerts-Key") != h.AlertsSendKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req sendAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	id, err := h.Alerts.Send(c.Request.Context(), alerts.Message{
		To:      req.To,
		Subject: req.Subject,
		HTML:    req.HTML,
	})
	if err != nil {
		if errors.Is(err, alerts.ErrInvalidRecipient) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' email"})
			return
		}
		logger.FromGin(c).Error("alert send failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Send failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "id": id})
}

func bearerToken(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if !strings.HasPrefix(raw, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
}

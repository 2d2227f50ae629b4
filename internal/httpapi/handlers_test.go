package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketscanner-platform/internal/alerts"
	"marketscanner-platform/internal/billing"
	"marketscanner-platform/internal/entitlements"
	"marketscanner-platform/internal/session"

	"github.com/gin-gonic/gin"
)

const testOrigin = "https://app.marketscannerpros.app"

type fakeBilling struct {
	customers     map[string]billing.Customer
	subscriptions map[string][]billing.Subscription
}

func (f *fakeBilling) CustomerByEmail(_ context.Context, email string) (billing.Customer, error) {
	c, ok := f.customers[email]
	if !ok {
		return billing.Customer{}, billing.ErrNotFound
	}
	return c, nil
}

func (f *fakeBilling) Subscriptions(_ context.Context, customerID string) ([]billing.Subscription, error) {
	return f.subscriptions[customerID], nil
}

func (f *fakeBilling) UpdateCustomerMetadata(context.Context, string, map[string]string) error {
	return nil
}

type fakeProvider struct{ err error }

func (f *fakeProvider) ProEntitlement(context.Context, string) (entitlements.ProStatus, bool, error) {
	if f.err != nil {
		return entitlements.ProStatus{}, false, f.err
	}
	return entitlements.ProStatus{}, false, nil
}

type fakeSender struct{}

func (fakeSender) Send(context.Context, alerts.Message) (string, error) { return "msg-1", nil }

type handlerOptions struct {
	production bool
	entCfg     entitlements.Config
	entErr     error
	sendKey    string
}

func newTestHandlers(t *testing.T, opts handlerOptions) (Handlers, *session.Codec, *session.AppTokenManager) {
	t.Helper()

	codec, err := session.NewCodec("cookie-secret")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	appTokens, err := session.NewAppTokenManager("app-secret", 30*time.Minute)
	if err != nil {
		t.Fatalf("app tokens: %v", err)
	}

	fb := &fakeBilling{
		customers: map[string]billing.Customer{
			"a@x.com":      {ID: "cus_123", Email: "a@x.com"},
			"lapsed@x.com": {ID: "cus_456", Email: "lapsed@x.com"},
		},
		subscriptions: map[string][]billing.Subscription{
			"cus_123": {{ID: "sub_1", Status: billing.StatusActive, PriceIDs: []string{"price_pro"}}},
			"cus_456": {{ID: "sub_2", Status: "canceled", PriceIDs: []string{"price_pro"}}},
		},
	}
	issuer := session.NewIssuer(codec, fb, session.IssuerConfig{
		Prices: session.TierPrices{Pro: "price_pro", ProTrader: "price_trader"},
	}, nil)

	h := NewHandlers(Handlers{
		Issuer:        issuer,
		Reader:        session.NewReader(codec, nil, nil),
		Codec:         codec,
		AppTokens:     appTokens,
		Entitlements:  entitlements.NewService(&fakeProvider{err: opts.entErr}, opts.entCfg, nil),
		Billing:       fb,
		Alerts:        alerts.NewService(fakeSender{}, nil, nil),
		Production:    opts.production,
		PricePro:      "price_pro",
		AlertsSendKey: opts.sendKey,
	}, []string{
		"https://app.marketscannerpros.app",
		"https://marketscannerpros.app",
		"https://www.marketscannerpros.app",
	})
	return h, codec, appTokens
}

func testRouter(h Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/auth/login", h.Login)
	r.OPTIONS("/api/auth/login", h.LoginPreflight)
	r.GET("/api/auth/session", h.Session)
	r.OPTIONS("/api/auth/session", h.SessionPreflight)
	r.POST("/api/app-token", h.AppToken)
	r.GET("/api/entitlements", h.EntitlementCheck)
	r.POST("/api/alerts/send", h.SendAlert)
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

// --- Session check ---

func TestSessionWithoutCookie(t *testing.T) {
	h, _, _ := newTestHandlers(t, handlerOptions{})
	r := testRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for anonymous session, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["authenticated"] != false || body["tier"] != "free" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestSessionWithValidCookie(t *testing.T) {
	h, codec, _ := newTestHandlers(t, handlerOptions{})
	r := testRouter(h)

	token, err := codec.Encode(session.Claims{
		CustomerID:  "cus_123",
		Tier:        session.TierPro,
		WorkspaceID: session.DeriveWorkspaceID("cus_123"),
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	body := decodeBody(t, w)
	if body["authenticated"] != true || body["tier"] != "pro" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["workspaceId"] != session.DeriveWorkspaceID("cus_123") {
		t.Fatalf("unexpected workspace id: %v", body["workspaceId"])
	}
}

func TestSessionCORSAllowedOrigin(t *testing.T) {
	h, _, _ := newTestHandlers(t, handlerOptions{})
	r := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Origin", testOrigin)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Fatalf("expected origin reflected, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials allowed, got %q", got)
	}
	if !strings.Contains(w.Header().Get("Vary"), "Origin") {
		t.Fatalf("expected Vary: Origin")
	}
}

func TestSessionCORSUnknownOrigin(t *testing.T) {
	h, _, _ := newTestHandlers(t, handlerOptions{})
	r := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unknown origin must not be reflected, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Fatalf("credentials must not be echoed for unknown origin, got %q", got)
	}
	if !strings.Contains(w.Header().Get("Vary"), "Origin") {
		t.Fatalf("expected Vary: Origin regardless of origin")
	}
}

func TestSessionPreflight(t *testing.T) {
	h, _, _ := newTestHandlers(t, handlerOptions{})
	r := testRouter(h)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/session", nil)
	req.Header.Set("Origin", testOrigin)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Fatalf("expected max-age 86400, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Fatalf("expected origin reflected on preflight, got %q", got)
	}
}

// --- Login ---

func TestLoginHappyPath(t *testing.T) {
	h, codec, _ := newTestHandlers(t, handlerOptions{})
	r := testRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@x.com"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["ok"] != true || body["tier"] != "pro" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["workspaceId"] != session.DeriveWorkspaceID("cus_123") {
		t.Fatalf("unexpected workspace id: %v", body["workspaceId"])
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("expected session cookie to be set")
	}
	if cookie.MaxAge != int(session.SessionTTL.Seconds()) {
		t.Fatalf("expected 7-day cookie, got max-age %d", cookie.MaxAge)
	}
	if _, err := codec.Decode(cookie.Value, time.Now()); err != nil {
		t.Fatalf("cookie does not decode: %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	h, _, _ := newTestHandlers(t, handlerOptions{})
	r := testRouter(h)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"invalid email", `{"email":"nope"}`, http.StatusBadRequest},
		{"unknown email", `{"email":"missing@x.com"}`, http.StatusNotFound},
		{"no active subscription", `{"email":"lapsed@x.com"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}

func TestLoginDebugGatedByProduction(t *testing.T) {
	for _, production := range []bool{false, true} {
		h, _, _ := newTestHandlers(t, handlerOptions{production: production})
		r := testRouter(h)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login?debug=1", strings.NewReader(`{"email":"a@x.com"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		_, hasDebug := decodeBody(t, w)["debug"]
		if production && hasDebug {
			t.Fatalf("debug payload must never be served in production")
		}
		if !production && !hasDebug {
			t.Fatalf("debug payload expected outside production")
		}
	}
}

// --- App token exchange ---

func TestAppTokenRequiresValidSession(t *testing.T) {
	h, _, _ := newTestHandlers(t, handlerOptions{})
	r := testRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/app-token", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/app-token", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid bearer, got %d", w.Code)
	}
}

func TestAppTokenExchange(t *testing.T) {
	h, codec, appTokens := newTestHandlers(t, handlerOptions{})
	r := testRouter(h)

	sessionToken, err := codec.Encode(session.Claims{
		CustomerID:  "cus_123",
		Tier:        session.TierProTrader,
		WorkspaceID: session.DeriveWorkspaceID("cus_123"),
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/app-token", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	token, _ := decodeBody(t, w)["token"].(string)
	if token == "" {
		t.Fatalf("expected a token in response")
	}

	claims, err := appTokens.Verify(token, time.Now())
	if err != nil {
		t.Fatalf("issued app token does not verify: %v", err)
	}
	if claims.UserID != "cus_123" || claims.Tier != session.TierProTrader {
		t.Fatalf("unexpected app token claims: %+v", claims)
	}
}

// --- Entitlements ---

func TestEntitlementsFreeForAll(t *testing.T) {
	h, _, _ := newTestHandlers(t, handlerOptions{entCfg: entitlements.Config{FreeForAll: true}})
	r := testRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/entitlements", nil))

	body := decodeBody(t, w)
	if body["tier"] != "pro" || body["source"] != "free_mode" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestEntitlementsFailClosed(t *testing.T) {
	h, _, appTokens := newTestHandlers(t, handlerOptions{entErr: context.DeadlineExceeded})
	r := testRouter(h)

	token, err := appTokens.Issue(time.Now(), "cus_123", "a@x.com", session.TierPro)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/entitlements", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	body := decodeBody(t, w)
	if body["tier"] != "free" || body["status"] != "active" {
		t.Fatalf("provider failure must resolve to free, got %v", body)
	}
}

// --- Alerts ---

func TestSendAlertKeyGuard(t *testing.T) {
	h, _, _ := newTestHandlers(t, handlerOptions{sendKey: "k1"})
	r := testRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/send", strings.NewReader(`{"to":"a@x.com"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/alerts/send", strings.NewReader(`{"to":"a@x.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Alerts-Key", "k1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["ok"] != true || body["id"] != "msg-1" {
		t.Fatalf("unexpected body: %v", body)
	}
}

package entitlements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRevenueCatBaseURL = "https://api.revenuecat.com"

// RevenueCatClient looks up subscriber entitlements over the RevenueCat v1
// REST API.
type RevenueCatClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	clock      func() time.Time
}

type RevenueCatConfig struct {
	APIKey string
	// BaseURL overrides the API host, for tests.
	BaseURL string
	Timeout time.Duration
}

func NewRevenueCatClient(cfg RevenueCatConfig) (*RevenueCatClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("revenuecat api key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultRevenueCatBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RevenueCatClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(base, "/"),
		apiKey:     cfg.APIKey,
		clock:      time.Now,
	}, nil
}

type rcSubscriberResponse struct {
	Subscriber struct {
		Entitlements map[string]struct {
			ExpiresDate string `json:"expires_date"`
		} `json:"entitlements"`
	} `json:"subscriber"`
}

func (c *RevenueCatClient) ProEntitlement(ctx context.Context, appUserID string) (ProStatus, bool, error) {
	u := c.baseURL + "/v1/subscribers/" + url.PathEscape(appUserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ProStatus{}, false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ProStatus{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return ProStatus{}, false, fmt.Errorf("revenuecat returned %d", resp.StatusCode)
	}

	var out rcSubscriberResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ProStatus{}, false, err
	}

	ent, ok := out.Subscriber.Entitlements["pro"]
	if !ok {
		return ProStatus{}, false, nil
	}
	return ProStatus{
		Active:    ParseExpiry(ent.ExpiresDate, c.clock()),
		ExpiresAt: ent.ExpiresDate,
	}, true, nil
}

package billing

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

const defaultStripeBaseURL = "https://api.stripe.com"

// StripeClient implements Client against the Stripe REST API with a
// conservative request timeout. No SDK; the three endpoints we touch are
// plain form-encoded REST.
type StripeClient struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

type StripeConfig struct {
	SecretKey string
	// BaseURL overrides the API host, for tests.
	BaseURL string
	Timeout time.Duration
}

func NewStripeClient(cfg StripeConfig) (*StripeClient, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultStripeBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &StripeClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(base, "/"),
		secretKey:  cfg.SecretKey,
	}, nil
}

type stripeCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type stripeList[T any] struct {
	Data []T `json:"data"`
}

type stripeSubscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Items  struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (c *StripeClient) CustomerByEmail(ctx context.Context, email string) (Customer, error) {
	q := url.Values{"email": {email}, "limit": {"1"}}
	var out stripeList[stripeCustomer]
	if err := c.do(ctx, http.MethodGet, "/v1/customers?"+q.Encode(), nil, &out); err != nil {
		return Customer{}, err
	}
	if len(out.Data) == 0 {
		return Customer{}, ErrNotFound
	}
	return Customer{ID: out.Data[0].ID, Email: out.Data[0].Email}, nil
}

func (c *StripeClient) Subscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	q := url.Values{"customer": {customerID}, "limit": {"10"}, "status": {"all"}}
	var out stripeList[stripeSubscription]
	if err := c.do(ctx, http.MethodGet, "/v1/subscriptions?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	subs := make([]Subscription, 0, len(out.Data))
	for _, s := range out.Data {
		sub := Subscription{ID: s.ID, Status: SubscriptionStatus(s.Status)}
		for _, item := range s.Items.Data {
			sub.PriceIDs = append(sub.PriceIDs, item.Price.ID)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (c *StripeClient) UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error {
	form := url.Values{}
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}
	return c.do(ctx, http.MethodPost, "/v1/customers/"+url.PathEscape(customerID), strings.NewReader(form.Encode()), nil)
}

func (c *StripeClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return fmt.Errorf("%w: %s %s returned %d", ErrUpstream, method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}
	return nil
}

// Package billing talks to the payment provider (Stripe). The session issuer
// only needs three calls: find a customer by email, list their subscriptions,
// and write tier metadata back onto the customer record.
package billing

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("billing: customer not found")
	// ErrUpstream wraps provider transport/API failures. Handlers map it to a
	// generic 500; provider internals never reach a client.
	ErrUpstream = errors.New("billing: provider request failed")
)

type Customer struct {
	ID    string
	Email string
}

type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusTrialing SubscriptionStatus = "trialing"
)

type Subscription struct {
	ID       string
	Status   SubscriptionStatus
	PriceIDs []string
}

// Valid reports whether the subscription counts toward entitlement.
func (s Subscription) Valid() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// Client is the provider surface the issuer consumes. Tests substitute a fake.
type Client interface {
	// CustomerByEmail resolves the customer for a normalized email.
	// Returns ErrNotFound when no customer exists.
	CustomerByEmail(ctx context.Context, email string) (Customer, error)

	// Subscriptions lists the customer's subscriptions, all statuses included.
	Subscriptions(ctx context.Context, customerID string) ([]Subscription, error)

	// UpdateCustomerMetadata merges key/value metadata onto the customer
	// record. Best-effort from the caller's perspective.
	UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error
}

package subscriptions

import "time"

// Plan IDs mirror the plans table seeded by migrations. Keep stable.
const (
	PlanPro       = 1
	PlanProTrader = 2
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// Record mirrors one row of user_subscriptions: the local copy of billing
// state pushed from the payment provider. The billing provider remains the
// source of truth; this table only serves reads that must not depend on it.
type Record struct {
	WorkspaceID          string    `json:"workspace_id" db:"workspace_id"`
	PlanID               int       `json:"plan_id" db:"plan_id"`
	Platform             string    `json:"platform" db:"platform"`
	BillingPeriod        string    `json:"billing_period" db:"billing_period"`
	Status               Status    `json:"subscription_status" db:"subscription_status"`
	StripeSubscriptionID string    `json:"stripe_subscription_id" db:"stripe_subscription_id"`
	CurrentPeriodStart   time.Time `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd     time.Time `json:"current_period_end" db:"current_period_end"`
}

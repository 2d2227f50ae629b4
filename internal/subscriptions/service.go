// Package subscriptions maintains the local mirror of billing subscription
// state. Writes arrive as pushes from checkout/billing webhooks; the mirror
// lets tier lookups survive a billing-provider outage.
package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"marketscanner-platform/pkg/utils"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
)

type Service struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

// UpdateInput is the billing push payload.
type UpdateInput struct {
	StripeSubscriptionID string
	WorkspaceID          string
	PlanType             string // "pro" or "pro_trader"
	Status               Status
}

func (in UpdateInput) validate() error {
	if in.StripeSubscriptionID == "" {
		return ErrInvalidArgument
	}
	switch in.Status {
	case StatusActive:
		if in.WorkspaceID == "" || planID(in.PlanType) == 0 {
			return ErrInvalidArgument
		}
	case StatusCancelled:
		// Cancellation only needs the provider subscription ID.
	default:
		return ErrInvalidArgument
	}
	return nil
}

func planID(planType string) int {
	switch strings.ToLower(strings.TrimSpace(planType)) {
	case "pro":
		return PlanPro
	case "pro_trader":
		return PlanProTrader
	default:
		return 0
	}
}

// Apply upserts an active subscription or cancels an existing one.
func (s *Service) Apply(ctx context.Context, in UpdateInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	now := s.clock().UTC()
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if in.Status == StatusCancelled {
			return cancelByProviderID(ctx, tx, in.StripeSubscriptionID, now)
		}
		return upsertActive(ctx, tx, Record{
			WorkspaceID:          in.WorkspaceID,
			PlanID:               planID(in.PlanType),
			Platform:             "web",
			BillingPeriod:        "monthly",
			Status:               StatusActive,
			StripeSubscriptionID: in.StripeSubscriptionID,
			CurrentPeriodStart:   now,
			CurrentPeriodEnd:     now.AddDate(0, 1, 0),
		})
	})
}

// ByWorkspace returns the mirrored subscription row for a workspace.
func (s *Service) ByWorkspace(ctx context.Context, workspaceID string) (Record, error) {
	if workspaceID == "" {
		return Record{}, ErrInvalidArgument
	}
	return byWorkspace(ctx, s.db, workspaceID)
}

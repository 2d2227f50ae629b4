package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// NOTE: This repository assumes the following table exists:
//
//	user_subscriptions (
//	  workspace_id           text PRIMARY KEY,
//	  plan_id                int NOT NULL,
//	  platform               text NOT NULL,
//	  billing_period         text NOT NULL,
//	  subscription_status    text NOT NULL,
//	  stripe_subscription_id text NOT NULL,
//	  current_period_start   timestamptz NOT NULL,
//	  current_period_end     timestamptz NOT NULL
//	)

func upsertActive(ctx context.Context, tx *sql.Tx, r Record) error {
	const q = `
INSERT INTO user_subscriptions
(workspace_id, plan_id, platform, billing_period, subscription_status, stripe_subscription_id, current_period_start, current_period_end)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (workspace_id)
DO UPDATE SET
  plan_id = $2,
  subscription_status = $5,
  stripe_subscription_id = $6,
  current_period_start = $7,
  current_period_end = $8
`
	_, err := tx.ExecContext(ctx, q,
		r.WorkspaceID,
		r.PlanID,
		r.Platform,
		r.BillingPeriod,
		r.Status,
		r.StripeSubscriptionID,
		r.CurrentPeriodStart,
		r.CurrentPeriodEnd,
	)
	return err
}

func cancelByProviderID(ctx context.Context, tx *sql.Tx, stripeSubscriptionID string, now time.Time) error {
	const q = `
UPDATE user_subscriptions
SET subscription_status = $1, current_period_end = $2
WHERE stripe_subscription_id = $3
`
	res, err := tx.ExecContext(ctx, q, StatusCancelled, now, stripeSubscriptionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func byWorkspace(ctx context.Context, db *sql.DB, workspaceID string) (Record, error) {
	const q = `
SELECT workspace_id, plan_id, platform, billing_period, subscription_status, stripe_subscription_id, current_period_start, current_period_end
FROM user_subscriptions
WHERE workspace_id = $1
`
	var r Record
	if err := db.QueryRowContext(ctx, q, workspaceID).Scan(
		&r.WorkspaceID,
		&r.PlanID,
		&r.Platform,
		&r.BillingPeriod,
		&r.Status,
		&r.StripeSubscriptionID,
		&r.CurrentPeriodStart,
		&r.CurrentPeriodEnd,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return r, nil
}

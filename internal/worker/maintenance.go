package worker

import (
	"context"
	"time"

	"github.com/triggerline/triggerline/internal/logger"
	"github.com/triggerline/triggerline/internal/poller"
	"github.com/triggerline/triggerline/internal/subscription"
)

// PollSweepJob runs one polling sweep for a single provider.
type PollSweepJob struct {
	Poller   *poller.Poller
	Provider string
}

func (j *PollSweepJob) Process(ctx context.Context) error {
	if err := j.Poller.Sweep(ctx, j.Provider); err != nil {
		logger.FromContext(ctx).Error(LogMsgPollSweepFailed, "provider", j.Provider, "error", err)
		return err
	}
	return nil
}

// SubscriptionRetryJob re-attempts rate-limited registrations whose
// deferred retry is due.
type SubscriptionRetryJob struct {
	Subscriptions subscription.Service
}

func (j *SubscriptionRetryJob) Process(ctx context.Context) error {
	if err := j.Subscriptions.RetryPending(ctx, time.Now()); err != nil {
		logger.FromContext(ctx).Error(LogMsgRetrySweepFailed, "error", err)
		return err
	}
	return nil
}

// RegistrationRenewalJob re-registers push channels that lapse within the
// renewal window.
type RegistrationRenewalJob struct {
	Subscriptions subscription.Service
	Window        time.Duration
}

func (j *RegistrationRenewalJob) Process(ctx context.Context) error {
	if err := j.Subscriptions.RenewExpiring(ctx, j.Window); err != nil {
		logger.FromContext(ctx).Error(LogMsgRenewalSweepFailed, "error", err)
		return err
	}
	return nil
}

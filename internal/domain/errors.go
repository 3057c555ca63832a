package domain

import "errors"

// Error message string constants - single source of truth for error messages
// Use these in assert.Contains() checks when testing error messages
const (
	// Connection errors
	ErrMsgConnectionNotFound = "connection not found"
	ErrMsgUnknownProvider    = "unknown provider"

	// OAuth errors
	ErrMsgAuthExchangeFailed = "authorization code exchange failed"
	ErrMsgInvalidState       = "invalid or expired state"
	ErrMsgRefreshDenied      = "refresh token denied by provider"

	// Subscription errors
	ErrMsgSubscriptionNotFound  = "subscription not found"
	ErrMsgDuplicateSubscription = "subscription already exists"

	// Provider errors
	ErrMsgUnsupported      = "webhooks unsupported for this event type"
	ErrMsgRateLimited      = "provider rate limit exceeded"
	ErrMsgInvalidResource  = "invalid resource reference"
	ErrMsgTransientFailure = "transient provider failure"

	// Input errors
	ErrMsgInvalidInput = "invalid input"
)

// Common domain errors
// These errors should be used consistently across all layers of the application.
// Wrap these errors with fmt.Errorf("%w: %s", domain.ErrXxx, details) for additional context.
var (
	// Connection errors
	ErrConnectionNotFound = errors.New(ErrMsgConnectionNotFound)
	ErrUnknownProvider    = errors.New(ErrMsgUnknownProvider)

	// OAuth errors. AuthExchangeFailed is surfaced to the caller and never
	// retried; RefreshDenied flips the connection to Expired.
	ErrAuthExchangeFailed = errors.New(ErrMsgAuthExchangeFailed)
	ErrInvalidState       = errors.New(ErrMsgInvalidState)
	ErrRefreshDenied      = errors.New(ErrMsgRefreshDenied)

	// Subscription errors
	ErrSubscriptionNotFound  = errors.New(ErrMsgSubscriptionNotFound)
	ErrDuplicateSubscription = errors.New(ErrMsgDuplicateSubscription)

	// Provider call outcomes. Unsupported and InvalidResource are permanent
	// for a tuple; RateLimited earns one deferred retry on subscription
	// creation; TransientFailure is skipped and retried naturally on the
	// next tick or call.
	ErrUnsupported      = errors.New(ErrMsgUnsupported)
	ErrRateLimited      = errors.New(ErrMsgRateLimited)
	ErrInvalidResource  = errors.New(ErrMsgInvalidResource)
	ErrTransientFailure = errors.New(ErrMsgTransientFailure)

	// Validation errors
	ErrInvalidInput = errors.New(ErrMsgInvalidInput)
)

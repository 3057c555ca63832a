package handler

// Generic HTTP error messages for client responses.
// These messages intentionally do not expose internal error details for security reasons.
// Both handlers and tests should reference these constants to maintain consistency.
const (
	// HTTP status messages
	ErrMsgMethodNotAllowed      = "Method not allowed"
	ErrMsgInvalidRequest        = "Invalid request body"
	ErrMsgInvalidRequestSummary = "Invalid request"

	// Query parameter error messages
	ErrMsgMissingQueryParam = "Missing %s query parameter"

	// Connection operation error messages
	ErrMsgInitiateFailed   = "Failed to initiate authorization"
	ErrMsgCallbackFailed   = "Failed to complete authorization"
	ErrMsgDisconnectFailed = "Failed to disconnect"
	ErrMsgStatusFailed     = "Failed to retrieve connection status"

	// Subscription operation error messages
	ErrMsgCreateSubscriptionFailed = "Failed to create subscription"
	ErrMsgDeleteSubscriptionFailed = "Failed to delete subscription"
	ErrMsgListSubscriptionsFailed  = "Failed to list subscriptions"

	// Resolve endpoint error messages
	ErrMsgResolveFailed = "Failed to resolve delivery mode"

	// Inbound webhook error messages
	ErrMsgWebhookRejected = "Webhook rejected"
)

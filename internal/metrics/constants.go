package metrics

// Metric names
const (
	MetricNameHTTPRequestsTotal    = "triggerline_http_requests_total"
	MetricNameHTTPRequestDuration  = "triggerline_http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "triggerline_http_requests_in_flight"

	MetricNameEventsPublished    = "triggerline_events_published_total"
	MetricNameEventHandlerErrors = "triggerline_event_handler_errors_total"

	MetricNameWebhookDeliveries       = "triggerline_webhook_deliveries_total"
	MetricNameWebhookRejected         = "triggerline_webhook_rejected_total"
	MetricNameWebhookDuplicateDropped = "triggerline_webhook_duplicate_dropped_total"

	MetricNamePollSweeps      = "triggerline_poll_sweeps_total"
	MetricNamePollCalls       = "triggerline_poll_calls_total"
	MetricNamePollCallErrors  = "triggerline_poll_call_errors_total"
	MetricNamePollEventsFound = "triggerline_poll_events_found_total"

	MetricNameSubscriptionTransitions = "triggerline_subscription_transitions_total"
	MetricNameTokenRefreshes          = "triggerline_token_refreshes_total"

	MetricNameTriggerEventsForwarded = "triggerline_trigger_events_forwarded_total"
)

// Help texts
const (
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight = "Number of HTTP requests currently being served"

	HelpTextEventsPublished    = "Total number of events published to the bus"
	HelpTextEventHandlerErrors = "Total number of event handler errors"

	HelpTextWebhookDeliveries       = "Total number of verified inbound webhook deliveries"
	HelpTextWebhookRejected         = "Total number of inbound webhook deliveries rejected as unverifiable"
	HelpTextWebhookDuplicateDropped = "Total number of duplicate webhook deliveries dropped"

	HelpTextPollSweeps      = "Total number of polling sweeps per provider"
	HelpTextPollCalls       = "Total number of provider poll calls"
	HelpTextPollCallErrors  = "Total number of failed provider poll calls"
	HelpTextPollEventsFound = "Total number of events returned by polling"

	HelpTextSubscriptionTransitions = "Total number of subscription status transitions"
	HelpTextTokenRefreshes          = "Total number of access token refresh attempts"

	HelpTextTriggerEventsForwarded = "Total number of normalized trigger events forwarded to the bus"
)

// Label names
const (
	LabelMethod   = "method"
	LabelPath     = "path"
	LabelStatus   = "status"
	LabelType     = "type"
	LabelProvider = "provider"
	LabelOutcome  = "outcome"
	LabelMode     = "mode"
)

// HTTPLatencyBuckets defines the histogram buckets for HTTP request latency
var HTTPLatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

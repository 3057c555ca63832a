package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)
)

// Event Metrics
var (
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameEventsPublished,
			Help: HelpTextEventsPublished,
		},
		[]string{LabelType},
	)

	EventHandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameEventHandlerErrors,
			Help: HelpTextEventHandlerErrors,
		},
		[]string{LabelType},
	)
)

// Webhook Delivery Metrics
var (
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameWebhookDeliveries,
			Help: HelpTextWebhookDeliveries,
		},
		[]string{LabelProvider},
	)

	WebhookRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameWebhookRejected,
			Help: HelpTextWebhookRejected,
		},
		[]string{LabelProvider},
	)

	WebhookDuplicateDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameWebhookDuplicateDropped,
			Help: HelpTextWebhookDuplicateDropped,
		},
		[]string{LabelProvider},
	)
)

// Polling Metrics
var (
	PollSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNamePollSweeps,
			Help: HelpTextPollSweeps,
		},
		[]string{LabelProvider},
	)

	PollCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNamePollCalls,
			Help: HelpTextPollCalls,
		},
		[]string{LabelProvider},
	)

	PollCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNamePollCallErrors,
			Help: HelpTextPollCallErrors,
		},
		[]string{LabelProvider},
	)

	PollEventsFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNamePollEventsFound,
			Help: HelpTextPollEventsFound,
		},
		[]string{LabelProvider},
	)
)

// Lifecycle Metrics
var (
	SubscriptionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameSubscriptionTransitions,
			Help: HelpTextSubscriptionTransitions,
		},
		[]string{LabelProvider, LabelStatus},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameTokenRefreshes,
			Help: HelpTextTokenRefreshes,
		},
		[]string{LabelProvider, LabelOutcome},
	)

	TriggerEventsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameTriggerEventsForwarded,
			Help: HelpTextTriggerEventsForwarded,
		},
		[]string{LabelProvider, LabelMode},
	)
)

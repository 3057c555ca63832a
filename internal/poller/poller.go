// Package poller runs the fixed-interval polling sweeps that serve every
// tuple not covered by an active webhook. Providers are swept
// independently; within a sweep, calls for different connections run in
// parallel while calls for the same connection are serialized and rate
// limited.
package poller

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/event"
	"github.com/triggerline/triggerline/internal/logger"
	"github.com/triggerline/triggerline/internal/metrics"
	"github.com/triggerline/triggerline/internal/provider"
	"github.com/triggerline/triggerline/internal/repository"
	"github.com/triggerline/triggerline/internal/resolver"
)

// perConnectionRate spaces successive calls on the same connection.
const perConnectionRate = 500 * time.Millisecond

// defaultFirstPollLookback bounds the first poll window for a resource
// when no per-provider interval is configured.
const defaultFirstPollLookback = 5 * time.Minute

// ConnectionSource yields a connection whose access token is valid right
// now, refreshing lazily when the stored one has lapsed. Connections
// whose refresh is denied error and their tuples are skipped.
type ConnectionSource interface {
	GetFresh(ctx context.Context, userID, providerID string) (*domain.ServiceConnection, error)
}

// Poller sweeps one provider per Sweep call.
type Poller struct {
	triggers    repository.TriggerBinding
	connections ConnectionSource
	cursors     repository.PollCursor
	resolve     resolver.Service
	providers   *provider.Registry
	bus         event.Bus
	callTimeout time.Duration
	lookbackFor func(providerID string) time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// New creates a poller. lookbackFor supplies the per-provider poll
// interval used as the first-poll window; nil falls back to a fixed
// default.
func New(triggers repository.TriggerBinding, connections ConnectionSource, cursors repository.PollCursor, resolve resolver.Service, providers *provider.Registry, bus event.Bus, callTimeout time.Duration, lookbackFor func(providerID string) time.Duration) *Poller {
	if lookbackFor == nil {
		lookbackFor = func(string) time.Duration { return defaultFirstPollLookback }
	}
	return &Poller{
		triggers:    triggers,
		connections: connections,
		cursors:     cursors,
		resolve:     resolve,
		providers:   providers,
		bus:         bus,
		callTimeout: callTimeout,
		lookbackFor: lookbackFor,
		limiters:    make(map[string]*rate.Limiter),
		now:         time.Now,
	}
}

// resourceTarget is one poll call: a connection's resource plus the event
// types the sweep cares about. Tuples resolved to webhook are excluded
// before a target is formed.
type resourceTarget struct {
	conn       *domain.ServiceConnection
	resource   string
	eventTypes map[string]bool
}

// Sweep enumerates the provider's trigger-bound tuples, resolves their
// delivery mode and polls those on polling. Failures are isolated: one
// failing call never aborts the remainder of the sweep.
func (p *Poller) Sweep(ctx context.Context, providerID string) error {
	log := logger.FromContext(ctx)
	metrics.PollSweeps.WithLabelValues(providerID).Inc()

	adapter, err := p.providers.Get(providerID)
	if err != nil {
		return err
	}

	bindings, err := p.triggers.ListEnabledByProvider(ctx, providerID)
	if err != nil {
		return err
	}

	targets, err := p.collectTargets(ctx, providerID, bindings)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	// Group by connection: groups run in parallel, members in order.
	byConnection := make(map[string][]*resourceTarget)
	for _, t := range targets {
		byConnection[t.conn.ID] = append(byConnection[t.conn.ID], t)
	}

	var wg sync.WaitGroup
	for _, group := range byConnection {
		wg.Add(1)
		go func(group []*resourceTarget) {
			defer wg.Done()
			for _, target := range group {
				if err := p.pollOne(ctx, adapter, target); err != nil {
					metrics.PollCallErrors.WithLabelValues(providerID).Inc()
					log.Warn("Poll call failed, continuing sweep",
						"provider", providerID,
						"connection_id", target.conn.ID,
						"resource_ref", target.resource,
						"error", err)
				}
			}
		}(group)
	}
	wg.Wait()
	return nil
}

// collectTargets deduplicates bindings into per-resource poll targets,
// dropping tuples currently served by a webhook.
func (p *Poller) collectTargets(ctx context.Context, providerID string, bindings []domain.TriggerBinding) ([]*resourceTarget, error) {
	log := logger.FromContext(ctx)

	seen := make(map[domain.TupleKey]bool)
	targets := make(map[string]*resourceTarget) // key: connID + "\x00" + resource
	var ordered []*resourceTarget

	for _, b := range bindings {
		key := domain.TupleKey{Provider: providerID, ResourceRef: b.ResourceRef, EventType: b.EventType}
		if seen[key] {
			continue
		}
		seen[key] = true

		mode, err := p.resolve.Resolve(ctx, providerID, b.ResourceRef, b.EventType)
		if err != nil {
			log.Warn("Resolve failed, defaulting tuple to polling",
				"provider", providerID, "resource_ref", b.ResourceRef, "error", err)
		}
		if mode == domain.DeliveryWebhook {
			continue
		}

		// GetFresh refreshes an expired token behind the scenes; only a
		// missing connection or a denied refresh skips the tuple.
		conn, err := p.connections.GetFresh(ctx, b.UserID, providerID)
		if err != nil {
			log.Warn("No usable connection for binding, skipping tuple",
				"provider", providerID, "user_id", b.UserID, "resource_ref", b.ResourceRef, "error", err)
			continue
		}

		mapKey := conn.ID + "\x00" + b.ResourceRef
		target, ok := targets[mapKey]
		if !ok {
			target = &resourceTarget{conn: conn, resource: b.ResourceRef, eventTypes: make(map[string]bool)}
			targets[mapKey] = target
			ordered = append(ordered, target)
		}
		target.eventTypes[b.EventType] = true
	}

	return ordered, nil
}

// pollOne performs a single bounded provider call and forwards matching
// events. The cursor only advances after a fully successful call, so a
// failed poll retries the same window next tick.
func (p *Poller) pollOne(ctx context.Context, adapter provider.Adapter, target *resourceTarget) error {
	providerID := adapter.Name()

	if err := p.limiter(target.conn.ID).Wait(ctx); err != nil {
		return err
	}

	callStart := p.now()
	since, ok, err := p.cursors.Get(ctx, target.conn.ID, target.resource)
	if err != nil {
		return err
	}
	if !ok {
		// First poll for this resource: look back one poll interval
		// rather than replaying unbounded history.
		since = callStart.Add(-p.lookbackFor(providerID))
	}

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	metrics.PollCalls.WithLabelValues(providerID).Inc()
	events, err := adapter.PollRecentEvents(callCtx, target.conn, target.resource, since)
	if err != nil {
		return err
	}

	for _, ev := range events {
		if !target.eventTypes[ev.EventType] {
			continue
		}
		metrics.PollEventsFound.WithLabelValues(providerID).Inc()
		if err := p.bus.Publish(ctx, event.NewTriggerEvent(ev, domain.DeliveryPolling)); err != nil {
			logger.FromContext(ctx).Error("Failed to forward polled event",
				"provider", providerID, "delivery_id", ev.DeliveryID, "error", err)
		}
	}

	return p.cursors.Set(ctx, target.conn.ID, target.resource, callStart)
}

func (p *Poller) limiter(connectionID string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[connectionID]
	if !ok {
		l = rate.NewLimiter(rate.Every(perConnectionRate), 1)
		p.limiters[connectionID] = l
	}
	return l
}

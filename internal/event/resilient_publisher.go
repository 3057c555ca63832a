package event

import (
	"context"
	"sync"
	"time"

	"github.com/triggerline/triggerline/internal/logger"
)

// retryEntry tracks one event moving through the retry queue.
type retryEntry struct {
	event    Event
	attempts int
	lastErr  error
}

// ResilientPublisher wraps a Bus with a bounded retry queue and a
// dead-letter file. A failed publish is handed to a background worker
// that retries with exponential backoff; events that exhaust their
// retries, or that arrive while the queue is full, go to dead-letter.
type ResilientPublisher struct {
	bus        Bus
	retryQueue chan retryEntry
	maxRetries int
	retryDelay time.Duration
	deadLetter *DeadLetterWriter
	shutdown   chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewResilientPublisher creates a publisher with a retry worker running.
func NewResilientPublisher(bus Bus, maxRetries int, retryDelay time.Duration, deadLetterPath string) (*ResilientPublisher, error) {
	deadLetter, err := NewDeadLetterWriter(deadLetterPath)
	if err != nil {
		return nil, err
	}

	rp := &ResilientPublisher{
		bus:        bus,
		retryQueue: make(chan retryEntry, RetryQueueBufferSize),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		deadLetter: deadLetter,
		shutdown:   make(chan struct{}),
	}

	rp.wg.Add(1)
	go rp.retryWorker()

	return rp, nil
}

// PublishWithRetry attempts a synchronous publish and, on failure, queues
// the event for background retry. It never blocks on the retry path: a
// full queue drops the event straight to dead-letter.
func (rp *ResilientPublisher) PublishWithRetry(ctx context.Context, event Event) {
	err := rp.bus.Publish(ctx, event)
	if err == nil {
		return
	}

	logger.Warn(LogMsgEventPublishFailed,
		"event_type", event.Type,
		"error", err)

	rp.enqueue(retryEntry{event: event, attempts: 1, lastErr: err})
}

// Publish satisfies Bus so the publisher can stand in anywhere a bus is
// expected. Failures are absorbed by the retry queue, so the returned
// error is always nil.
func (rp *ResilientPublisher) Publish(ctx context.Context, event Event) error {
	rp.PublishWithRetry(ctx, event)
	return nil
}

// Subscribe delegates to the wrapped bus.
func (rp *ResilientPublisher) Subscribe(eventType Type, handler Handler) {
	rp.bus.Subscribe(eventType, handler)
}

func (rp *ResilientPublisher) enqueue(entry retryEntry) {
	select {
	case rp.retryQueue <- entry:
	default:
		logger.Error(LogMsgRetryQueueFull, "event_type", entry.event.Type)
		if err := rp.deadLetter.Write(entry.event, entry.attempts, entry.lastErr); err != nil {
			logger.Error(LogMsgDeadLetterWriteFailed, "error", err)
		}
	}
}

// retryWorker drains the retry queue until shutdown, then flushes what
// remains with one immediate attempt each.
func (rp *ResilientPublisher) retryWorker() {
	defer rp.wg.Done()

	for {
		select {
		case entry := <-rp.retryQueue:
			rp.processRetry(entry)
		case <-rp.shutdown:
			rp.drainQueue()
			return
		}
	}
}

func (rp *ResilientPublisher) processRetry(entry retryEntry) {
	// Backoff before the attempt; a shutdown cuts the wait short and
	// the attempt happens immediately.
	select {
	case <-time.After(CalculateRetryDelay(rp.retryDelay, entry.attempts)):
	case <-rp.shutdown:
	}

	err := rp.bus.Publish(context.Background(), entry.event)
	if err == nil {
		logger.Info(LogMsgEventRetrySucceeded,
			"event_type", entry.event.Type,
			"attempt", entry.attempts)
		return
	}

	entry.attempts++
	entry.lastErr = err

	if entry.attempts > rp.maxRetries {
		logger.Warn(LogMsgEventRetryExhausted,
			"event_type", entry.event.Type,
			"attempts", entry.attempts)
		if werr := rp.deadLetter.Write(entry.event, entry.attempts, err); werr != nil {
			logger.Error(LogMsgDeadLetterWriteFailed, "error", werr)
		}
		return
	}

	logger.Warn(LogMsgEventRetryFailed,
		"event_type", entry.event.Type,
		"attempt", entry.attempts,
		"error", err)
	rp.enqueue(entry)
}

func (rp *ResilientPublisher) drainQueue() {
	for {
		select {
		case entry := <-rp.retryQueue:
			if err := rp.bus.Publish(context.Background(), entry.event); err != nil {
				logger.Warn(LogMsgEventDroppedShutdown,
					"event_type", entry.event.Type,
					"error", err)
				if werr := rp.deadLetter.Write(entry.event, entry.attempts, err); werr != nil {
					logger.Error(LogMsgDeadLetterWriteFailedS, "error", werr)
				}
			}
		default:
			logger.Info(LogMsgQueueDrainedShutdown)
			return
		}
	}
}

// Shutdown stops the retry worker, waits for the queue to drain and
// closes the dead-letter file. A cancelled context abandons the wait.
func (rp *ResilientPublisher) Shutdown(ctx context.Context) error {
	rp.closeOnce.Do(func() { close(rp.shutdown) })

	done := make(chan struct{})
	go func() {
		rp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return rp.deadLetter.Close()
	case <-ctx.Done():
		logger.Warn(LogMsgShutdownTimeout)
		return ctx.Err()
	}
}

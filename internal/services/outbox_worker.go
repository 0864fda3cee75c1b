package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chat-requests/internal/domain/event"
	"chat-requests/internal/events"
	"chat-requests/internal/repository"
	"chat-requests/pkg/logger"

	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 5
	maxRetryBackoff   = 5 * time.Minute
)

// OutboxWorker polls the outbox table and publishes events to Redis
type OutboxWorker struct {
	eventRepo repository.EventRepository
	eventBus  events.EventBus
	log       *logger.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewOutboxWorker(eventRepo repository.EventRepository, eventBus events.EventBus, l *logger.Logger, interval time.Duration, batchSize int) *OutboxWorker {
	if l == nil {
		l = logger.NewNop()
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxWorker{
		eventRepo: eventRepo,
		eventBus:  eventBus,
		log:       l,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the worker loop
func (w *OutboxWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop gracefully shuts down
func (w *OutboxWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

func (w *OutboxWorker) run(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *OutboxWorker) processBatch(ctx context.Context) int {
	pending, err := w.eventRepo.GetPendingOutboxEvents(ctx, w.batchSize)
	if err != nil {
		w.log.Errorf("outbox: load pending events: %v", err)
		return 0
	}

	published := 0
	for i := range pending {
		if w.processEvent(ctx, &pending[i]) {
			published++
		}
	}
	return published
}

func (w *OutboxWorker) processEvent(ctx context.Context, e *event.OutboxEvent) bool {
	env := events.Envelope{
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID.String(),
		OccurredAt:    e.CreatedAt,
		Payload:       json.RawMessage(e.Payload),
	}

	if err := w.eventBus.Publish(ctx, env); err != nil {
		next := w.now().Add(retryBackoff(e.RetryCount))
		if markErr := w.eventRepo.MarkOutboxEventFailed(ctx, e.ID, next, err.Error()); markErr != nil {
			w.log.Errorf("outbox: mark event %s failed: %v", e.ID, markErr)
		}
		w.log.Logger.Warn("outbox publish failed",
			zap.String("event_id", e.ID.String()),
			zap.String("event_type", e.EventType),
			zap.Int("retry_count", e.RetryCount+1),
			zap.Error(err),
		)
		return false
	}

	if err := w.eventRepo.MarkOutboxEventProcessed(ctx, e.ID); err != nil {
		w.log.Errorf("outbox: mark event %s processed: %v", e.ID, err)
		return false
	}
	return true
}

// retryBackoff doubles from one second per attempt, capped at maxRetryBackoff.
func retryBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > 16 {
		return maxRetryBackoff
	}
	d := time.Second << retryCount
	if d > maxRetryBackoff {
		return maxRetryBackoff
	}
	return d
}

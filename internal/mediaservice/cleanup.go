package mediaservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/exp/rand"

	"github.com/sushihentaime/postboard/internal/common"
)

func NewCleanupPublisher(mb common.MessageProducer) *CleanupPublisher {
	return &CleanupPublisher{mb: mb}
}

// ScheduleCleanup queues url for a later delete attempt.
func (p *CleanupPublisher) ScheduleCleanup(ctx context.Context, url string) error {
	body, err := json.Marshal(cleanupRequest{URL: url})
	if err != nil {
		return err
	}

	if err := p.mb.Publish(ctx, body, common.MediaCleanupKey, common.MediaExchange); err != nil {
		return fmt.Errorf("could not schedule cleanup of %s: %w", url, err)
	}

	return nil
}

func NewCleanupWorker(mb common.MessageConsumer, gw Gateway, logger *slog.Logger) *CleanupWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &CleanupWorker{
		mb:         mb,
		gw:         gw,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		maxRetries: 5,
		baseDelay:  500 * time.Millisecond,
		sleep:      time.Sleep,
	}
}

// Start consumes cleanup requests until Close is called.
func (w *CleanupWorker) Start() {
	msgs, err := w.mb.Consume(common.MediaCleanupKey, common.MediaExchange, common.MediaCleanupQueue)
	if err != nil {
		w.logger.Error("could not consume message", slog.String("error", err.Error()))
		return
	}

	go w.process(msgs)
}

func (w *CleanupWorker) process(msgs <-chan amqp.Delivery) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var req cleanupRequest
			if err := json.Unmarshal(msg.Body, &req); err != nil || req.URL == "" {
				w.logger.Error("could not unmarshal cleanup request", slog.String("body", string(msg.Body)))
				msg.Ack(false)
				continue
			}

			if w.delete(req.URL) {
				w.logger.Info("orphaned asset removed", slog.String("url", req.URL))
			} else {
				w.logger.Error("could not remove orphaned asset", slog.String("url", req.URL))
			}
			msg.Ack(false)

		case <-w.ctx.Done():
			w.logger.Info("stopping cleanup worker due to context cancellation")
			return
		}
	}
}

// delete retries with exponential backoff and jitter.
func (w *CleanupWorker) delete(url string) bool {
	for attempt := 0; attempt < w.maxRetries; attempt++ {
		err := w.gw.Delete(w.ctx, url)
		if err == nil {
			return true
		}

		if w.ctx.Err() != nil {
			return false
		}

		delay := time.Duration(rand.Int63n(int64(w.baseDelay) << uint(attempt)))
		w.logger.Info("delaying asset cleanup", slog.String("url", url), slog.Int("attempt", attempt), slog.Duration("delay", delay), slog.String("error", err.Error()))
		w.sleep(delay)
	}

	return false
}

func (w *CleanupWorker) Close() {
	w.cancel()
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/projectdesk/projectdesk/internal/cache"
	"github.com/projectdesk/projectdesk/internal/metrics"
	"github.com/projectdesk/projectdesk/internal/model"
)

const (
	// ConsumerGroup is the Redis consumer group shared by all notifiers.
	ConsumerGroup = "query_notifiers"

	// EventProjectQuery is the event name sent for a raised query.
	EventProjectQuery = "project.query"

	DefaultBatchSize       = 20
	DefaultBlockTimeout    = 5 * time.Second
	DefaultClaimInterval   = 30 * time.Second
	DefaultClaimIdle       = 2 * time.Minute
	DefaultMetricsInterval = 15 * time.Second

	deadLetterMaxLen = 1000
)

// Config holds the webhook target of a Worker.
type Config struct {
	TargetURL   string
	Secret      string
	MaxAttempts int
	ConsumerID  string
}

// Event is the JSON body POSTed to the webhook.
type Event struct {
	Event      string             `json:"event"`
	DeliveryID string             `json:"deliveryId"`
	Query      model.ProjectQuery `json:"query"`
}

// Worker reads raised queries from the query stream and posts each one to
// the manager webhook. Entries that cannot be delivered are copied to a
// dead-letter stream and acknowledged.
type Worker struct {
	redis      *redis.Client
	stream     string
	deadLetter string
	http       *http.Client
	cfg        Config
	logger     *slog.Logger
	metrics    metrics.Recorder
	backoff    func(attempt int) time.Duration

	batchSize       int
	blockTimeout    time.Duration
	claimInterval   time.Duration
	claimIdle       time.Duration
	metricsInterval time.Duration
	claimStartID    string
	lastClaim       time.Time
	lastMetrics     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a notifier consuming stream.
func NewWorker(client *redis.Client, stream string, cfg Config, logger *slog.Logger, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.ConsumerID == "" {
		cfg.ConsumerID = NewConsumerID()
	}
	return &Worker{
		redis:      client,
		stream:     stream,
		deadLetter: stream + ":dead",
		http:       NewHTTPClient(),
		cfg:        cfg,
		logger: logger.With("component", "notify.worker",
			"consumer_id", cfg.ConsumerID,
			"target_host", TargetHost(cfg.TargetURL)),
		metrics:         recorder,
		backoff:         RetryDelay,
		batchSize:       DefaultBatchSize,
		blockTimeout:    DefaultBlockTimeout,
		claimInterval:   DefaultClaimInterval,
		claimIdle:       DefaultClaimIdle,
		metricsInterval: DefaultMetricsInterval,
		claimStartID:    "0-0",
	}
}

// DeadLetterStream is the stream undeliverable queries are copied to.
func (w *Worker) DeadLetterStream() string {
	return w.deadLetter
}

// SetHTTPClient replaces the delivery client.
func (w *Worker) SetHTTPClient(c *http.Client) {
	if c != nil {
		w.http = c
	}
}

// SetRetryBackoff replaces the wait between attempts.
func (w *Worker) SetRetryBackoff(fn func(attempt int) time.Duration) {
	if fn != nil {
		w.backoff = fn
	}
}

// SetBlockTimeout overrides how long a read waits for new entries.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetClaimIdle overrides how long an entry stays pending before another
// consumer takes it over.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// Run consumes the stream until ctx is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("query notifier started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()
		if draining {
			w.logger.Info("query notifier draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("query notifier stopping")
			return nil
		default:
		}

		if err := w.processOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("process error", "error", err)
			sleep(ctx, time.Second)
		}
	}
}

// Shutdown stops Run and waits for it to return. Entries not yet
// acknowledged stay pending and are claimed on the next start.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		w.logger.Info("query notifier shutdown complete")
		return nil
	case <-ctx.Done():
		w.logger.Warn("query notifier shutdown timed out")
		return ctx.Err()
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	// "$": queries raised before the first notifier started are not announced.
	err := w.redis.XGroupCreateMkStream(ctx, w.stream, ConsumerGroup, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateBacklog(ctx)

	messages, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending queries", "error", err)
	}
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}

	for _, msg := range messages {
		if err := w.handle(ctx, msg); err != nil {
			return err
		}
		if err := w.redis.XAck(ctx, w.stream, ConsumerGroup, msg.ID).Err(); err != nil {
			return fmt.Errorf("xack: %w", err)
		}
	}
	return nil
}

func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.cfg.ConsumerID,
		Streams:  []string{w.stream, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	return streams[0].Messages, nil
}

func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}
	w.lastClaim = time.Now()

	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   w.stream,
		Group:    ConsumerGroup,
		Consumer: w.cfg.ConsumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

func (w *Worker) maybeUpdateBacklog(ctx context.Context) {
	if !w.lastMetrics.IsZero() && time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, w.stream).Result()
	if err != nil {
		w.logger.Warn("failed to read stream group info", "error", err)
		return
	}
	for _, g := range groups {
		if g.Name == ConsumerGroup {
			w.metrics.SetNotificationBacklog(g.Pending + g.Lag)
			return
		}
	}
}

// handle delivers one entry, retrying with backoff. It only returns an
// error when ctx ends; the entry must then stay unacknowledged.
func (w *Worker) handle(ctx context.Context, msg redis.XMessage) error {
	q, ok := cache.DecodeQuery(msg)
	if !ok {
		w.deadLetterMessage(ctx, msg, "invalid_format", "payload missing or malformed")
		return nil
	}

	body, err := json.Marshal(Event{Event: EventProjectQuery, DeliveryID: msg.ID, Query: q})
	if err != nil {
		w.deadLetterMessage(ctx, msg, "marshal_error", err.Error())
		return nil
	}

	for attempt := 1; ; attempt++ {
		status, err := w.deliver(ctx, msg.ID, body)
		if err == nil {
			w.metrics.IncQueryNotification("delivered")
			w.logger.Info("query delivered",
				"delivery_id", msg.ID,
				"project_id", q.ProjectID,
				"attempt", attempt,
			)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if isPermanent(status) || IsExhausted(attempt, w.cfg.MaxAttempts) {
			w.deadLetterMessage(ctx, msg, "delivery_failed", err.Error())
			return nil
		}

		w.metrics.IncQueryNotification("retried")
		delay := w.backoff(attempt)
		w.logger.Warn("query delivery failed, retrying",
			"delivery_id", msg.ID,
			"attempt", attempt,
			"backoff_ms", delay.Milliseconds(),
			"error", err,
		)
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

// deliver posts one signed body. status is 0 when no response arrived.
func (w *Worker) deliver(ctx context.Context, deliveryID string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.TargetURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	timestamp := time.Now().Unix()
	setHeaders(req, Sign(w.cfg.Secret, timestamp, body), strconv.FormatInt(timestamp, 10), deliveryID)

	resp, err := w.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// isPermanent reports responses that retrying will not fix.
func isPermanent(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}

func (w *Worker) deadLetterMessage(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering query",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: w.deadLetter,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"reason":           reason,
			"detail":           detail,
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("failed to write dead-letter entry", "message_id", msg.ID, "error", err)
	}

	w.metrics.IncQueryNotification("dead_lettered")
}

// sleep waits d or until ctx ends. It reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

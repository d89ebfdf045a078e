package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// EventToggled is sent in X-Silencegate-Event.
	EventToggled = "receiver.toggled"

	hookQueueSize       = 16
	maxResponseBodySize = 1024
)

// Payload is the body posted to the hook.
type Payload struct {
	DeliveryID string    `json:"delivery_id"`
	Event      string    `json:"event"`
	Running    bool      `json:"running"`
	OccurredAt time.Time `json:"occurred_at"`
}

// HookConfig configures a HookToggle.
type HookConfig struct {
	URL        string
	Secret     string
	MaxRetries int
	Timeout    time.Duration
	// Backoff is the first retry delay; it doubles on every attempt.
	Backoff time.Duration
}

// HookToggle reports receiver state changes to an HTTP endpoint. Only changes
// are delivered; deliveries run on one background worker in order.
type HookToggle struct {
	cfg    HookConfig
	client *http.Client
	log    zerolog.Logger

	mu   sync.Mutex
	last *bool

	queue  chan Payload
	stop   chan struct{}
	done   chan struct{}
	closed int32

	delivered atomic.Int64
	failed    atomic.Int64
}

// NewHookToggle starts the delivery worker.
func NewHookToggle(cfg HookConfig, log zerolog.Logger) *HookToggle {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	h := &HookToggle{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.With().Str("component", "receiver_hook").Logger(),
		queue:  make(chan Payload, hookQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go h.worker()
	return h
}

// SetReceiverRunning queues a delivery when running differs from the last
// queued state. It never blocks.
func (h *HookToggle) SetReceiverRunning(ctx context.Context, running bool) {
	if atomic.LoadInt32(&h.closed) == 1 {
		return
	}

	h.mu.Lock()
	if h.last != nil && *h.last == running {
		h.mu.Unlock()
		return
	}
	h.last = &running
	h.mu.Unlock()

	p := Payload{
		DeliveryID: uuid.NewString(),
		Event:      EventToggled,
		Running:    running,
		OccurredAt: time.Now().UTC(),
	}
	select {
	case h.queue <- p:
	default:
		h.log.Error().Bool("running", running).Int("queue_size", hookQueueSize).Msg("queue full, dropping delivery")
		h.mu.Lock()
		h.last = nil // force the next call through
		h.mu.Unlock()
	}
}

func (h *HookToggle) worker() {
	defer close(h.done)
	for {
		select {
		case p := <-h.queue:
			h.deliverWithRetry(p)
		case <-h.stop:
			for {
				select {
				case p := <-h.queue:
					h.deliverWithRetry(p)
				default:
					return
				}
			}
		}
	}
}

func (h *HookToggle) deliverWithRetry(p Payload) {
	body, err := json.Marshal(p)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal payload")
		h.failed.Add(1)
		return
	}
	signature := ComputeHMAC(body, h.cfg.Secret)

	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		status, err := h.post(body, signature, p.DeliveryID)
		if err == nil {
			h.delivered.Add(1)
			h.log.Info().Str("delivery_id", p.DeliveryID).Bool("running", p.Running).
				Int("status", status).Int("attempt", attempt+1).Msg("delivery succeeded")
			return
		}

		if attempt == h.cfg.MaxRetries {
			h.failed.Add(1)
			h.log.Error().Err(err).Str("delivery_id", p.DeliveryID).Int("attempts", attempt+1).Msg("delivery failed permanently")
			return
		}

		backoff := h.cfg.Backoff << attempt
		h.log.Warn().Err(err).Str("delivery_id", p.DeliveryID).Int("attempt", attempt+1).
			Dur("retry_in", backoff).Msg("delivery failed")
		select {
		case <-time.After(backoff):
		case <-h.stop:
			// Shutting down: one last attempt without waiting.
		}
	}
}

func (h *HookToggle) post(body []byte, signature, deliveryID string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Silencegate-Signature", signature)
	req.Header.Set("X-Silencegate-Event", EventToggled)
	req.Header.Set("X-Silencegate-Delivery", deliveryID)

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("hook returned %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Delivered counts successful deliveries.
func (h *HookToggle) Delivered() int64 { return h.delivered.Load() }

// Failed counts deliveries that exhausted their retries.
func (h *HookToggle) Failed() int64 { return h.failed.Load() }

// Close delivers what is queued and stops the worker. Safe to call more than once.
func (h *HookToggle) Close() error {
	if !atomic.CompareAndSwapInt32(&h.closed, 0, 1) {
		return nil
	}
	close(h.stop)
	<-h.done
	return nil
}

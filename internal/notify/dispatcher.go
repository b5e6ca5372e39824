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
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"
	"github.com/sony/gobreaker/v2"

	"github.com/cheamigo/cheamigo/pkg/events"
)

// DispatcherConfig holds delivery settings.
type DispatcherConfig struct {
	MaxAttempts    int
	Timeout        time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// BreakerFailures consecutive failures open a subscription's breaker
	// for BreakerCooldown.
	BreakerFailures int
	BreakerCooldown time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = time.Second
	}
	if c.BackoffMax < c.BackoffInitial {
		c.BackoffMax = 300 * time.Second
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = time.Minute
	}
	return c
}

// statusError is a non-2xx answer from an endpoint.
type statusError struct{ code int }

func (e statusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }

// Dispatcher posts signed event envelopes to subscriptions, retrying with
// exponential backoff behind a per-subscription circuit breaker.
type Dispatcher struct {
	store  Store
	client *http.Client
	cfg    DispatcherConfig
	pool   workerpool.WorkerPool
	check  URLChecker

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[int]
}

// NewDispatcher creates a dispatcher. pool may be nil.
func NewDispatcher(store Store, cfg DispatcherConfig, pool workerpool.WorkerPool, check URLChecker) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		store: store,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg:      cfg,
		pool:     pool,
		check:    check,
		breakers: make(map[string]*gobreaker.CircuitBreaker[int]),
	}
}

// BreakerState reports the breaker state of a subscription.
func (d *Dispatcher) BreakerState(subscriptionID string) string {
	return d.breaker(subscriptionID).State().String()
}

func (d *Dispatcher) breaker(id string) *gobreaker.CircuitBreaker[int] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[id]; ok {
		return cb
	}
	failures := uint32(d.cfg.BreakerFailures)
	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        id,
		MaxRequests: 1,
		Timeout:     d.cfg.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("notify breaker state changed",
				slog.String("subscription_id", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	d.breakers[id] = cb
	return cb
}

// Forget drops the breaker of a deleted subscription.
func (d *Dispatcher) Forget(subscriptionID string) {
	d.mu.Lock()
	delete(d.breakers, subscriptionID)
	d.mu.Unlock()
}

// Dispatch delivers env to sub, retrying in the background on failure.
func (d *Dispatcher) Dispatch(ctx context.Context, sub Subscription, env events.Envelope) {
	d.attempt(ctx, sub, env, 1)
}

// Send makes a single delivery attempt and returns its outcome without
// scheduling retries.
func (d *Dispatcher) Send(ctx context.Context, sub Subscription, env events.Envelope) (Delivery, error) {
	return d.send(ctx, sub, env, 1)
}

func (d *Dispatcher) attempt(ctx context.Context, sub Subscription, env events.Envelope, n int) {
	rec, err := d.send(ctx, sub, env, n)
	if err == nil {
		return
	}
	if n >= d.cfg.MaxAttempts || rec.Outcome == OutcomeDropped {
		slog.WarnContext(ctx, "notification abandoned",
			slog.String("subscription_id", sub.ID),
			slog.String("event_id", env.ID),
			slog.Int("attempts", n),
			slog.String("error", err.Error()))
		return
	}

	wait := d.backoff(n)
	retry := func() {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			d.attempt(ctx, sub, env, n+1)
		}
	}
	if d.pool != nil {
		if err := d.pool.Submit(ctx, retry); err != nil {
			slog.WarnContext(ctx, "notify retry not scheduled",
				slog.String("subscription_id", sub.ID), slog.Int("attempt", n))
		}
		return
	}
	go retry()
}

func (d *Dispatcher) backoff(n int) time.Duration {
	wait := d.cfg.BackoffInitial << (n - 1)
	if wait <= 0 || wait > d.cfg.BackoffMax {
		return d.cfg.BackoffMax
	}
	return wait
}

func (d *Dispatcher) send(ctx context.Context, sub Subscription, env events.Envelope, n int) (Delivery, error) {
	rec := Delivery{
		SubscriptionID: sub.ID,
		EventID:        env.ID,
		EventType:      string(env.Type),
		Attempt:        n,
		AttemptedAt:    time.Now().UTC(),
	}

	err := d.check.Check(ctx, sub.URL)
	if err != nil {
		rec.Outcome = OutcomeDropped
		rec.Error = err.Error()
		d.record(ctx, &rec)
		return rec, err
	}

	body, err := json.Marshal(env)
	if err != nil {
		rec.Outcome = OutcomeDropped
		rec.Error = err.Error()
		d.record(ctx, &rec)
		return rec, err
	}

	start := time.Now()
	code, err := d.breaker(sub.ID).Execute(func() (int, error) {
		return d.post(ctx, sub, env, body)
	})
	rec.DurationMs = time.Since(start).Milliseconds()
	rec.StatusCode = code

	switch {
	case err == nil:
		rec.Outcome = OutcomeDelivered
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		rec.Outcome = OutcomeFailed
		rec.Error = "circuit open"
	default:
		rec.Outcome = OutcomeFailed
		rec.Error = err.Error()
	}
	d.record(ctx, &rec)
	return rec, err
}

func (d *Dispatcher) post(ctx context.Context, sub Subscription, env events.Envelope, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(sub.Secret, body))
	req.Header.Set(EventHeader, string(env.Type))
	req.Header.Set(DeliveryHeader, env.ID)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, statusError{code: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

func (d *Dispatcher) record(ctx context.Context, rec *Delivery) {
	if d.store == nil {
		return
	}
	if err := d.store.RecordDelivery(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "record notification delivery failed", slog.String("error", err.Error()))
	}
}

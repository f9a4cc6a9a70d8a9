package notify

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// ErrRateLimited is reported when a target exceeded its delivery budget
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrNoSender is reported for channels without a configured sender
var ErrNoSender = errors.New("no sender configured for channel")

// Sender delivers a message to one target over one transport
type Sender interface {
	Send(ctx context.Context, target string, msg Message) error
}

// Dispatcher is the delivery contract the services depend on
type Dispatcher interface {
	Send(ctx context.Context, channel model.Channel, target string, msg Message) Result
	Broadcast(ctx context.Context, targets []Target, msg Message) []Result
}

// Target is one channel/address pair
type Target struct {
	Channel model.Channel `json:"channel"`
	Address string        `json:"address"`
}

// Result reports the delivery outcome for one target
type Result struct {
	Channel  model.Channel `json:"channel"`
	Target   string        `json:"-"`
	Success  bool          `json:"success"`
	Attempts int           `json:"attempts"`
	Err      error         `json:"-"`
}

// Error returns the failure message, or an empty string on success
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Router dispatches messages to per-channel senders with retries and a
// per-target rate limit.
type Router struct {
	mu         sync.RWMutex
	senders    map[model.Channel]Sender
	limiter    RateLimiter
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewRouter creates a Router. A nil limiter allows every send.
func NewRouter(limiter RateLimiter, maxRetries int, backoff time.Duration, logger *zap.Logger) *Router {
	if limiter == nil {
		limiter = NoLimit{}
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Router{
		senders:    make(map[model.Channel]Sender),
		limiter:    limiter,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// Register installs the sender for a channel
func (r *Router) Register(channel model.Channel, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[channel] = sender
}

// Channels lists the channels with a sender
func (r *Router) Channels() []model.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Channel, 0, len(r.senders))
	for ch := range r.senders {
		out = append(out, ch)
	}
	return out
}

// Send delivers msg to target over channel, retrying transient failures
func (r *Router) Send(ctx context.Context, channel model.Channel, target string, msg Message) Result {
	res := Result{Channel: channel, Target: target}

	r.mu.RLock()
	sender, ok := r.senders[channel]
	r.mu.RUnlock()
	if !ok {
		res.Err = &apperr.DispatchError{Channel: string(channel), Target: target, Err: ErrNoSender}
		return res
	}

	allowed, err := r.limiter.Allow(ctx, string(channel)+":"+target)
	if err != nil {
		r.logger.Warn("Rate limiter unavailable, allowing send",
			zap.String("channel", string(channel)),
			zap.Error(err))
		allowed = true
	}
	if !allowed {
		res.Err = &apperr.DispatchError{Channel: string(channel), Target: target, Err: ErrRateLimited}
		return res
	}

	backoff := r.backoff
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}

		res.Attempts++
		err = sender.Send(ctx, target, msg)
		if err == nil {
			res.Success = true
			r.logger.Debug("Notification delivered",
				zap.String("channel", string(channel)),
				zap.String("medication_id", msg.MedicationID),
				zap.Int("attempts", res.Attempts))
			return res
		}

		if !IsRetryable(err) || attempt == r.maxRetries {
			break
		}

		sleepFor := jitter(backoff)
		r.logger.Warn("Notification send retrying",
			zap.String("channel", string(channel)),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", r.maxRetries),
			zap.Duration("sleep", sleepFor),
			zap.Error(err))

		select {
		case <-ctx.Done():
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}

	r.logger.Warn("Notification delivery failed",
		zap.String("channel", string(channel)),
		zap.String("medication_id", msg.MedicationID),
		zap.Int("attempts", res.Attempts),
		zap.Error(err))
	res.Err = &apperr.DispatchError{Channel: string(channel), Target: target, Err: err}
	return res
}

// Broadcast sends msg to every target concurrently. Results keep the order
// of targets.
func (r *Router) Broadcast(ctx context.Context, targets []Target, msg Message) []Result {
	results := make([]Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = r.Send(gctx, t.Channel, t.Address, msg)
			return nil
		})
	}
	// Sends never return errors; failures live in results.
	_ = g.Wait()
	return results
}

// PermanentError marks a failure that retrying cannot fix
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as non-retryable
func Permanent(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// HTTPError is a non-2xx response from a delivery API
type HTTPError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s http %d: %s", e.Service, e.StatusCode, body)
}

// IsRetryable reports whether err is worth another attempt
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		code := httpErr.StatusCode
		return code == 408 || code == 429 || (code >= 500 && code <= 599)
	}
	return true
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := float64(base) * 0.2
	return time.Duration(float64(base) - delta + rand.Float64()*2*delta)
}

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// fakeSender fails the first failures calls with err, then succeeds
type fakeSender struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	targets  []string
}

func (f *fakeSender) Send(_ context.Context, target string, _ Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.targets = append(f.targets, target)
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func testMessage() Message {
	return Message{Kind: KindReminder, Subject: "Time to take Metformin", MedicationID: "med-1"}
}

func TestRouter_Send(t *testing.T) {
	t.Run("delivers on first attempt", func(t *testing.T) {
		// Arrange
		sender := &fakeSender{}
		router := NewRouter(nil, 3, time.Millisecond, zap.NewNop())
		router.Register(model.ChannelEmail, sender)

		// Act
		res := router.Send(context.Background(), model.ChannelEmail, "a@example.com", testMessage())

		// Assert
		assert.True(t, res.Success)
		assert.Equal(t, 1, res.Attempts)
		assert.NoError(t, res.Err)
		assert.Empty(t, res.Error())
	})

	t.Run("retries transient failures", func(t *testing.T) {
		// Arrange
		sender := &fakeSender{failures: 2, err: &HTTPError{Service: "twilio", StatusCode: 503}}
		router := NewRouter(nil, 3, time.Millisecond, zap.NewNop())
		router.Register(model.ChannelSMS, sender)

		// Act
		res := router.Send(context.Background(), model.ChannelSMS, "+15550100", testMessage())

		// Assert
		assert.True(t, res.Success)
		assert.Equal(t, 3, res.Attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		// Arrange
		sender := &fakeSender{failures: 10, err: errors.New("connection reset")}
		router := NewRouter(nil, 2, time.Millisecond, zap.NewNop())
		router.Register(model.ChannelMQTT, sender)

		// Act
		res := router.Send(context.Background(), model.ChannelMQTT, "esp32-kitchen", testMessage())

		// Assert
		assert.False(t, res.Success)
		assert.Equal(t, 3, res.Attempts)
		var dispatchErr *apperr.DispatchError
		require.ErrorAs(t, res.Err, &dispatchErr)
		assert.Equal(t, "mqtt", dispatchErr.Channel)
		assert.Equal(t, "esp32-kitchen", dispatchErr.Target)
	})

	t.Run("does not retry permanent failures", func(t *testing.T) {
		// Arrange
		sender := &fakeSender{failures: 10, err: Permanent("invalid email address")}
		router := NewRouter(nil, 5, time.Millisecond, zap.NewNop())
		router.Register(model.ChannelEmail, sender)

		// Act
		res := router.Send(context.Background(), model.ChannelEmail, "nope", testMessage())

		// Assert
		assert.False(t, res.Success)
		assert.Equal(t, 1, res.Attempts)
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		// Arrange
		sender := &fakeSender{failures: 10, err: &HTTPError{Service: "sendgrid", StatusCode: 400}}
		router := NewRouter(nil, 5, time.Millisecond, zap.NewNop())
		router.Register(model.ChannelEmail, sender)

		// Act
		res := router.Send(context.Background(), model.ChannelEmail, "a@example.com", testMessage())

		// Assert
		assert.Equal(t, 1, res.Attempts)
		assert.Contains(t, res.Error(), "sendgrid http 400")
	})

	t.Run("unknown channel", func(t *testing.T) {
		router := NewRouter(nil, 1, time.Millisecond, zap.NewNop())

		res := router.Send(context.Background(), model.ChannelSMS, "+15550100", testMessage())

		assert.False(t, res.Success)
		assert.Zero(t, res.Attempts)
		assert.ErrorIs(t, res.Err, ErrNoSender)
	})

	t.Run("rate limited", func(t *testing.T) {
		// Arrange
		sender := &fakeSender{}
		router := NewRouter(NewMemoryRateLimiter(1, time.Hour), 0, time.Millisecond, zap.NewNop())
		router.Register(model.ChannelEmail, sender)

		// Act
		first := router.Send(context.Background(), model.ChannelEmail, "a@example.com", testMessage())
		second := router.Send(context.Background(), model.ChannelEmail, "a@example.com", testMessage())
		other := router.Send(context.Background(), model.ChannelEmail, "b@example.com", testMessage())

		// Assert
		assert.True(t, first.Success)
		assert.ErrorIs(t, second.Err, ErrRateLimited)
		assert.True(t, other.Success)
		assert.Equal(t, 2, sender.calls)
	})

	t.Run("limiter failure allows send", func(t *testing.T) {
		sender := &fakeSender{}
		router := NewRouter(failingLimiter{}, 0, time.Millisecond, zap.NewNop())
		router.Register(model.ChannelEmail, sender)

		res := router.Send(context.Background(), model.ChannelEmail, "a@example.com", testMessage())

		assert.True(t, res.Success)
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		sender := &fakeSender{failures: 10, err: errors.New("timeout")}
		router := NewRouter(nil, 5, time.Hour, zap.NewNop())
		router.Register(model.ChannelSMS, sender)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := router.Send(ctx, model.ChannelSMS, "+15550100", testMessage())

		assert.False(t, res.Success)
		assert.Zero(t, res.Attempts)
		assert.ErrorIs(t, res.Err, context.Canceled)
	})
}

func TestRouter_Broadcast(t *testing.T) {
	// Arrange
	email := &fakeSender{}
	sms := &fakeSender{failures: 10, err: Permanent("bad number")}
	router := NewRouter(nil, 1, time.Millisecond, zap.NewNop())
	router.Register(model.ChannelEmail, email)
	router.Register(model.ChannelSMS, sms)

	targets := []Target{
		{Channel: model.ChannelEmail, Address: "a@example.com"},
		{Channel: model.ChannelSMS, Address: "123"},
		{Channel: model.ChannelMQTT, Address: "esp32-kitchen"},
	}

	// Act
	results := router.Broadcast(context.Background(), targets, testMessage())

	// Assert
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.Equal(t, model.ChannelEmail, results[0].Channel)
	assert.False(t, results[1].Success)
	assert.Equal(t, model.ChannelSMS, results[1].Channel)
	assert.ErrorIs(t, results[2].Err, ErrNoSender)
	assert.ElementsMatch(t, []model.Channel{model.ChannelEmail, model.ChannelSMS}, router.Channels())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"permanent", Permanent("bad"), false},
		{"cancelled", context.Canceled, false},
		{"rate limited upstream", &HTTPError{StatusCode: 429}, true},
		{"request timeout", &HTTPError{StatusCode: 408}, true},
		{"server error", &HTTPError{StatusCode: 502}, true},
		{"unauthorized", &HTTPError{StatusCode: 401}, false},
		{"network", errors.New("dial tcp: connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := jitter(time.Second)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
	assert.Zero(t, jitter(0))
}

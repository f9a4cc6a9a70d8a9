package azure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockResponse struct {
	content string
	err     error
}

// scriptedClient returns a client whose requests answer from responses in order
func scriptedClient(responses ...mockResponse) (*OpenAIClient, *int) {
	calls := 0
	client := &OpenAIClient{
		deployment: "gpt-4o",
		logger:     zap.NewNop(),
		maxRetries: 3,
		baseDelay:  time.Millisecond,
	}
	client.completeFn = func(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
		r := responses[calls]
		calls++
		return r.content, r.err
	}
	return client, &calls
}

func TestNewOpenAIClient(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		endpoint   string
		apiKey     string
		deployment string
		wantErr    bool
	}{
		{
			name:       "valid configuration",
			endpoint:   "https://test.openai.azure.com/",
			apiKey:     "test-key",
			deployment: "gpt-4o",
			wantErr:    false,
		},
		{
			name:       "missing endpoint",
			endpoint:   "",
			apiKey:     "test-key",
			deployment: "gpt-4o",
			wantErr:    true,
		},
		{
			name:       "missing api key",
			endpoint:   "https://test.openai.azure.com/",
			apiKey:     "",
			deployment: "gpt-4o",
			wantErr:    true,
		},
		{
			name:       "missing deployment",
			endpoint:   "https://test.openai.azure.com/",
			apiKey:     "test-key",
			deployment: "",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewOpenAIClient(tt.endpoint, tt.apiKey, tt.deployment, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.deployment, client.deployment)
			assert.Equal(t, 3, client.maxRetries)
			assert.Equal(t, time.Second, client.baseDelay)
			assert.NotNil(t, client.completeFn)
		})
	}
}

func TestOpenAIClient_isRetryable(t *testing.T) {
	client := &OpenAIClient{logger: zap.NewNop()}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "authentication error", err: errors.New("authentication failed"), want: false},
		{name: "unauthorized error", err: errors.New("Unauthorized access"), want: false},
		{name: "401 error", err: errors.New("status code 401"), want: false},
		{name: "invalid request error", err: errors.New("invalid request format"), want: false},
		{name: "bad request error", err: errors.New("bad request"), want: false},
		{name: "400 error", err: errors.New("status code 400"), want: false},
		{name: "rate limit error", err: errors.New("rate limit exceeded"), want: true},
		{name: "timeout error", err: errors.New("request timeout"), want: true},
		{name: "network error", err: errors.New("network connection failed"), want: true},
		{name: "500 error", err: errors.New("status code 500"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, client.isRetryable(tt.err))
		})
	}
}

func TestOpenAIClient_Complete_RetriesTransientErrors(t *testing.T) {
	client, calls := scriptedClient(
		mockResponse{err: errors.New("status code 503")},
		mockResponse{err: errors.New("request timeout")},
		mockResponse{content: "Great week."},
	)

	got, err := client.Complete(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage("hello"),
	})

	require.NoError(t, err)
	assert.Equal(t, "Great week.", got)
	assert.Equal(t, 3, *calls)
}

func TestOpenAIClient_Complete_StopsOnPermanentError(t *testing.T) {
	client, calls := scriptedClient(
		mockResponse{err: errors.New("status code 401")},
		mockResponse{content: "unreachable"},
	)

	_, err := client.Complete(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage("hello"),
	})

	assert.ErrorContains(t, err, "401")
	assert.Equal(t, 1, *calls)
}

func TestOpenAIClient_Complete_EmptyMessages(t *testing.T) {
	client, calls := scriptedClient()

	_, err := client.Complete(context.Background(), nil)

	assert.Error(t, err)
	assert.Equal(t, 0, *calls)
}

func TestOpenAIClient_Complete_ContextCancellation(t *testing.T) {
	client, err := NewOpenAIClient("https://test.openai.azure.com/", "test-key", "gpt-4o", zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage("test message"),
	})
	assert.Error(t, err)
}

func TestOpenAIClient_SummarizeAdherence(t *testing.T) {
	var prompt string
	client := &OpenAIClient{
		logger:     zap.NewNop(),
		maxRetries: 1,
		baseDelay:  time.Millisecond,
	}
	client.completeFn = func(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
		require.Len(t, messages, 2)
		if messages[1].OfUser != nil {
			prompt = messages[1].OfUser.Content.OfString.Value
		}
		return "  You took 90% of your doses.  \n", nil
	}

	got, err := client.SummarizeAdherence(context.Background(), AdherenceFacts{
		PatientName:   "Ada",
		Period:        "30 days",
		AdherenceRate: 90,
		CurrentStreak: 4,
		LongestStreak: 12,
		Taken:         54,
		Missed:        6,
		Medications:   []string{"Metformin", "Lisinopril"},
	})

	require.NoError(t, err)
	assert.Equal(t, "You took 90% of your doses.", got)
	assert.Contains(t, prompt, "Adherence rate: 90.0%")
	assert.Contains(t, prompt, "Metformin, Lisinopril")
	assert.Contains(t, prompt, "longest streak: 12 days")
}

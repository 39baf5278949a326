package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocoroai/sinr/internal/log"
)

// fakeProvider implements Provider for testing the fail-soft wrapper.
type fakeProvider struct {
	configured bool
	vector     []float32
	err        error
	delay      time.Duration
	callCount  int
	lastInput  string
}

func (f *fakeProvider) Name() string     { return "fake" }
func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.callCount++
	f.lastInput = text

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func TestClient_EmbedSuccess(t *testing.T) {
	provider := &fakeProvider{configured: true, vector: []float32{0.1, 0.2, 0.3}}
	client := NewClient(provider, log.NewNop())

	vec := client.Embed(context.Background(), "  anxiety coping  ")
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "anxiety coping", provider.lastInput, "input must be trimmed before the call")
	assert.Equal(t, 1, provider.callCount)
}

func TestClient_NoCredentialSkipsNetworkCall(t *testing.T) {
	provider := &fakeProvider{configured: false, vector: []float32{1}}
	client := NewClient(provider, log.NewNop())

	assert.False(t, client.Configured())
	assert.Nil(t, client.Embed(context.Background(), "query"))
	assert.Zero(t, provider.callCount, "unconfigured provider must not be called")
}

func TestClient_NilProvider(t *testing.T) {
	client := NewClient(nil, log.NewNop())
	assert.False(t, client.Configured())
	assert.Nil(t, client.Embed(context.Background(), "query"))
}

func TestClient_EmptyInputShortCircuits(t *testing.T) {
	provider := &fakeProvider{configured: true, vector: []float32{1}}
	client := NewClient(provider, log.NewNop())

	assert.Nil(t, client.Embed(context.Background(), ""))
	assert.Nil(t, client.Embed(context.Background(), "   \n "))
	assert.Zero(t, provider.callCount)
}

func TestClient_ProviderErrorReturnsNil(t *testing.T) {
	provider := &fakeProvider{configured: true, err: errors.New("http 500")}
	client := NewClient(provider, log.NewNop())

	assert.Nil(t, client.Embed(context.Background(), "query"))
	assert.Equal(t, 1, provider.callCount)
}

func TestClient_EmptyVectorReturnsNil(t *testing.T) {
	provider := &fakeProvider{configured: true, vector: []float32{}}
	client := NewClient(provider, log.NewNop())

	assert.Nil(t, client.Embed(context.Background(), "query"))
}

func TestClient_TimeoutReturnsNil(t *testing.T) {
	provider := &fakeProvider{configured: true, vector: []float32{1}, delay: 200 * time.Millisecond}
	client := NewClient(provider, log.NewNop(), WithTimeout(20*time.Millisecond))

	start := time.Now()
	assert.Nil(t, client.Embed(context.Background(), "query"))
	assert.Less(t, time.Since(start), 150*time.Millisecond, "call must be cut off by the timeout")
}

func TestClient_CanceledContextWithRateLimit(t *testing.T) {
	provider := &fakeProvider{configured: true, vector: []float32{1}}
	client := NewClient(provider, log.NewNop(), WithRateLimit(0.001, 1))

	ctx, cancel := context.WithCancel(context.Background())

	// First call consumes the burst token.
	require.NotNil(t, client.Embed(ctx, "first"))

	cancel()
	assert.Nil(t, client.Embed(ctx, "second"), "canceled wait must degrade to nil")
	assert.Equal(t, 1, provider.callCount)
}

func TestOpenAIProvider_Configured(t *testing.T) {
	assert.False(t, NewOpenAI("", "").Configured())
	assert.True(t, NewOpenAI("sk-test", "").Configured())
}

func TestGeminiProvider_Configured(t *testing.T) {
	assert.False(t, NewGemini("", "", 0).Configured())
	assert.True(t, NewGemini("key", "", 0).Configured())
}

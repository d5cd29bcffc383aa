package openai

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func writeEmbeddings(t *testing.T, w http.ResponseWriter, n int) {
	t.Helper()
	data := make([]map[string]any, n)
	// Returned in reverse order to exercise index sorting.
	for i := 0; i < n; i++ {
		idx := n - 1 - i
		data[i] = map[string]any{"object": "embedding", "index": idx, "embedding": []float32{3, float32(idx), 4}}
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  "test-model",
		"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
	}))
}

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	t.Setenv("DOCRAG_TEST_KEY", "sk-test")
	c, err := NewClient(Config{BaseURL: url + "/v1", APIKeyEnv: "DOCRAG_TEST_KEY", Model: "test-model", MaxRetries: retries})
	require.NoError(t, err)
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestEmbedBatch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		writeEmbeddings(t, w, len(req.Input))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	assert.Equal(t, 0, c.Dimension())

	vecs, err := c.EmbedBatch(context.Background(), []string{"first", "second"})

	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, 3, c.Dimension())
	assert.InDelta(t, 0.0, vecs[0][1], 1e-6)
	assert.Greater(t, vecs[1][1], float32(0))
	for _, v := range vecs {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	}
}

func TestEmbedBatch_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`))
			return
		}
		writeEmbeddings(t, w, 1)
	}))
	defer srv.Close()

	vecs, err := newTestClient(t, srv.URL, 3).EmbedBatch(context.Background(), []string{"text"})

	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedBatch_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 2).EmbedBatch(context.Background(), []string{"text"})

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedBatch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 5).EmbedBatch(context.Background(), []string{"text"})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("DOCRAG_EMPTY_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "DOCRAG_EMPTY_KEY"})
	assert.Error(t, err)
}

func TestNewClient_KnownModelDimension(t *testing.T) {
	t.Setenv("DOCRAG_TEST_KEY", "sk-test")
	c, err := NewClient(Config{APIKeyEnv: "DOCRAG_TEST_KEY", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, c.Dimension())

	c, err = NewClient(Config{APIKeyEnv: "DOCRAG_TEST_KEY", Dimensions: 256})
	require.NoError(t, err)
	assert.Equal(t, 256, c.Dimension())
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 400*time.Millisecond, retryDelay(1))
	assert.Equal(t, 5*time.Second, retryDelay(10))
	assert.Equal(t, 5*time.Second, retryDelay(100))
}

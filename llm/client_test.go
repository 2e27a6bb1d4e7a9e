package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []CallEvent
}

func (o *recordingObserver) OnCallComplete(e CallEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func testConfig(endpoint string) Config {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.Endpoint = endpoint
	return cfg
}

func writeCandidate(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{"parts": []map[string]string{{"text": text}}}},
		},
	})
}

func TestGeminiClient_Generate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))
		assert.Equal(t, http.MethodPost, r.Method)

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

		writeCandidate(w, `{"ok":true}`)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	client := NewGeminiClient(testConfig(srv.URL), obs)
	resp, err := client.Generate(context.Background(), GenerateRequest{Task: TaskClassify, Prompt: "hello", JSON: true})

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Text)
	require.Len(t, obs.events, 1)
	assert.True(t, obs.events[0].Success)
	assert.Equal(t, 1, obs.events[0].Attempts)
}

func TestGeminiClient_Generate_MissingKey(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = ""
	_, err := NewGeminiClient(cfg, nil).Generate(context.Background(), GenerateRequest{Task: TaskChat, Prompt: "hi"})

	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestGeminiClient_Generate_ErrorsDoNotCarryKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	cfg := testConfig(endpoint)
	cfg.APIKey = "SECRET-KEY-123"
	_, err := NewGeminiClient(cfg, nil).Generate(context.Background(), GenerateRequest{Task: TaskChat, Prompt: "hi"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
}

func TestGeminiClient_Generate_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeCandidate(w, "second time lucky")
	}))
	defer srv.Close()

	resp, err := NewGeminiClient(testConfig(srv.URL), nil).Generate(context.Background(), GenerateRequest{Task: TaskChat, Prompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "second time lucky", resp.Text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestGeminiClient_Generate_ClientErrorNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad"}}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	_, err := NewGeminiClient(testConfig(srv.URL), obs).Generate(context.Background(), GenerateRequest{Task: TaskChat, Prompt: "hi"})

	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	require.Len(t, obs.events, 1)
	assert.Equal(t, "UPSTREAM", obs.events[0].ErrorCode)
}

func TestGeminiClient_Generate_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := NewGeminiClient(testConfig(srv.URL), nil).Generate(context.Background(), GenerateRequest{Task: TaskChat, Prompt: "hi"})
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestGeminiClient_Generate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Tasks = map[TaskType]TaskConfig{TaskChat: {TimeoutMs: 50}}

	_, err := NewGeminiClient(cfg, nil).Generate(context.Background(), GenerateRequest{Task: TaskChat, Prompt: "hi"})
	assert.ErrorIs(t, err, ErrTimeout)
}

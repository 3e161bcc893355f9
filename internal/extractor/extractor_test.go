package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incidentetl/internal/config"
	"incidentetl/internal/keywords"
	"incidentetl/internal/logger"
	"incidentetl/internal/models"
)

// MockCompleter implements Completer for testing.
type MockCompleter struct {
	CompleteFunc func(ctx context.Context, system, user string) (string, error)
}

func (m *MockCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, user)
	}

	return "", nil
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantLocation string
		wantKeywords string
		wantErr      error
	}{
		{
			name:         "drops unknown keywords",
			content:      `{"location": "123 Main St", "keywords": ["Fire", "Bogus"]}`,
			wantLocation: "123 Main St",
			wantKeywords: "Fire",
		},
		{
			name:         "fenced json",
			content:      "```json\n{\"location\": \"9 Elm Dr\", \"keywords\": [\"Arson\", \"Fire\"]}\n```",
			wantLocation: "9 Elm Dr",
			wantKeywords: "Arson, Fire",
		},
		{
			name:         "bare fence",
			content:      "```{\"location\": \"\", \"keywords\": []}```",
			wantLocation: "",
			wantKeywords: "",
		},
		{
			name:         "string keywords",
			content:      `{"location": "1 A Way", "keywords": "Homicide"}`,
			wantLocation: "1 A Way",
			wantKeywords: "Homicide",
		},
		{
			name:         "case sensitive vocabulary",
			content:      `{"location": "x", "keywords": ["fire", "FIRE", "Meth lab", 7]}`,
			wantLocation: "x",
			wantKeywords: "Meth lab",
		},
		{name: "not json", content: "Sorry, I cannot help with that.", wantErr: ErrMalformedResponse},
		{name: "array", content: `["Fire"]`, wantErr: ErrMalformedResponse},
		{name: "missing location", content: `{"keywords": ["Fire"]}`, wantErr: ErrMissingLocation},
		{name: "null location", content: `{"location": null, "keywords": ["Fire"]}`, wantErr: ErrMissingLocation},
		{name: "numeric location", content: `{"location": 12, "keywords": ["Fire"]}`, wantErr: ErrMissingLocation},
		{name: "missing keywords", content: `{"location": "x"}`, wantErr: ErrMissingKeywords},
		{name: "object keywords", content: `{"location": "x", "keywords": {"a": 1}}`, wantErr: ErrMissingKeywords},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.content)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantLocation, got.Location)
			assert.Equal(t, tt.wantKeywords, got.JoinedKeywords())

			for _, kw := range got.Keywords {
				assert.True(t, keywords.Contains(kw), kw)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Engine 5 responding to 12 Oak St")

	assert.True(t, strings.HasPrefix(prompt, "You are an assistant that extracts information from emergency transcripts.\n\n"))
	assert.Contains(t, prompt, "2. Identify ALL relevant incident keywords from this list:\n"+keywords.Joined()+"\n")
	assert.Contains(t, prompt, "   - 'keywords': array of matching keywords\n\n")
	assert.True(t, strings.HasSuffix(prompt, "Transcript:\nEngine 5 responding to 12 Oak St\n"))
}

func TestExtractor_Extract(t *testing.T) {
	var logs bytes.Buffer
	log := logger.New(&logs, "info")

	mock := &MockCompleter{
		CompleteFunc: func(_ context.Context, system, user string) (string, error) {
			assert.Equal(t, SystemPrompt, system)
			assert.Contains(t, user, "Transcript:\nhello\n")

			return `{"location": "123 Main St", "keywords": ["Fire", "Bogus"]}`, nil
		},
	}

	location, kws := New(mock, 1, log, 0).Extract(context.Background(), "hello")
	assert.Equal(t, "123 Main St", location)
	assert.Equal(t, "Fire", kws)
	assert.Empty(t, logs.String())
}

func TestExtractor_Extract_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
	}{
		{name: "transport", err: errors.New("connection reset")},
		{name: "non json", content: "not json at all"},
		{name: "missing fields", content: `{"address": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			mock := &MockCompleter{
				CompleteFunc: func(context.Context, string, string) (string, error) {
					return tt.content, tt.err
				},
			}

			location, kws := New(mock, 1, logger.New(&logs, "info"), 0).Extract(context.Background(), "text")
			assert.Equal(t, "", location)
			assert.Equal(t, "", kws)
			assert.Contains(t, logs.String(), "LLM extraction error")
		})
	}
}

func TestExtractor_Apply_PreservesRowAssociation(t *testing.T) {
	var inFlight, maxSeen atomic.Int32

	mock := &MockCompleter{
		CompleteFunc: func(_ context.Context, _, user string) (string, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)

			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)

			idx := user[strings.LastIndex(user, "row-")+4 : len(user)-1]
			if idx == "3" {
				return "garbage", nil
			}

			return fmt.Sprintf(`{"location": "%s Main St", "keywords": ["Fire"]}`, idx), nil
		},
	}

	table := &models.Table{Columns: []string{models.ColTranscription}}
	for i := 0; i < 10; i++ {
		table.Rows = append(table.Rows, &models.Row{Record: models.TranscriptRecord{Transcription: fmt.Sprintf("row-%d", i)}})
	}

	var logs bytes.Buffer
	err := New(mock, 4, logger.New(&logs, "debug"), 2).Apply(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, []string{models.ColTranscription, models.ColAddress, models.ColExtractedKeywords}, table.Columns)

	for i, row := range table.Rows {
		if i == 3 {
			assert.Equal(t, "", row.Address)
			assert.Equal(t, "", row.ExtractedKeywords)
			continue
		}

		assert.Equal(t, fmt.Sprintf("%d Main St", i), row.Address)
		assert.Equal(t, "Fire", row.ExtractedKeywords)
	}

	assert.LessOrEqual(t, maxSeen.Load(), int32(4))
	assert.Contains(t, logs.String(), "done=10")
}

func TestExtractor_Apply_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	table := &models.Table{Rows: []*models.Row{{}}}
	err := New(&MockCompleter{}, 1, nil, 0).Apply(ctx, table)
	assert.ErrorIs(t, err, context.Canceled)
}

// chatServer is an httptest server speaking the chat completions protocol.
type chatServer struct {
	mu       sync.Mutex
	requests []map[string]any
	statuses []int
	content  string
}

func (s *chatServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		s.mu.Lock()
		s.requests = append(s.requests, body)
		status := http.StatusOK
		if len(s.statuses) > 0 {
			status = s.statuses[0]
			s.statuses = s.statuses[1:]
		}
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = fmt.Fprintf(w, `{"error":{"message":"status %d","type":"server_error"}}`, status)
			return
		}

		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   body["model"],
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": s.content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func newTestClient(t *testing.T, srv *chatServer, attempts int) *Client {
	t.Helper()

	server := httptest.NewServer(srv.handler(t))
	t.Cleanup(server.Close)

	cfg := config.Default().LLM
	cfg.APIKey = "test-key"
	cfg.BaseURL = server.URL + "/v1"
	cfg.Retry.MaxAttempts = attempts

	client := NewClient(cfg, nil)
	client.sleep = func(context.Context, time.Duration) error { return nil }

	return client
}

func TestClient_Complete(t *testing.T) {
	srv := &chatServer{content: "```json\n{\"location\": \"123 Main St\", \"keywords\": [\"Fire\", \"Bogus\"]}\n```"}
	client := newTestClient(t, srv, 3)

	location, kws := New(client, 1, nil, 0).Extract(context.Background(), "transcript text")
	assert.Equal(t, "123 Main St", location)
	assert.Equal(t, "Fire", kws)

	require.Len(t, srv.requests, 1)
	req := srv.requests[0]
	assert.Equal(t, "gpt-oss-20b", req["model"])

	temp, ok := req["temperature"].(float64)
	require.True(t, ok, "temperature must be sent")
	assert.InDelta(t, 0, temp, 1e-6)

	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, SystemPrompt, messages[0].(map[string]any)["content"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestClient_Complete_RetriesBusyServer(t *testing.T) {
	srv := &chatServer{
		statuses: []int{http.StatusTooManyRequests, http.StatusServiceUnavailable},
		content:  `{"location": "1 A Way", "keywords": []}`,
	}
	client := newTestClient(t, srv, 3)

	content, err := client.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, `{"location": "1 A Way", "keywords": []}`, content)
	assert.Len(t, srv.requests, 3)
}

func TestClient_Complete_NoRetryOnClientError(t *testing.T) {
	srv := &chatServer{statuses: []int{http.StatusUnauthorized}}
	client := newTestClient(t, srv, 3)

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Len(t, srv.requests, 1)

	location, kws := New(client, 1, nil, 0).Extract(context.Background(), "text")
	assert.Equal(t, "", location)
	assert.Equal(t, "", kws)
}

func TestClient_Complete_GivesUp(t *testing.T) {
	srv := &chatServer{statuses: []int{503, 503, 503, 503}}
	client := newTestClient(t, srv, 2)

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt 2/2")
	assert.Len(t, srv.requests, 2)
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 503, 504} {
		assert.True(t, isRetryableStatus(code), code)
	}

	for _, code := range []int{200, 400, 401, 404, 500} {
		assert.False(t, isRetryableStatus(code), code)
	}
}

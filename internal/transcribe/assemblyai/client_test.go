package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"audit-backend/internal/transcribe"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		apiKey:     "test-key",
		baseURL:    srv.URL,
		httpClient: srv.Client(),
		poller: transcribe.Poller{
			Base:   time.Millisecond,
			Step:   time.Millisecond,
			Cap:    time.Millisecond,
			Budget: time.Second,
		},
		sleep: func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	}
}

func TestTranscribePollsUntilCompleted(t *testing.T) {
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio"})
	})
	mux.HandleFunc("/transcript", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "queued"})
	})
	mux.HandleFunc("/transcript/job-1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 3 {
			json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "processing"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":             "job-1",
			"status":         "completed",
			"text":           "hola buenos dias",
			"audio_duration": 42.5,
			"utterances": []map[string]any{
				{"speaker": "A", "text": "hola buenos dias", "start": 120, "end": 1900},
			},
		})
	})

	client := newTestClient(t, mux)
	got, err := client.Transcribe(context.Background(), []byte("audio"), "audio/wav")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if polls != 3 {
		t.Fatalf("expected 3 polls, got %d", polls)
	}
	if got.Text != "hola buenos dias" {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if len(got.Utterances) != 1 || got.Utterances[0].StartMs != 120 {
		t.Fatalf("unexpected utterances %+v", got.Utterances)
	}
	if got.DurationSeconds != 42.5 {
		t.Fatalf("unexpected duration %v", got.DurationSeconds)
	}
}

func TestTranscribeJobError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio"})
	})
	mux.HandleFunc("/transcript", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "job-2", "status": "queued"})
	})
	mux.HandleFunc("/transcript/job-2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "job-2", "status": "error", "error": "audio unreadable"})
	})

	client := newTestClient(t, mux)
	if _, err := client.Transcribe(context.Background(), []byte("audio"), "audio/wav"); err == nil {
		t.Fatal("expected job error")
	}
}

func TestTranscribeWaitBudgetExceeded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio"})
	})
	mux.HandleFunc("/transcript", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "job-3", "status": "queued"})
	})
	mux.HandleFunc("/transcript/job-3", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "job-3", "status": "processing"})
	})

	client := newTestClient(t, mux)
	client.poller.Budget = 0

	_, err := client.Transcribe(context.Background(), []byte("audio"), "audio/wav")
	if !errors.Is(err, transcribe.ErrWaitBudgetExceeded) {
		t.Fatalf("expected wait budget error, got %v", err)
	}
}

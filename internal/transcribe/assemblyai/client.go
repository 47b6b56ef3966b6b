package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"audit-backend/internal/shared/telemetry"
	"audit-backend/internal/transcribe"
)

const defaultBaseURL = "https://api.assemblyai.com/v2"

// Client implements transcribe.Transcriber using the AssemblyAI REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	poller     transcribe.Poller
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a transcription client.
func NewClient(apiKey string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("TRANSCRIBE_API_KEY is required")
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		poller: transcribe.DefaultPoller(),
		sleep:  sleepCtx,
	}, nil
}

type submitRequest struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels"`
}

type jobResponse struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Text          string  `json:"text"`
	AudioDuration float64 `json:"audio_duration"`
	Error         string  `json:"error"`
	Utterances    []struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
		Start   int64  `json:"start"`
		End     int64  `json:"end"`
	} `json:"utterances"`
}

// Transcribe uploads the audio, submits a job, and polls it to completion
// under the wait budget.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (transcribe.Transcript, error) {
	audioURL, err := c.upload(ctx, audio, mimeType)
	if err != nil {
		return transcribe.Transcript{}, fmt.Errorf("transcription upload: %w", err)
	}

	jobID, err := c.submit(ctx, audioURL)
	if err != nil {
		return transcribe.Transcript{}, fmt.Errorf("transcription submit: %w", err)
	}

	return c.waitForJob(ctx, jobID)
}

// waitForJob drives the polling state machine: wait, poll, classify, repeat,
// until the job settles or the budget runs out.
func (c *Client) waitForJob(ctx context.Context, jobID string) (transcribe.Transcript, error) {
	start := time.Now()
	for attempt := 0; ; attempt++ {
		delay := c.poller.Delay(attempt)
		elapsed := time.Since(start)
		remaining := c.poller.Remaining(elapsed + delay)
		if remaining <= 0 {
			return transcribe.Transcript{}, fmt.Errorf("job %s after %s: %w", jobID, elapsed.Round(time.Second), transcribe.ErrWaitBudgetExceeded)
		}
		if err := c.sleep(ctx, delay); err != nil {
			return transcribe.Transcript{}, err
		}

		job, err := c.poll(ctx, jobID)
		if err != nil {
			return transcribe.Transcript{}, fmt.Errorf("transcription poll: %w", err)
		}

		telemetry.Info("transcription.poll", map[string]any{
			"job_id":       jobID,
			"status":       job.Status,
			"attempt":      attempt + 1,
			"elapsed_ms":   time.Since(start).Milliseconds(),
			"remaining_ms": c.poller.Remaining(time.Since(start)).Milliseconds(),
		})

		switch job.Status {
		case "completed":
			return toTranscript(job), nil
		case "error":
			return transcribe.Transcript{}, fmt.Errorf("transcription job %s failed: %s", jobID, job.Error)
		case "queued", "processing":
			// keep waiting
		default:
			return transcribe.Transcript{}, fmt.Errorf("transcription job %s unknown status %q", jobID, job.Status)
		}
	}
}

func (c *Client) upload(ctx context.Context, audio []byte, mimeType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}
	return out.UploadURL, nil
}

func (c *Client) submit(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(submitRequest{AudioURL: audioURL, SpeakerLabels: true})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out jobResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("submit response missing job id")
	}
	return out.ID, nil
}

func (c *Client) poll(ctx context.Context, jobID string) (jobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+jobID, nil)
	if err != nil {
		return jobResponse{}, err
	}
	req.Header.Set("Authorization", c.apiKey)

	var out jobResponse
	if err := c.do(req, &out); err != nil {
		return jobResponse{}, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("response parse: %w", err)
	}
	return nil
}

func toTranscript(job jobResponse) transcribe.Transcript {
	out := transcribe.Transcript{
		Text:            job.Text,
		DurationSeconds: job.AudioDuration,
	}
	for _, u := range job.Utterances {
		out.Utterances = append(out.Utterances, transcribe.Utterance{
			Speaker: u.Speaker,
			Text:    u.Text,
			StartMs: u.Start,
			EndMs:   u.End,
		})
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

var _ transcribe.Transcriber = (*Client)(nil)

package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"audit-backend/internal/llm"
)

const apiURL = "https://api.openai.com/v1/chat/completions"

// Client implements the vision and scoring clients using OpenAI Chat Completions.
type Client struct {
	apiKey       string
	visionModel  string
	scoringModel string
	httpClient   *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, visionModel, scoringModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(visionModel) == "" || strings.TrimSpace(scoringModel) == "" {
		return nil, fmt.Errorf("VISION_MODEL and SCORING_MODEL are required for OpenAI")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:       apiKey,
		visionModel:  visionModel,
		scoringModel: scoringModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float32       `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// AnalyzeImage sends one screenshot for structured extraction.
func (c *Client) AnalyzeImage(ctx context.Context, input llm.ImageInput) (json.RawMessage, llm.Usage, error) {
	mimeType := input.MimeType
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(input.Data))

	messages := []chatMessage{
		{Role: "system", Content: visionSystemPrompt},
		{Role: "user", Content: []contentPart{
			{Type: "text", Text: visionUserPrompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		}},
	}
	raw, usage, err := c.completeOnce(ctx, c.visionModel, messages)
	if err != nil {
		return nil, usage, err
	}
	logUsage("vision", c.visionModel, input.SourceID, usage)
	return raw, usage, nil
}

// ScoreEvidence sends the complete evidence bundle for rubric scoring.
func (c *Client) ScoreEvidence(ctx context.Context, input llm.ScoreInput) (json.RawMessage, llm.Usage, error) {
	messages := []chatMessage{
		{Role: "system", Content: input.System},
		{Role: "user", Content: input.User},
	}
	raw, usage, err := c.completeOnce(ctx, c.scoringModel, messages)
	if err != nil {
		return nil, usage, err
	}
	logUsage("scoring", c.scoringModel, "", usage)
	return raw, usage, nil
}

func (c *Client) completeOnce(ctx context.Context, model string, messages []chatMessage) (json.RawMessage, llm.Usage, error) {
	// Deterministic decoding: temperature 0 plus JSON mode. Exact
	// reproducibility is still not guaranteed by the provider.
	temp := float32(0)
	reqBody := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: &temp,
		ResponseFormat: responseFormat{
			Type: "json_object",
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, llm.Usage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, llm.Usage{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, llm.Usage{}, fmt.Errorf("openai request timeout: %w", err)
		}
		return nil, llm.Usage{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.Usage{}, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, llm.Usage{}, fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		return nil, llm.Usage{}, fmt.Errorf("openai error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if len(parsed.Choices) == 0 {
		return nil, llm.Usage{}, fmt.Errorf("openai response missing choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, llm.Usage{}, fmt.Errorf("openai response empty content")
	}

	usage := llm.Usage{}
	if parsed.Usage != nil {
		usage.InputTokens = parsed.Usage.PromptTokens
		usage.OutputTokens = parsed.Usage.CompletionTokens
	}
	return json.RawMessage(content), usage, nil
}

func logUsage(kind, model, sourceID string, usage llm.Usage) {
	if sourceID != "" {
		log.Printf("llm response kind=%s model=%s source=%s input_tokens=%d output_tokens=%d",
			kind, model, sourceID, usage.InputTokens, usage.OutputTokens)
		return
	}
	log.Printf("llm response kind=%s model=%s input_tokens=%d output_tokens=%d",
		kind, model, usage.InputTokens, usage.OutputTokens)
}

var (
	_ llm.VisionClient  = (*Client)(nil)
	_ llm.ScoringClient = (*Client)(nil)
)

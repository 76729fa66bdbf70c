package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/godocscan/internal/domain"
)

const (
	// DefaultTimeout is the default timeout for analysis requests.
	DefaultTimeout = 120 * time.Second
	// maxErrorBodySize limits how much of an error response body is kept.
	maxErrorBodySize = 512
	// maxContentChars truncates document content sent to the model.
	maxContentChars = 16000
)

// systemPrompt instructs the model to answer with the suggestion JSON only.
const systemPrompt = `You are a document metadata assistant. Analyze the document and respond with a single JSON object containing these keys: title, tags (array of strings), correspondent, document_type, created_date (YYYY-MM-DD), summary, language, confidence_score (0..1). Omit keys you cannot determine. Respond with JSON only.`

// Client calls an OpenAI-compatible chat-completions endpoint to produce
// metadata suggestions.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithBaseURL sets the base URL for the analysis endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithAPIKey sets the bearer token sent with each request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithModel sets the default model used when a bot names none.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the timeout for analysis requests.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new analysis client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// chatMessage is one message in the chat-completions request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the chat-completions request body.
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

// chatResponse is the subset of the chat-completions response we read.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze implements the Analyzer interface.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*domain.SuggestionSet, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	content := req.Content
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = systemPrompt
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: fmt.Sprintf("Title: %s\n\n%s", req.Title, content)},
		},
		Temperature: 0,
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("analysis returned status %d: %s", resp.StatusCode, string(excerpt))
	}

	var chat chatResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&chat); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", decodeErr)
	}

	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("analysis returned no choices")
	}

	suggestions, err := parseSuggestions(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return suggestions, nil
}

// parseSuggestions decodes the model's JSON answer, tolerating surrounding
// prose or markdown fences.
func parseSuggestions(raw string) (*domain.SuggestionSet, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("analysis response contained no JSON object")
	}

	var suggestions domain.SuggestionSet
	if err := json.Unmarshal([]byte(raw[start:end+1]), &suggestions); err != nil {
		return nil, fmt.Errorf("failed to parse suggestions: %w", err)
	}

	return &suggestions, nil
}

package paperless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second
	// DefaultPageSize is the default number of documents fetched per page.
	DefaultPageSize = 100
	// maxErrorBodySize limits how much of an error response body is kept.
	maxErrorBodySize = 512
)

// Client is an HTTP client for a paperless-ngx style document API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API client.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithToken sets the API token used for authentication.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the timeout for API requests.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new document repository API client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// FetchPage retrieves one page of the repository's document listing. Pages
// are 1-based.
func (c *Client) FetchPage(ctx context.Context, page, pageSize int) (*DocumentPage, error) {
	endpoint, err := url.JoinPath(c.baseURL, "api", "documents")
	if err != nil {
		return nil, fmt.Errorf("failed to build documents URL: %w", err)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var response documentListResponse
	if doErr := c.doRequest(req, &response); doErr != nil {
		return nil, fmt.Errorf("failed to fetch documents page %d: %w", page, doErr)
	}

	return &DocumentPage{
		Count:   response.Count,
		Results: response.Results,
		HasNext: response.Next != nil,
	}, nil
}

// FetchAllDocuments follows the next-page cursor until the listing is
// exhausted. The page count is unbounded; only the repository's total
// document count bounds the walk.
func (c *Client) FetchAllDocuments(ctx context.Context, pageSize int) ([]Document, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []Document
	for page := 1; ; page++ {
		result, err := c.FetchPage(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}

		all = append(all, result.Results...)

		if !result.HasNext {
			break
		}
	}

	return all, nil
}

// ApplyMetadata writes a partial metadata update to a remote document.
func (c *Client) ApplyMetadata(ctx context.Context, remoteID int64, update *MetadataUpdate) error {
	endpoint, err := url.JoinPath(c.baseURL, "api", "documents", strconv.FormatInt(remoteID, 10))
	if err != nil {
		return fmt.Errorf("failed to build document URL: %w", err)
	}

	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint+"/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if doErr := c.doRequest(req, nil); doErr != nil {
		return fmt.Errorf("failed to apply metadata to document %d: %w", remoteID, doErr)
	}

	return nil
}

// doRequest executes a request, decoding a JSON response into out when out
// is non-nil. Non-2xx responses are returned as errors carrying a body
// excerpt.
func (c *Client) doRequest(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(excerpt))
	}

	if out == nil {
		return nil
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	return nil
}

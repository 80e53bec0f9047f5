package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/codebaseqa/cqa/internal/graph"
)

const (
	// DefaultBaseURL is where a locally running backend listens.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is long because chat streams and graph generation can be slow.
	DefaultTimeout = 5 * time.Minute

	// DefaultRateLimit is the default requests per second.
	DefaultRateLimit = 10.0

	// DefaultSearchLimit matches the backend default.
	DefaultSearchLimit = 10

	// APIKeyHeader carries the optional API key.
	APIKeyHeader = "X-API-Key"
)

// Client is a rate-limited HTTP client for the CodebaseQA API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets the backend base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRateLimit sets requests per second. Non-positive disables limiting.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewClient creates a new CodebaseQA API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string { return c.baseURL }

// send performs a request and returns the response when the status is 2xx. The
// caller must close the body. Every failure is an *APIError except context and
// rate limiter errors.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, accept string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "cqa-cli")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, parseError(resp)
	}
	return resp, nil
}

// do sends a JSON request and decodes the JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// ListRepos lists indexed repositories.
func (c *Client) ListRepos(ctx context.Context) (*RepoList, error) {
	var out RepoList
	if err := c.do(ctx, http.MethodGet, "/api/repos/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRepo fetches one repository.
func (c *Client) GetRepo(ctx context.Context, repoID string) (*Repo, error) {
	var out Repo
	if err := c.do(ctx, http.MethodGet, "/api/repos/"+url.PathEscape(repoID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRepo starts indexing a repository. Indexing continues in the background.
func (c *Client) CreateRepo(ctx context.Context, githubURL, branch string) (*Repo, error) {
	var out Repo
	req := CreateRepoRequest{GitHubURL: githubURL, Branch: branch}
	if err := c.do(ctx, http.MethodPost, "/api/repos/", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRepo deletes a repository and its index.
func (c *Client) DeleteRepo(ctx context.Context, repoID string) error {
	return c.do(ctx, http.MethodDelete, "/api/repos/"+url.PathEscape(repoID), nil, nil, nil)
}

// GetGraph fetches the dependency graph. Malformed fields in the payload are
// tolerated; only a body that is not JSON at all is an error.
func (c *Client) GetGraph(ctx context.Context, repoID string, q GraphQuery) (*graph.Payload, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/learning/"+url.PathEscape(repoID)+"/graph", q.Values(), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(err)
	}
	p, err := graph.DecodePayload(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return p, nil
}

// RecordGraphView tells the backend the graph was viewed.
func (c *Client) RecordGraphView(ctx context.Context, repoID string) (*GraphViewResult, error) {
	var out GraphViewResult
	if err := c.do(ctx, http.MethodPost, "/api/learning/"+url.PathEscape(repoID)+"/graph/viewed", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateChatSession opens a chat session for a repository.
func (c *Client) CreateChatSession(ctx context.Context, repoID string) (*ChatSession, error) {
	var out ChatSession
	body := map[string]string{"repo_id": repoID}
	if err := c.do(ctx, http.MethodPost, "/api/chat/sessions", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetChatSession fetches a session with its messages.
func (c *Client) GetChatSession(ctx context.Context, sessionID string) (*ChatSession, error) {
	var out ChatSession
	if err := c.do(ctx, http.MethodGet, "/api/chat/sessions/"+url.PathEscape(sessionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search runs a semantic code search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Limit <= 0 {
		req.Limit = DefaultSearchLimit
	}
	var out SearchResponse
	if err := c.do(ctx, http.MethodPost, "/api/search/", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlatformConfig fetches backend runtime flags.
func (c *Client) PlatformConfig(ctx context.Context) (*PlatformConfig, error) {
	var out PlatformConfig
	if err := c.do(ctx, http.MethodGet, "/api/platform/config", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health fetches the backend health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

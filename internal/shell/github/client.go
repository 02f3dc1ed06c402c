// Package github creates releases through the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// =============================================================================
// Client Interface
// =============================================================================

var (
	ErrInvalidRepository = errors.New("repository must be in owner/name form")
	ErrReleaseExists     = errors.New("release already exists")
)

// Release is the request to create one release.
type Release struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name,omitempty"`
	Body       string `json:"body"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// ReleaseInfo is what the API returns for a created release.
type ReleaseInfo struct {
	ID      int64  `json:"id"`
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Client defines the interface for publishing releases.
type Client interface {
	CreateRelease(ctx context.Context, release Release) (*ReleaseInfo, error)
}

// =============================================================================
// API Client Implementation
// =============================================================================

// Config holds configuration for the API client.
type Config struct {
	BaseURL      string
	Token        string
	Repository   string // owner/name
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://api.github.com",
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 10 * time.Second,
	}
}

// APIClient implements Client against api.github.com or a compatible server.
type APIClient struct {
	baseURL    string
	token      string
	owner      string
	repo       string
	httpClient *retryablehttp.Client
	logger     *slog.Logger
}

// NewAPIClient creates a new client. Zero-valued config fields take their
// DefaultConfig values.
func NewAPIClient(cfg Config, logger *slog.Logger) (*APIClient, error) {
	owner, repo, ok := strings.Cut(cfg.Repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRepository, cfg.Repository)
	}

	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RetryWaitMin == 0 {
		cfg.RetryWaitMin = defaults.RetryWaitMin
	}
	if cfg.RetryWaitMax == 0 {
		cfg.RetryWaitMax = defaults.RetryWaitMax
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "github")

	hc := retryablehttp.NewClient()
	hc.HTTPClient.Timeout = cfg.Timeout
	hc.RetryMax = cfg.RetryMax
	hc.RetryWaitMin = cfg.RetryWaitMin
	hc.RetryWaitMax = cfg.RetryWaitMax
	hc.Logger = logger
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &APIClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		owner:      owner,
		repo:       repo,
		httpClient: hc,
		logger:     logger,
	}, nil
}

// apiError is the GitHub error payload.
type apiError struct {
	Message string `json:"message"`
	Errors  []struct {
		Code  string `json:"code"`
		Field string `json:"field"`
	} `json:"errors"`
}

// CreateRelease creates a release for an existing tag.
func (c *APIClient) CreateRelease(ctx context.Context, release Release) (*ReleaseInfo, error) {
	if release.Name == "" {
		release.Name = release.TagName
	}
	body, err := json.Marshal(release)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal release request: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases", c.baseURL, c.owner, c.repo)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send release request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read release response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.Unmarshal(respBody, &apiErr)
		if resp.StatusCode == http.StatusUnprocessableEntity {
			for _, e := range apiErr.Errors {
				if e.Code == "already_exists" {
					return nil, fmt.Errorf("%w: %s", ErrReleaseExists, release.TagName)
				}
			}
		}
		msg := apiErr.Message
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return nil, fmt.Errorf("GitHub returned error %d: %s", resp.StatusCode, msg)
	}

	var info ReleaseInfo
	if err := json.Unmarshal(respBody, &info); err != nil {
		return nil, fmt.Errorf("failed to decode release response: %w", err)
	}
	c.logger.Info("created release", "tag", info.TagName, "url", info.HTMLURL)
	return &info, nil
}

// =============================================================================
// No-Op Client (for dry runs and unconfigured repositories)
// =============================================================================

// NoOpClient is a client that creates nothing.
type NoOpClient struct{}

// NewNoOpClient creates a no-op client.
func NewNoOpClient() *NoOpClient {
	return &NoOpClient{}
}

// CreateRelease does nothing.
func (c *NoOpClient) CreateRelease(ctx context.Context, release Release) (*ReleaseInfo, error) {
	return &ReleaseInfo{TagName: release.TagName}, nil
}

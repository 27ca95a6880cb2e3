// Package client opens streaming copilot queries over HTTP and feeds the
// response body to the ingestion engine.
//
// The service answers POST /copilot with an SSE body. The client owns
// request construction, bearer auth and connection retries; everything
// after the first response byte belongs to the session engine.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/assay/iox"
	"github.com/pithecene-io/assay/log"
	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/session"
	"github.com/pithecene-io/assay/types"
)

// DefaultConnectTimeout bounds the time to establish the stream; the
// stream itself is unbounded and governed by the caller's context.
const DefaultConnectTimeout = 30 * time.Second

// DefaultRetries is the default number of connection retry attempts.
const DefaultRetries = 2

// Config configures the copilot client.
type Config struct {
	// BaseURL is the service root, e.g. https://copilot.bvbrc.example (required).
	BaseURL string
	// Model selects the backend model; empty uses the service default.
	Model string
	// UserID identifies the requesting user (required).
	UserID string
	// TokenPath is a file holding the bearer token. Empty disables auth.
	TokenPath string
	// SystemPrompt overrides the service's default system prompt.
	SystemPrompt string
	// IncludeHistory asks the service to carry prior conversation turns.
	IncludeHistory bool
	// ConnectTimeout bounds stream establishment (default 30s).
	ConnectTimeout time.Duration
	// Retries is the number of connection retry attempts (default 2).
	// Retries apply only before the first response byte; a stream that
	// drops mid-flight surfaces as an unexpected_end result instead.
	Retries int
}

// Validate checks required client configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("client requires a base URL")
	}
	if c.UserID == "" {
		return errors.New("client requires a user id")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", c.Retries)
	}
	return nil
}

// queryRequest is the wire shape of one streaming query.
type queryRequest struct {
	Query          string `json:"query"`
	Model          string `json:"model,omitempty"`
	UserID         string `json:"user_id"`
	SessionID      string `json:"session_id"`
	Stream         bool   `json:"stream"`
	IncludeHistory bool   `json:"include_history"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
}

// StatusError is returned for non-2xx responses when opening a stream.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Client issues streaming copilot queries.
type Client struct {
	config Config
	http   *http.Client
	logger *log.Logger
	token  string
}

// New creates a client from the given config, loading the bearer token
// from disk when a token path is configured.
func New(cfg Config, logger *log.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	var token string
	if cfg.TokenPath != "" {
		raw, err := os.ReadFile(cfg.TokenPath)
		if err != nil {
			return nil, fmt.Errorf("read token file: %w", err)
		}
		token = strings.TrimSpace(string(raw))
		if token == "" {
			return nil, fmt.Errorf("token file %s is empty", cfg.TokenPath)
		}
	}

	// No overall client timeout: SSE bodies stay open for the whole
	// job. ResponseHeaderTimeout bounds each attempt up to the response
	// headers without touching the open body afterwards.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.ConnectTimeout

	return &Client{
		config: cfg,
		http:   &http.Client{Transport: transport},
		logger: logger,
		token:  token,
	}, nil
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Stream opens the SSE response body for one query. The caller owns the
// returned body and must close it; cancel ctx to abort mid-stream.
func (c *Client) Stream(ctx context.Context, query, sessionID string) (io.ReadCloser, error) {
	body, err := json.Marshal(queryRequest{
		Query:          query,
		Model:          c.config.Model,
		UserID:         c.config.UserID,
		SessionID:      sessionID,
		Stream:         true,
		IncludeHistory: c.config.IncludeHistory,
		SystemPrompt:   c.config.SystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + c.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context canceled: %w", err)
		}

		// Exponential backoff before retries (not before first attempt)
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
			c.logger.Debug("retrying stream open", map[string]any{
				"attempt": i + 1,
			})
		}

		stream, err := c.openStream(ctx, body)
		if err == nil {
			return stream, nil
		}
		lastErr = err

		// 4xx responses are non-retriable
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
			return nil, fmt.Errorf("non-retriable error: %w", err)
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// openStream performs a single POST /copilot and returns the open body
// on 2xx. The transport's header timeout covers establishment only;
// once the body is handed back, only ctx bounds it.
func (c *Client) openStream(ctx context.Context, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/copilot", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		iox.DiscardClose(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	return resp.Body, nil
}

// Run issues one query and consumes the stream to its terminal result.
// observer may be nil; it receives every dispatched event for progress
// reporting or journaling.
func (c *Client) Run(ctx context.Context, query string, meta *types.SessionMeta, collector *metrics.Collector, observer session.EventObserver) (*session.Result, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	c.logger.Info("opening copilot stream", map[string]any{
		"model": c.config.Model,
	})

	stream, err := c.Stream(ctx, query, meta.SessionID)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(stream)

	engine := session.NewEngine(c.logger, collector, observer)
	return engine.Consume(ctx, stream)
}

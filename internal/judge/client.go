// Package judge is the HTTP transport for the external judgment service.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/the-focus-must-flow/internal/common"
	"github.com/Veraticus/the-focus-must-flow/internal/model"
)

// Transport errors.
var (
	ErrMalformedResponse = errors.New("malformed judgment response")
	ErrStatus            = errors.New("unexpected judgment status")
	ErrMissingEndpoint   = fmt.Errorf("judgment endpoint: %w", common.ErrMissingConfig)
	ErrRateLimited       = errors.New("judgment rate limit exceeded")
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 64 << 10

// Config holds the transport settings.
type Config struct {
	Endpoint          string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int // 0 disables client-side limiting
}

// Client posts escalation requests as JSON and decodes the verdict.
type Client struct {
	httpClient *http.Client
	limiter    *rateLimiter
	endpoint   string
	apiKey     string
}

// Request is the wire form of an escalation request.
type Request struct {
	TaskTitle      string `json:"task_title"`
	AppName        string `json:"app_name"`
	BundleID       string `json:"bundle_id"`
	WindowTitle    string `json:"window_title"`
	URLHost        string `json:"url_host"`
	URLPath        string `json:"url_path"`
	Category       string `json:"category"`
	Tone           string `json:"tone"`
	Persona        string `json:"persona"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	Emoji          bool   `json:"emoji"`
}

// Response is the wire form of an escalation result.
type Response struct {
	Confidence *float64 `json:"confidence"`
	Verdict    string   `json:"verdict"`
	Message    string   `json:"message"`
	Rationale  string   `json:"rationale"`
	AllowHosts []string `json:"allow_hosts,omitempty"`
}

// NewClient creates a judgment client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, ErrMissingEndpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 6 * time.Second
	}

	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		limiter:  newRateLimiter(cfg.RequestsPerMinute, time.Now),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// NewRequest converts an escalation request and presentation preferences to wire form.
func NewRequest(req model.EscalationRequest, prefs model.Preferences) Request {
	return Request{
		TaskTitle:      req.TaskTitle,
		AppName:        req.AppName,
		BundleID:       req.BundleID,
		WindowTitle:    req.WindowTitle,
		URLHost:        req.URLHost,
		URLPath:        req.URLPath,
		Category:       string(req.Category),
		ElapsedSeconds: req.ElapsedSeconds,
		Tone:           string(prefs.Tone),
		Persona:        prefs.Persona,
		Emoji:          prefs.Emoji,
	}
}

// Judge sends one request and waits for the verdict, bounded by ctx and the client timeout.
func (c *Client) Judge(ctx context.Context, req model.EscalationRequest, prefs model.Preferences) (model.EscalationResult, error) {
	if !c.limiter.tryAcquire() {
		return model.EscalationResult{}, ErrRateLimited
	}

	body, err := json.Marshal(NewRequest(req, prefs))
	if err != nil {
		return model.EscalationResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.EscalationResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.EscalationResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.EscalationResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return model.EscalationResult{}, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return ParseResponse(data)
}

// ParseResponse decodes and validates a response body.
func ParseResponse(data []byte) (model.EscalationResult, error) {
	var wire Response
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.EscalationResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	verdict := model.JudgmentVerdict(strings.ToLower(strings.TrimSpace(wire.Verdict)))
	if !verdict.Valid() {
		return model.EscalationResult{}, fmt.Errorf("%w: unknown verdict %q", ErrMalformedResponse, wire.Verdict)
	}
	if wire.Confidence == nil {
		return model.EscalationResult{}, fmt.Errorf("%w: missing confidence", ErrMalformedResponse)
	}
	confidence := *wire.Confidence
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return model.EscalationResult{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformedResponse, confidence)
	}

	hosts := make([]string, 0, len(wire.AllowHosts))
	for _, h := range wire.AllowHosts {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		hosts = nil
	}

	return model.EscalationResult{
		Verdict:    verdict,
		Confidence: confidence,
		Message:    strings.TrimSpace(wire.Message),
		Rationale:  strings.TrimSpace(wire.Rationale),
		AllowHosts: hosts,
	}, nil
}

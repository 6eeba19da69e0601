package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"venturelab/internal/metrics"
)

const (
	defaultTimeout     = 120 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
)

type HTTPConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	RatePerMinute int
	Burst         int
	// Headers are sent with every request (OpenRouter attribution headers, for instance).
	Headers     map[string]string
	HTTPClient  *http.Client
	BaseBackoff time.Duration
	Logger      *zap.Logger
}

// HTTPClient talks to an OpenAI-compatible /chat/completions endpoint.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	headers    map[string]string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	log        *zap.Logger
}

func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("llm base url required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RatePerMinute > 0 {
		limit = rate.Limit(float64(cfg.RatePerMinute) / 60)
		if burst <= 0 {
			burst = 1
		}
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = defaultMaxRetries
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = defaultBaseBackoff
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		headers:    cfg.Headers,
		httpClient: hc,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: retries,
		backoff:    backoff,
		log:        log,
	}, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete waits on the rate limiter, then sends the request, retrying
// transport failures, 429 and 5xx answers with exponential backoff.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (Response, error) {
	if req.Model == "" {
		return Response{}, fmt.Errorf("model required")
	}
	if len(req.Messages) == 0 {
		return Response{}, fmt.Errorf("messages required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limiter: %w", err)
	}
	body := chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			c.log.Warn("retrying completion", zap.String("model", req.Model), zap.Int("attempt", attempt), zap.Duration("backoff", wait), zap.Error(lastErr))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return Response{}, ctx.Err()
			}
		}
		resp, err := c.do(ctx, body)
		if err == nil {
			metrics.LLMRequests.WithLabelValues(req.Model, "ok").Inc()
			metrics.LLMTokens.WithLabelValues(req.Model).Add(float64(resp.Usage.TotalTokens))
			return resp, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			metrics.LLMRequests.WithLabelValues(req.Model, "error").Inc()
			return Response{}, err
		}
	}
	metrics.LLMRequests.WithLabelValues(req.Model, "exhausted").Inc()
	return Response{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) do(ctx context.Context, body chatRequest) (Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, &retryableError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return Response{}, &retryableError{err: fmt.Errorf("read response: %w", err)}
	}
	if res.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		var ce chatError
		if json.Unmarshal(raw, &ce) == nil && ce.Error.Message != "" {
			msg = ce.Error.Message
		}
		statusErr := &StatusError{StatusCode: res.StatusCode, Message: msg}
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			return Response{}, &retryableError{err: statusErr}
		}
		return Response{}, statusErr
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return Response{}, ErrEmptyCompletion
	}
	model := parsed.Model
	if model == "" {
		model = body.Model
	}
	return Response{
		Text:  parsed.Choices[0].Message.Content,
		Model: model,
		Usage: parsed.Usage,
	}, nil
}

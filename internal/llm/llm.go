// Package llm is the completion-service boundary: a typed request/response
// contract, an OpenAI-compatible HTTP client (OpenRouter, Perplexity), a
// Redis-backed response cache and schema-checked JSON decoding.
package llm

import (
	"context"
	"errors"
	"fmt"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// JSON asks the service for a JSON object response.
	JSON bool `json:"json,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Response struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Client sends one completion request.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Forgetter is implemented by clients that keep completions. Forget drops the
// stored answer for req so the next identical request goes upstream.
type Forgetter interface {
	Forget(ctx context.Context, req Request) error
}

// ErrEmptyCompletion is returned when the service answers without content.
var ErrEmptyCompletion = errors.New("empty completion")

// StatusError is a non-2xx answer from the completion service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion service status %d: %s", e.StatusCode, e.Message)
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// System and User build role-tagged messages.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }

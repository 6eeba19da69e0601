// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"venturelab/internal/llm"
)

// Reply is one scripted answer.
type Reply struct {
	Text   string
	Err    error
	Tokens int
}

// Client replays Replies in order and records every request it receives.
// Once the script is exhausted the last reply repeats.
type Client struct {
	mu      sync.Mutex
	replies []Reply
	last    *Reply
	calls   []llm.Request
}

func New(replies ...Reply) *Client {
	return &Client{replies: replies}
}

// Text is shorthand for a successful reply.
func Text(s string) Reply { return Reply{Text: s, Tokens: 42} }

// Fail is shorthand for an error reply.
func Fail(err error) Reply { return Reply{Err: err} }

func (c *Client) Push(replies ...Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, replies...)
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	var r Reply
	switch {
	case len(c.replies) > 0:
		r = c.replies[0]
		c.replies = c.replies[1:]
		c.last = &r
	case c.last != nil:
		r = *c.last
	default:
		return llm.Response{}, errors.New("llmtest: no scripted reply")
	}
	if r.Err != nil {
		return llm.Response{}, r.Err
	}
	return llm.Response{
		Text:  r.Text,
		Model: req.Model,
		Usage: llm.Usage{TotalTokens: r.Tokens},
	}, nil
}

func (c *Client) Calls() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Request, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

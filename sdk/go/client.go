package venturelabsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal venturelab HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no credentials are set. The server
	// honours it only with auth.allow_actor_header.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults. Stage calls wait on a model, so
// the timeout is generous.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  3 * time.Minute,
	}
}

// Idea represents the API idea model (partial).
type Idea struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Domain           string  `json:"domain"`
	TargetCustomer   string  `json:"target_customer,omitempty"`
	Status           string  `json:"status"`
	Version          int64   `json:"version"`
	ResearchDocID    *string `json:"research_doc_id,omitempty"`
	Score            *Score  `json:"score,omitempty"`
	Verdict          *string `json:"verdict,omitempty"`
	ApprovalDecision *string `json:"approval_decision,omitempty"`
	ApprovedBy       *string `json:"approved_by,omitempty"`
	VentureID        *string `json:"venture_id,omitempty"`
	LastError        *string `json:"last_error,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type Score struct {
	RubricVersion   string   `json:"rubric_version"`
	RawTotal        float64  `json:"raw_total"`
	Confidence      float64  `json:"confidence"`
	FinalScore      float64  `json:"final_score"`
	KillReasons     []string `json:"kill_reasons"`
	NextValidations []string `json:"next_validation_steps"`
}

// CreateIdea is the request body for CreateIdea.
type CreateIdea struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Domain          string `json:"domain,omitempty"`
	TargetCustomer  string `json:"target_customer,omitempty"`
	InitialThoughts string `json:"initial_thoughts,omitempty"`
}

type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Type  string `json:"type"`
}

type IdeaDetail struct {
	Idea     Idea      `json:"idea"`
	Research *Document `json:"research_document,omitempty"`
}

type IdeaPage struct {
	Items      []Idea `json:"items"`
	NextCursor string `json:"next_cursor"`
}

type ScoreResult struct {
	Idea   Idea `json:"idea"`
	Cached bool `json:"cached"`
}

type CompileStats struct {
	Projects int `json:"projects"`
	Phases   int `json:"phases"`
	Tasks    int `json:"tasks"`
}

type CompileResult struct {
	Idea  Idea         `json:"idea"`
	Stats CompileStats `json:"stats"`
}

type Task struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
	Order    int    `json:"order"`
}

type Phase struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
	Tasks []Task `json:"tasks"`
}

type Project struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Status string  `json:"status"`
	Phases []Phase `json:"phases"`
}

// Venture is returned by ListVentures without Projects and by GetVenture with them.
type Venture struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Domain   string    `json:"domain"`
	Status   string    `json:"status"`
	OneLiner string    `json:"one_liner,omitempty"`
	IdeaID   string    `json:"idea_id,omitempty"`
	Projects []Project `json:"projects,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityID   string `json:"entity_id"`
	EntityKind string `json:"entity_kind"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) CreateIdea(ctx context.Context, in CreateIdea) (Idea, error) {
	var resp Idea
	err := c.do(ctx, http.MethodPost, "ideas", in, &resp)
	return resp, err
}

// ListIdeas returns one page of ideas; status may be empty.
func (c *Client) ListIdeas(ctx context.Context, status string, limit int, cursor string) (IdeaPage, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp IdeaPage
	err := c.do(ctx, http.MethodGet, withQuery("ideas", q), nil, &resp)
	return resp, err
}

func (c *Client) GetIdea(ctx context.Context, id string) (IdeaDetail, error) {
	var resp IdeaDetail
	err := c.do(ctx, http.MethodGet, "ideas/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) DeleteIdea(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "ideas/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Research(ctx context.Context, id string) (Idea, error) {
	var resp Idea
	err := c.do(ctx, http.MethodPost, ideaPath(id, "research"), nil, &resp)
	return resp, err
}

// UpdateResearch replaces the research document body.
func (c *Client) UpdateResearch(ctx context.Context, id, content string) (Idea, error) {
	var resp Idea
	err := c.do(ctx, http.MethodPut, ideaPath(id, "research"), map[string]any{"content": content}, &resp)
	return resp, err
}

func (c *Client) Score(ctx context.Context, id string) (ScoreResult, error) {
	var resp ScoreResult
	err := c.do(ctx, http.MethodPost, ideaPath(id, "score"), nil, &resp)
	return resp, err
}

// Approve records decision ("approved", "parked" or "killed").
func (c *Client) Approve(ctx context.Context, id, decision, comment string) (Idea, error) {
	body := map[string]any{"decision": decision}
	if comment != "" {
		body["comment"] = comment
	}
	var resp Idea
	err := c.do(ctx, http.MethodPost, ideaPath(id, "approval"), body, &resp)
	return resp, err
}

// Compile creates a new venture when ventureID is empty, otherwise it
// scaffolds the plan under the existing venture.
func (c *Client) Compile(ctx context.Context, id, ventureID string) (CompileResult, error) {
	body := map[string]any{"new_venture": ventureID == ""}
	if ventureID != "" {
		body["venture_id"] = ventureID
	}
	var resp CompileResult
	err := c.do(ctx, http.MethodPost, ideaPath(id, "compile"), body, &resp)
	return resp, err
}

func (c *Client) ListVentures(ctx context.Context) ([]Venture, error) {
	var resp []Venture
	err := c.do(ctx, http.MethodGet, "ventures", nil, &resp)
	return resp, err
}

func (c *Client) GetVenture(ctx context.Context, id string) (Venture, error) {
	var resp Venture
	err := c.do(ctx, http.MethodGet, "ventures/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) GetDocument(ctx context.Context, id string) (Document, error) {
	var resp Document
	err := c.do(ctx, http.MethodGet, "documents/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Events returns recent events for an entity; entityID may be empty.
func (c *Client) Events(ctx context.Context, entityID string, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, entityID, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing, newest first.
func (c *Client) EventsPage(ctx context.Context, entityID string, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if entityID != "" {
		q.Set("entity_id", entityID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("events", q), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+"/"+strings.TrimLeft(endpoint, "/"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func ideaPath(id, action string) string {
	return "ideas/" + url.PathEscape(id) + "/" + action
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}

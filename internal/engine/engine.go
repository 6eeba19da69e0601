package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"venturelab/internal/apperr"
	"venturelab/internal/config"
	"venturelab/internal/domain"
	"venturelab/internal/events"
	"venturelab/internal/llm"
	"venturelab/internal/metrics"
	"venturelab/internal/prompts"
	"venturelab/internal/repo"
	"venturelab/internal/scoring"
)

// Clients are the completion services each stage talks to.
type Clients struct {
	Research llm.Client
	Score    llm.Client
	Compile  llm.Client
}

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Now     func() time.Time
	LLM     Clients
	Prompts *prompts.Loader
	Log     *zap.Logger
}

func New(db *sql.DB, cfg *config.Config, clients Clients, log *zap.Logger) Engine {
	if log == nil {
		log = zap.NewNop()
	}
	overrideDir := ""
	if cfg != nil {
		overrideDir = cfg.Prompts.OverrideDir
	}
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Config:  cfg,
		Now:     time.Now,
		LLM:     clients,
		Prompts: prompts.NewLoader(overrideDir),
		Log:     log,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339Nano)
}

func (e Engine) log() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e Engine) rules() domain.Rules {
	if e.Config == nil {
		return domain.Rules{}
	}
	return domain.Rules{AllowParkedRescore: e.Config.Lifecycle.AllowParkedRescore}
}

func (e Engine) emit(ctx context.Context, tx *sql.Tx, evtType, kind, id, actorID string, payload events.EventPayload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, evtType, kind, id, actorID, payload)
}

func (e Engine) rubric() (scoring.Rubric, error) {
	version := scoring.V1.Version
	if e.Config != nil && e.Config.Scoring.RubricVersion != "" {
		version = e.Config.Scoring.RubricVersion
	}
	return scoring.RubricFor(version)
}

func (e Engine) thresholds() scoring.Thresholds {
	if e.Config == nil {
		return scoring.Thresholds{Green: 70, Yellow: 50}
	}
	return scoring.Thresholds{Green: e.Config.Scoring.GreenThreshold, Yellow: e.Config.Scoring.YellowThreshold}
}

// mapStoreErr translates repository errors into the apperr taxonomy.
func mapStoreErr(op, what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return apperr.NotFound(op, what)
	case errors.Is(err, repo.ErrVersionConflict):
		return apperr.Wrap(apperr.KindStateConflict, op, fmt.Errorf("%s was modified concurrently: %w", what, err))
	}
	var te domain.TransitionError
	if errors.As(err, &te) {
		return apperr.Wrap(apperr.KindStateConflict, op, err)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.KindInternal, op, err)
}

// ideaChange is one guarded write of an idea row.
type ideaChange struct {
	op      string
	from    domain.Status
	event   string
	actorID string
	payload events.EventPayload
	// before runs inside the transaction ahead of the idea update.
	before func(tx *sql.Tx) error
}

// saveIdea writes it under its version guard, checking the status change
// against the transition table and appending the change's event.
func (e Engine) saveIdea(ctx context.Context, it domain.Idea, c ideaChange) (domain.Idea, error) {
	if c.from != "" && c.from != it.Status {
		if err := domain.EnsureTransition(c.from, it.Status, e.rules()); err != nil {
			return it, mapStoreErr(c.op, "idea", err)
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return it, mapStoreErr(c.op, "idea", err)
	}
	defer tx.Rollback()

	if c.before != nil {
		if err := c.before(tx); err != nil {
			return it, mapStoreErr(c.op, "idea", err)
		}
	}
	it.UpdatedAt = e.stamp()
	saved, err := e.Repo.UpdateIdea(ctx, tx, it)
	if err != nil {
		return it, mapStoreErr(c.op, "idea", err)
	}
	if c.event != "" {
		payload := c.payload
		if payload == nil {
			payload = events.EventPayload{}
		}
		if c.from != "" && c.from != saved.Status {
			payload["from"] = string(c.from)
		}
		payload["status"] = string(saved.Status)
		if err := e.emit(ctx, tx, c.event, "idea", saved.ID, c.actorID, payload); err != nil {
			return it, mapStoreErr(c.op, "idea", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return it, mapStoreErr(c.op, "idea", err)
	}
	return saved, nil
}

// enterStage moves the idea into the stage's in-flight status. Only one caller
// can win the version race; the others get a state conflict before any
// completion request is made.
func (e Engine) enterStage(ctx context.Context, op string, stage domain.Stage, it domain.Idea, actorID, evt string) (domain.Idea, error) {
	next, err := domain.StageEntry(stage, it.Status, e.rules())
	if err != nil {
		return it, mapStoreErr(op, "idea", err)
	}
	from := it.Status
	it.Status = next
	it.LastError = nil
	return e.saveIdea(ctx, it, ideaChange{op: op, from: from, event: evt, actorID: actorID})
}

// revertStage puts an in-flight idea back to prev (or failed) and records why.
func (e Engine) revertStage(ctx context.Context, op string, it domain.Idea, prev domain.Status, actorID, evt string, cause error) domain.Idea {
	from := it.Status
	it.Status = prev
	msg := cause.Error()
	it.LastError = &msg
	// The caller's context may already be cancelled; the revert must still land.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	saved, err := e.saveIdea(rctx, it, ideaChange{
		op: op, from: from, event: evt, actorID: actorID,
		payload: events.EventPayload{"error": msg},
	})
	if err != nil {
		e.log().Error("stage revert failed", zap.String("idea_id", it.ID), zap.String("op", op), zap.Error(err))
		return it
	}
	return saved
}

// forgetCompletion drops a completion the engine rejected from the client's
// cache so that a retry reaches the model again.
func (e Engine) forgetCompletion(ctx context.Context, client llm.Client, req llm.Request) {
	f, ok := client.(llm.Forgetter)
	if !ok {
		return
	}
	if err := f.Forget(context.WithoutCancel(ctx), req); err != nil {
		e.log().Warn("cached completion not dropped", zap.String("model", req.Model), zap.Error(err))
	}
}

// CreateIdeaInput holds the immutable fields of a new idea.
type CreateIdeaInput struct {
	Name            string
	Description     string
	Domain          string
	TargetCustomer  string
	InitialThoughts string
	ActorID         string
}

func (e Engine) CreateIdea(ctx context.Context, in CreateIdeaInput) (domain.Idea, error) {
	const op = "create idea"
	name := strings.TrimSpace(in.Name)
	desc := strings.TrimSpace(in.Description)
	if name == "" {
		return domain.Idea{}, apperr.Validation(op, "name is required")
	}
	if desc == "" {
		return domain.Idea{}, apperr.Validation(op, "description is required")
	}
	dom, ok := domain.ParseDomain(strings.TrimSpace(in.Domain))
	if !ok {
		return domain.Idea{}, apperr.Validation(op, "unknown domain %q", in.Domain)
	}
	now := e.stamp()
	it := domain.Idea{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     desc,
		Domain:          dom,
		TargetCustomer:  strings.TrimSpace(in.TargetCustomer),
		InitialThoughts: strings.TrimSpace(in.InitialThoughts),
		Status:          domain.StatusIdea,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Idea{}, mapStoreErr(op, "idea", err)
	}
	defer tx.Rollback()
	if err := e.Repo.InsertIdea(ctx, tx, it); err != nil {
		return domain.Idea{}, mapStoreErr(op, "idea", err)
	}
	if err := e.emit(ctx, tx, events.IdeaCreated, "idea", it.ID, in.ActorID, events.EventPayload{
		"name": it.Name, "domain": string(it.Domain), "status": string(it.Status),
	}); err != nil {
		return domain.Idea{}, mapStoreErr(op, "idea", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Idea{}, mapStoreErr(op, "idea", err)
	}
	e.log().Info("idea created", zap.String("idea_id", it.ID), zap.String("domain", string(it.Domain)))
	return it, nil
}

// IdeaDetail is an idea together with its research document, if any.
type IdeaDetail struct {
	Idea     domain.Idea      `json:"idea"`
	Research *domain.Document `json:"research_document,omitempty"`
}

func (e Engine) GetIdea(ctx context.Context, id string) (IdeaDetail, error) {
	const op = "get idea"
	it, err := e.Repo.GetIdea(ctx, id)
	if err != nil {
		return IdeaDetail{}, mapStoreErr(op, "idea", err)
	}
	out := IdeaDetail{Idea: it}
	if it.ResearchDocID != nil {
		doc, err := e.Repo.GetDocument(ctx, *it.ResearchDocID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return IdeaDetail{}, mapStoreErr(op, "document", err)
		}
		if err == nil {
			out.Research = &doc
		}
	}
	return out, nil
}

type ListIdeasInput struct {
	Status string
	Limit  int
	Cursor string
}

type IdeaPage struct {
	Items      []domain.Idea `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

func (e Engine) ListIdeas(ctx context.Context, in ListIdeasInput) (IdeaPage, error) {
	const op = "list ideas"
	if in.Status != "" {
		if _, err := domain.ParseStatus(in.Status); err != nil {
			return IdeaPage{}, apperr.Validation(op, "%v", err)
		}
	}
	ts, id, err := repo.ParseCursor(in.Cursor)
	if err != nil {
		return IdeaPage{}, apperr.Validation(op, "%v", err)
	}
	limit := repo.NormalizeLimit(in.Limit)
	items, err := e.Repo.ListIdeas(ctx, repo.IdeaFilter{
		Status:          in.Status,
		Limit:           limit + 1,
		CursorCreatedAt: ts,
		CursorID:        id,
	})
	if err != nil {
		return IdeaPage{}, mapStoreErr(op, "idea", err)
	}
	page := IdeaPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1]
		page.NextCursor = repo.ComposeCursor(last.CreatedAt, last.ID)
	}
	if page.Items == nil {
		page.Items = []domain.Idea{}
	}
	return page, nil
}

// DeleteIdea removes the idea and the research document it owns. Compiled
// ventures are independent and stay.
func (e Engine) DeleteIdea(ctx context.Context, id, actorID string) error {
	const op = "delete idea"
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return mapStoreErr(op, "idea", err)
	}
	defer tx.Rollback()
	it, err := e.Repo.GetIdeaTx(ctx, tx, id)
	if err != nil {
		return mapStoreErr(op, "idea", err)
	}
	if it.Status.InFlight() {
		return apperr.Conflict(op, "idea is %s; wait for the stage to finish", it.Status)
	}
	if err := e.Repo.DeleteIdea(ctx, tx, id); err != nil {
		return mapStoreErr(op, "idea", err)
	}
	if it.ResearchDocID != nil {
		if err := e.Repo.DeleteDocument(ctx, tx, *it.ResearchDocID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return mapStoreErr(op, "document", err)
		}
	}
	if err := e.emit(ctx, tx, events.IdeaDeleted, "idea", id, actorID, events.EventPayload{
		"name": it.Name, "status": string(it.Status),
	}); err != nil {
		return mapStoreErr(op, "idea", err)
	}
	if err := tx.Commit(); err != nil {
		return mapStoreErr(op, "idea", err)
	}
	return nil
}

// RefreshStatusGauge publishes idea counts per status.
func (e Engine) RefreshStatusGauge(ctx context.Context) error {
	counts, err := e.Repo.CountIdeasByStatus(ctx)
	if err != nil {
		return err
	}
	for _, s := range domain.Statuses {
		metrics.IdeasByStatus.WithLabelValues(string(s)).Set(float64(counts[string(s)]))
	}
	return nil
}

func (e Engine) stageTimer(stage domain.Stage) func(outcome string) {
	start := e.now()
	return func(outcome string) {
		metrics.ObserveStage(string(stage), outcome, e.now().Sub(start))
	}
}

func completionRequest(p prompts.Prompt, model string, temperature float64, maxTokens int) llm.Request {
	msgs := make([]llm.Message, 0, 2)
	if p.Meta.System != "" {
		msgs = append(msgs, llm.System(p.Meta.System))
	}
	msgs = append(msgs, llm.User(p.User))
	if p.Meta.Model != "" {
		model = p.Meta.Model
	}
	if p.Meta.Temperature != nil {
		temperature = *p.Meta.Temperature
	}
	return llm.Request{
		Model:       model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		JSON:        p.Meta.JSON,
	}
}

// stageRequest resolves model settings for a stage and renders its prompt.
func (e Engine) stageRequest(stage config.StageLLMConfig, promptID string, data any) (llm.Request, error) {
	p, err := e.Prompts.Render(promptID, data)
	if err != nil {
		return llm.Request{}, err
	}
	model, temp, maxTokens := "", 0.0, 0
	if e.Config != nil {
		resolved := e.Config.Resolved(stage)
		model = resolved.Model
		if resolved.Temperature != nil {
			temp = *resolved.Temperature
		}
		maxTokens = e.Config.LLM.MaxTokens
	}
	return completionRequest(p, model, temp, maxTokens), nil
}

func ideaData(it domain.Idea) prompts.IdeaData {
	return prompts.IdeaData{
		Name:            it.Name,
		Description:     it.Description,
		Domain:          string(it.Domain),
		TargetCustomer:  it.TargetCustomer,
		InitialThoughts: it.InitialThoughts,
	}
}

func strPtr(s string) *string { return &s }

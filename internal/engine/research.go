package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"venturelab/internal/apperr"
	"venturelab/internal/config"
	"venturelab/internal/domain"
	"venturelab/internal/events"
	"venturelab/internal/metrics"
	"venturelab/internal/prompts"
)

const researchDocType = "research"

// Research sends the idea to the research model and stores the answer as
// the idea's research document. Any failure puts the idea back to idea.
func (e Engine) Research(ctx context.Context, id, actorID string) (domain.Idea, error) {
	const op = "research"
	if e.LLM.Research == nil {
		return domain.Idea{}, apperr.New(apperr.KindInternal, op, "research client not configured")
	}
	it, err := e.Repo.GetIdea(ctx, id)
	if err != nil {
		return domain.Idea{}, mapStoreErr(op, "idea", err)
	}
	var stage config.StageLLMConfig
	if e.Config != nil {
		stage = e.Config.Research
	}
	req, err := e.stageRequest(stage, prompts.Research, ideaData(it))
	if err != nil {
		return it, apperr.Wrap(apperr.KindInternal, op, err)
	}

	prev := it.Status
	it, err = e.enterStage(ctx, op, domain.StageResearch, it, actorID, events.IdeaResearchStarted)
	if err != nil {
		return it, err
	}
	done := e.stageTimer(domain.StageResearch)
	log := e.log().With(zap.String("idea_id", it.ID), zap.String("stage", op), zap.String("model", req.Model))
	log.Info("stage started")

	resp, err := e.LLM.Research.Complete(ctx, req)
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = fmt.Errorf("empty research content")
	}
	if err != nil {
		reverted := e.revertStage(ctx, op, it, prev, actorID, events.IdeaResearchFailed, err)
		done(metrics.OutcomeReverted)
		log.Warn("stage failed", zap.Error(err))
		return reverted, apperr.Wrap(apperr.KindUpstream, op, fmt.Errorf("%w: %w", apperr.ErrResearchFailed, err))
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	tokens := resp.Usage.TotalTokens
	now := e.stamp()
	doc := domain.Document{
		ID:        uuid.NewString(),
		Title:     "Research: " + it.Name,
		Body:      resp.Text,
		Type:      researchDocType,
		Domain:    string(it.Domain),
		CreatedAt: now,
		UpdatedAt: now,
	}
	inflight := it
	it.Status = domain.StageDone(domain.StageResearch)
	it.ResearchDocID = &doc.ID
	it.ResearchCompletedAt = strPtr(now)
	it.ResearchModel = &model
	it.ResearchTokens = &tokens
	saved, err := e.saveIdea(ctx, it, ideaChange{
		op: op, from: inflight.Status, event: events.IdeaResearchDone, actorID: actorID,
		payload: events.EventPayload{"document_id": doc.ID, "model": model, "tokens": tokens},
		before: func(tx *sql.Tx) error {
			return e.Repo.InsertDocument(ctx, tx, doc)
		},
	})
	if err != nil {
		reverted := e.revertStage(ctx, op, inflight, prev, actorID, events.IdeaResearchFailed, err)
		done(metrics.OutcomeReverted)
		return reverted, err
	}
	done(metrics.OutcomeSuccess)
	log.Info("stage finished", zap.Int("tokens", tokens), zap.String("document_id", doc.ID))
	return saved, nil
}

// UpdateResearch replaces the research text. Status is unchanged; a later
// Score call sees a different input hash and scores afresh. Parked ideas
// accept edits only when parked re-scoring is enabled.
func (e Engine) UpdateResearch(ctx context.Context, id, content, actorID string) (domain.Idea, error) {
	const op = "update research"
	if strings.TrimSpace(content) == "" {
		return domain.Idea{}, apperr.Validation(op, "content is required")
	}
	it, err := e.Repo.GetIdea(ctx, id)
	if err != nil {
		return domain.Idea{}, mapStoreErr(op, "idea", err)
	}
	switch {
	case it.Status == domain.StatusResearched, it.Status == domain.StatusScored:
	case it.Status == domain.StatusParked && e.rules().AllowParkedRescore:
	default:
		return it, apperr.Conflict(op, "research can only be edited while researched or scored, idea is %s", it.Status)
	}
	if it.ResearchDocID == nil {
		return it, apperr.Conflict(op, "idea has no research document")
	}
	docID := *it.ResearchDocID
	now := e.stamp()
	return e.saveIdea(ctx, it, ideaChange{
		op: op, from: it.Status, event: events.IdeaResearchEdited, actorID: actorID,
		payload: events.EventPayload{"document_id": docID, "length": len(content)},
		before: func(tx *sql.Tx) error {
			return e.Repo.UpdateDocumentBody(ctx, tx, docID, content, now)
		},
	})
}

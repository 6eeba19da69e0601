package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"venturelab/internal/apperr"
	"venturelab/internal/config"
	"venturelab/internal/domain"
	"venturelab/internal/events"
	"venturelab/internal/metrics"
	"venturelab/internal/prompts"
	"venturelab/internal/scoring"
)

type ScoreResult struct {
	Idea   domain.Idea `json:"idea"`
	Cached bool        `json:"cached"`
}

// Score rates the idea against the configured rubric. When the stored score
// was computed from the same description, research and rubric it is returned
// as is with Cached set and no completion request.
func (e Engine) Score(ctx context.Context, id, actorID string) (ScoreResult, error) {
	const op = "score"
	if e.LLM.Score == nil {
		return ScoreResult{}, apperr.New(apperr.KindInternal, op, "score client not configured")
	}
	it, err := e.Repo.GetIdea(ctx, id)
	if err != nil {
		return ScoreResult{}, mapStoreErr(op, "idea", err)
	}
	if _, err := domain.StageEntry(domain.StageScore, it.Status, e.rules()); err != nil {
		return ScoreResult{Idea: it}, mapStoreErr(op, "idea", err)
	}
	if it.ResearchDocID == nil {
		return ScoreResult{Idea: it}, apperr.Conflict(op, "idea has no research document")
	}
	doc, err := e.Repo.GetDocument(ctx, *it.ResearchDocID)
	if err != nil {
		return ScoreResult{Idea: it}, mapStoreErr(op, "research document", err)
	}
	rubric, err := e.rubric()
	if err != nil {
		return ScoreResult{Idea: it}, apperr.Wrap(apperr.KindInternal, op, err)
	}
	hash := scoring.InputHash(it.Description, doc.Body, rubric.Version)

	if it.Score != nil && it.ScoreHash != nil && *it.ScoreHash == hash {
		if err := e.recordCacheHit(ctx, it, actorID, hash); err != nil {
			return ScoreResult{Idea: it}, err
		}
		metrics.CacheLookups.WithLabelValues("score", "hit").Inc()
		metrics.ObserveStage(string(domain.StageScore), metrics.OutcomeCached, 0)
		return ScoreResult{Idea: it, Cached: true}, nil
	}
	metrics.CacheLookups.WithLabelValues("score", "miss").Inc()

	dims := make([]prompts.DimensionData, 0, len(rubric.Dimensions))
	for _, d := range rubric.Dimensions {
		dims = append(dims, prompts.DimensionData{Key: d.Key, Label: d.Label, Max: d.Max, Inverse: d.Inverse})
	}
	var stage config.StageLLMConfig
	if e.Config != nil {
		stage = e.Config.Scoring.StageLLMConfig
	}
	req, err := e.stageRequest(stage, prompts.Score, prompts.ScoreData{
		IdeaData:      ideaData(it),
		Research:      doc.Body,
		RubricVersion: rubric.Version,
		Dimensions:    dims,
	})
	if err != nil {
		return ScoreResult{Idea: it}, apperr.Wrap(apperr.KindInternal, op, err)
	}

	prev := it.Status
	it, err = e.enterStage(ctx, op, domain.StageScore, it, actorID, events.IdeaScoreStarted)
	if err != nil {
		return ScoreResult{Idea: it}, err
	}
	done := e.stageTimer(domain.StageScore)
	log := e.log().With(zap.String("idea_id", it.ID), zap.String("stage", op), zap.String("model", req.Model))
	log.Info("stage started")

	resp, err := e.LLM.Score.Complete(ctx, req)
	if err != nil {
		reverted := e.revertStage(ctx, op, it, prev, actorID, events.IdeaScoreFailed, err)
		done(metrics.OutcomeReverted)
		log.Warn("stage failed", zap.Error(err))
		return ScoreResult{Idea: reverted}, apperr.Wrap(apperr.KindUpstream, op, fmt.Errorf("score request: %w", err))
	}
	score, err := scoring.Parse(resp.Text, rubric)
	if err != nil {
		e.forgetCompletion(ctx, e.LLM.Score, req)
		reverted := e.revertStage(ctx, op, it, prev, actorID, events.IdeaScoreFailed, err)
		done(metrics.OutcomeReverted)
		log.Warn("score answer rejected", zap.Error(err))
		return ScoreResult{Idea: reverted}, apperr.Wrap(apperr.KindParse, op, fmt.Errorf("%w: %w", apperr.ErrScoreParseFailed, err))
	}
	score.Model = resp.Model
	if score.Model == "" {
		score.Model = req.Model
	}
	verdict := scoring.VerdictFor(score.FinalScore, e.thresholds())

	inflight := it
	it.Status = domain.StageDone(domain.StageScore)
	it.Score = &score
	it.Verdict = &verdict
	it.ScoreHash = &hash
	it.ScoredAt = strPtr(e.stamp())
	// A fresh score supersedes any earlier decision.
	it.ApprovalDecision = nil
	it.ApprovalComment = nil
	it.ApprovedBy = nil
	it.ApprovedAt = nil
	saved, err := e.saveIdea(ctx, it, ideaChange{
		op: op, from: inflight.Status, event: events.IdeaScored, actorID: actorID,
		payload: events.EventPayload{"final_score": score.FinalScore, "verdict": string(verdict), "rubric_version": rubric.Version},
	})
	if err != nil {
		reverted := e.revertStage(ctx, op, inflight, prev, actorID, events.IdeaScoreFailed, err)
		done(metrics.OutcomeReverted)
		return ScoreResult{Idea: reverted}, err
	}
	done(metrics.OutcomeSuccess)
	log.Info("stage finished", zap.Float64("final_score", score.FinalScore), zap.String("verdict", string(verdict)),
		zap.Int("tokens", resp.Usage.TotalTokens))
	return ScoreResult{Idea: saved}, nil
}

// recordCacheHit logs the cache hit without touching the idea row.
func (e Engine) recordCacheHit(ctx context.Context, it domain.Idea, actorID, hash string) error {
	const op = "score"
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return mapStoreErr(op, "idea", err)
	}
	defer tx.Rollback()
	if err := e.emit(ctx, tx, events.IdeaScoreCached, "idea", it.ID, actorID, events.EventPayload{"score_hash": hash}); err != nil {
		return mapStoreErr(op, "idea", err)
	}
	return mapStoreErr(op, "idea", tx.Commit())
}

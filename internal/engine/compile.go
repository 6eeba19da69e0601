package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"venturelab/internal/apperr"
	"venturelab/internal/compile"
	"venturelab/internal/config"
	"venturelab/internal/domain"
	"venturelab/internal/events"
	"venturelab/internal/llm"
	"venturelab/internal/metrics"
	"venturelab/internal/prompts"
)

type CompileInput struct {
	ID string
	// NewVenture asks the compile model for a venture and plan. Otherwise the
	// deterministic scaffold is attached to VentureID.
	NewVenture bool
	VentureID  string
	ActorID    string
}

type CompileResult struct {
	Idea  domain.Idea         `json:"idea"`
	Stats domain.CompileStats `json:"stats"`
}

// Compile expands an approved idea into a venture, a project, ordered phases
// and tasks, all written in one transaction with the idea's final update.
func (e Engine) Compile(ctx context.Context, in CompileInput) (CompileResult, error) {
	const op = "compile"
	ventureID := strings.TrimSpace(in.VentureID)
	switch {
	case in.NewVenture && ventureID != "":
		return CompileResult{}, apperr.Validation(op, "venture_id cannot be combined with new_venture")
	case !in.NewVenture && ventureID == "":
		return CompileResult{}, apperr.Validation(op, "venture_id is required unless new_venture is set")
	}
	it, err := e.Repo.GetIdea(ctx, in.ID)
	if err != nil {
		return CompileResult{}, mapStoreErr(op, "idea", err)
	}
	if _, err := domain.StageEntry(domain.StageCompile, it.Status, e.rules()); err != nil {
		return CompileResult{Idea: it}, mapStoreErr(op, "idea", err)
	}

	var (
		target *domain.Venture
		req    *llm.Request
	)
	if in.NewVenture {
		if e.LLM.Compile == nil {
			return CompileResult{Idea: it}, apperr.New(apperr.KindInternal, op, "compile client not configured")
		}
		r, err := e.compileRequest(it)
		if err != nil {
			return CompileResult{Idea: it}, apperr.Wrap(apperr.KindInternal, op, err)
		}
		req = &r
	} else {
		v, err := e.Repo.GetVenture(ctx, ventureID)
		if err != nil {
			return CompileResult{Idea: it}, mapStoreErr(op, "venture", err)
		}
		target = &v
	}

	prev := it.Status
	it, err = e.enterStage(ctx, op, domain.StageCompile, it, in.ActorID, events.IdeaCompileStarted)
	if err != nil {
		return CompileResult{Idea: it}, err
	}
	done := e.stageTimer(domain.StageCompile)
	log := e.log().With(zap.String("idea_id", it.ID), zap.String("stage", op), zap.Bool("new_venture", in.NewVenture))
	log.Info("stage started")

	var plan compile.Plan
	if req != nil {
		resp, err := e.LLM.Compile.Complete(ctx, *req)
		if err != nil {
			reverted := e.revertStage(ctx, op, it, prev, in.ActorID, events.IdeaCompileFailed, err)
			done(metrics.OutcomeReverted)
			log.Warn("stage failed", zap.Error(err))
			return CompileResult{Idea: reverted}, apperr.Wrap(apperr.KindUpstream, op, fmt.Errorf("%w: %w", apperr.ErrCompileFailed, err))
		}
		plan, err = compile.Parse(resp.Text, true)
		if err != nil {
			// A plan that cannot be persisted is not retried automatically.
			e.forgetCompletion(ctx, e.LLM.Compile, *req)
			failed := e.revertStage(ctx, op, it, domain.StatusFailed, in.ActorID, events.IdeaCompileFailed, err)
			done(metrics.OutcomeFailed)
			log.Warn("plan rejected", zap.Error(err))
			return CompileResult{Idea: failed}, apperr.Wrap(apperr.KindParse, op, fmt.Errorf("%w: %w", apperr.ErrCompileFailed, err))
		}
	} else {
		plan = compile.Scaffold(it)
		if err := compile.Validate(plan, false); err != nil {
			reverted := e.revertStage(ctx, op, it, prev, in.ActorID, events.IdeaCompileFailed, err)
			done(metrics.OutcomeReverted)
			return CompileResult{Idea: reverted}, apperr.Wrap(apperr.KindInternal, op, err)
		}
		plan.Phases = compile.Renumber(plan.Phases)
	}

	now := e.stamp()
	venture := e.ventureFor(it, plan, target, now)
	_, phaseCount, taskCount := plan.Counts()
	stats := domain.CompileStats{Projects: 1, Phases: phaseCount, Tasks: taskCount}

	inflight := it
	it.Status = domain.StageDone(domain.StageCompile)
	it.VentureID = &venture.ID
	it.CompiledAt = strPtr(now)
	it.Stats = &stats
	saved, err := e.saveIdea(ctx, it, ideaChange{
		op: op, from: inflight.Status, event: events.IdeaCompiled, actorID: in.ActorID,
		payload: events.EventPayload{"venture_id": venture.ID, "projects": stats.Projects, "phases": stats.Phases, "tasks": stats.Tasks},
		before: func(tx *sql.Tx) error {
			return e.insertPlan(ctx, tx, venture, target == nil, plan, now, in.ActorID)
		},
	})
	if err != nil {
		reverted := e.revertStage(ctx, op, inflight, prev, in.ActorID, events.IdeaCompileFailed, err)
		done(metrics.OutcomeReverted)
		return CompileResult{Idea: reverted}, err
	}
	done(metrics.OutcomeSuccess)
	log.Info("stage finished", zap.String("venture_id", venture.ID), zap.Int("phases", stats.Phases), zap.Int("tasks", stats.Tasks))
	return CompileResult{Idea: saved, Stats: stats}, nil
}

func (e Engine) compileRequest(it domain.Idea) (llm.Request, error) {
	data := prompts.CompileData{IdeaData: ideaData(it)}
	if it.Verdict != nil {
		data.Verdict = string(*it.Verdict)
	}
	if it.Score != nil {
		data.FinalScore = it.Score.FinalScore
		data.NextSteps = it.Score.NextValidations
	}
	var stage config.StageLLMConfig
	if e.Config != nil {
		stage = e.Config.Compile
	}
	return e.stageRequest(stage, prompts.Compile, data)
}

func (e Engine) ventureFor(it domain.Idea, plan compile.Plan, existing *domain.Venture, now string) domain.Venture {
	if existing != nil {
		return *existing
	}
	v := domain.Venture{
		ID:          uuid.NewString(),
		Name:        it.Name,
		Description: it.Description,
		Domain:      it.Domain,
		Status:      "planning",
		IdeaID:      it.ID,
		CreatedAt:   now,
	}
	if plan.Venture != nil {
		if name := strings.TrimSpace(plan.Venture.Name); name != "" {
			v.Name = name
		}
		if d := strings.TrimSpace(plan.Venture.Description); d != "" {
			v.Description = d
		}
		v.OneLiner = strings.TrimSpace(plan.Venture.OneLiner)
	}
	return v
}

func (e Engine) insertPlan(ctx context.Context, tx *sql.Tx, v domain.Venture, newVenture bool, plan compile.Plan, now, actorID string) error {
	if newVenture {
		if err := e.Repo.InsertVenture(ctx, tx, v); err != nil {
			return fmt.Errorf("insert venture: %w", err)
		}
		if err := e.emit(ctx, tx, events.VentureCreated, "venture", v.ID, actorID, events.EventPayload{
			"name": v.Name, "idea_id": v.IdeaID,
		}); err != nil {
			return err
		}
	}
	project := domain.Project{
		ID:          uuid.NewString(),
		VentureID:   v.ID,
		Name:        plan.Project.Name,
		Description: plan.Project.Description,
		Status:      "not_started",
		CreatedAt:   now,
	}
	if err := e.Repo.InsertProject(ctx, tx, project); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	for _, ph := range plan.Phases {
		phase := domain.Phase{
			ID:          uuid.NewString(),
			ProjectID:   project.ID,
			Name:        ph.Name,
			Description: ph.Description,
			Order:       ph.Order,
			CreatedAt:   now,
		}
		if err := e.Repo.InsertPhase(ctx, tx, phase); err != nil {
			return fmt.Errorf("insert phase %d: %w", ph.Order, err)
		}
		for i, t := range ph.Tasks {
			task := domain.Task{
				ID:          uuid.NewString(),
				VentureID:   v.ID,
				ProjectID:   project.ID,
				PhaseID:     phase.ID,
				Title:       strings.TrimSpace(t.Title),
				Description: t.Description,
				Priority:    compile.TaskPriority(t.Priority),
				Status:      "todo",
				Order:       i + 1,
				CreatedAt:   now,
			}
			if err := e.Repo.InsertTask(ctx, tx, task); err != nil {
				return fmt.Errorf("insert task: %w", err)
			}
		}
	}
	return nil
}

package engine

import (
	"context"
	"strings"

	"venturelab/internal/apperr"
	"venturelab/internal/domain"
	"venturelab/internal/events"
)

type ApproveInput struct {
	ID       string
	Decision string
	Comment  string
	ActorID  string
}

// Approve records the human decision on a scored idea.
func (e Engine) Approve(ctx context.Context, in ApproveInput) (domain.Idea, error) {
	const op = "approve"
	decision, err := domain.ParseDecision(strings.TrimSpace(in.Decision))
	if err != nil {
		return domain.Idea{}, apperr.Validation(op, "%v", err)
	}
	it, err := e.Repo.GetIdea(ctx, in.ID)
	if err != nil {
		return domain.Idea{}, mapStoreErr(op, "idea", err)
	}
	if it.Status != domain.StatusScored {
		return it, apperr.Conflict(op, "idea must be scored to record a decision, idea is %s", it.Status)
	}
	if decision == domain.DecisionApproved && e.Config != nil && e.Config.Lifecycle.BlockRedApproval &&
		it.Verdict != nil && *it.Verdict == domain.VerdictRed {
		return it, apperr.Conflict(op, "approving a RED verdict is blocked by lifecycle.block_red_approval")
	}
	actor := in.ActorID
	if actor == "" {
		actor = "system"
	}
	from := it.Status
	it.Status = decision.Status()
	it.ApprovalDecision = &decision
	if c := strings.TrimSpace(in.Comment); c != "" {
		it.ApprovalComment = &c
	} else {
		it.ApprovalComment = nil
	}
	it.ApprovedBy = &actor
	it.ApprovedAt = strPtr(e.stamp())
	payload := events.EventPayload{"decision": string(decision)}
	if it.Verdict != nil {
		payload["verdict"] = string(*it.Verdict)
	}
	return e.saveIdea(ctx, it, ideaChange{op: op, from: from, event: events.IdeaDecided, actorID: actor, payload: payload})
}

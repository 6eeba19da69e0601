package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"venturelab/internal/domain"
	"venturelab/internal/engine"
)

type ideaPath struct {
	ID string `path:"id"`
}

type ideaOutput struct {
	Body domain.Idea `json:"body"`
}

func registerIdeas(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-idea",
		Method:        http.MethodPost,
		Path:          "/ideas",
		Summary:       "Create idea",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateIdeaRequest `json:"body"`
	}) (*ideaOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.CreateIdea(ctx, engine.CreateIdeaInput{
			Name:            input.Body.Name,
			Description:     input.Body.Description,
			Domain:          input.Body.Domain,
			TargetCustomer:  input.Body.TargetCustomer,
			InitialThoughts: input.Body.InitialThoughts,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &ideaOutput{Body: it}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-ideas",
		Method:      http.MethodGet,
		Path:        "/ideas",
		Summary:     "List ideas, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body engine.IdeaPage `json:"body"`
	}, error) {
		page, err := e.ListIdeas(ctx, engine.ListIdeasInput{
			Status: input.Status,
			Limit:  input.Limit,
			Cursor: input.Cursor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.IdeaPage `json:"body"`
		}{Body: page}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-idea",
		Method:      http.MethodGet,
		Path:        "/ideas/{id}",
		Summary:     "Get idea with its research document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body engine.IdeaDetail `json:"body"`
	}, error) {
		detail, err := e.GetIdea(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.IdeaDetail `json:"body"`
		}{Body: detail}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-idea",
		Method:        http.MethodDelete,
		Path:          "/ideas/{id}",
		Summary:       "Delete idea",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *ideaPath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteIdea(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

// registerStages exposes the research, score, approval and compile steps.
func registerStages(api huma.API, e engine.Engine) {
	stageErrors := []int{
		http.StatusBadRequest,
		http.StatusNotFound,
		http.StatusConflict,
		http.StatusUnprocessableEntity,
		http.StatusBadGateway,
	}

	huma.Register(api, huma.Operation{
		OperationID: "research-idea",
		Method:      http.MethodPost,
		Path:        "/ideas/{id}/research",
		Summary:     "Run market research",
		Errors:      stageErrors,
	}, func(ctx context.Context, input *ideaPath) (*ideaOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.Research(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &ideaOutput{Body: it}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-research",
		Method:      http.MethodPut,
		Path:        "/ideas/{id}/research",
		Summary:     "Replace the research document body",
		Errors:      stageErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body UpdateResearchRequest `json:"body"`
	}) (*ideaOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.UpdateResearch(ctx, input.ID, input.Body.Content, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &ideaOutput{Body: it}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "score-idea",
		Method:      http.MethodPost,
		Path:        "/ideas/{id}/score",
		Summary:     "Score the idea against the rubric",
		Errors:      stageErrors,
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body engine.ScoreResult `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.Score(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ScoreResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-idea",
		Method:      http.MethodPost,
		Path:        "/ideas/{id}/approval",
		Summary:     "Record the approval decision",
		Errors:      stageErrors,
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body ApprovalRequest `json:"body"`
	}) (*ideaOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.Approve(ctx, engine.ApproveInput{
			ID:       input.ID,
			Decision: input.Body.Decision,
			Comment:  input.Body.Comment,
			ActorID:  actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &ideaOutput{Body: it}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "compile-idea",
		Method:      http.MethodPost,
		Path:        "/ideas/{id}/compile",
		Summary:     "Compile an approved idea into a venture plan",
		Errors:      stageErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body CompileRequest `json:"body"`
	}) (*struct {
		Body engine.CompileResult `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.Compile(ctx, engine.CompileInput{
			ID:         input.ID,
			NewVenture: input.Body.NewVenture,
			VentureID:  input.Body.VentureID,
			ActorID:    actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.CompileResult `json:"body"`
		}{Body: res}, nil
	})
}

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"venturelab/internal/domain"
	"venturelab/internal/engine"
)

func registerVentures(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-ventures",
		Method:      http.MethodGet,
		Path:        "/ventures",
		Summary:     "List ventures",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Venture `json:"body"`
	}, error) {
		items, err := e.ListVentures(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Venture `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-venture",
		Method:      http.MethodGet,
		Path:        "/ventures/{id}",
		Summary:     "Get venture with projects, phases and tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body engine.VentureTree `json:"body"`
	}, error) {
		tree, err := e.GetVentureTree(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.VentureTree `json:"body"`
		}{Body: tree}, nil
	})
}

func registerDocuments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/documents/{id}",
		Summary:     "Get document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Document `json:"body"`
	}, error) {
		doc, err := e.GetDocument(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Document `json:"body"`
		}{Body: doc}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"idea,venture,api_key"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body engine.EventPage `json:"body"`
	}, error) {
		page, err := e.ListEvents(ctx, engine.EventQuery{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Cursor:     input.Cursor,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.EventPage `json:"body"`
		}{Body: page}, nil
	})
}

package engine

import (
	"context"
	"strconv"

	"venturelab/internal/apperr"
	"venturelab/internal/domain"
	"venturelab/internal/repo"
)

type PhaseTree struct {
	domain.Phase
	Tasks []domain.Task `json:"tasks"`
}

type ProjectTree struct {
	domain.Project
	Phases []PhaseTree `json:"phases"`
}

type VentureTree struct {
	domain.Venture
	Projects []ProjectTree `json:"projects"`
}

func (e Engine) ListVentures(ctx context.Context) ([]domain.Venture, error) {
	items, err := e.Repo.ListVentures(ctx)
	if err != nil {
		return nil, mapStoreErr("list ventures", "venture", err)
	}
	if items == nil {
		items = []domain.Venture{}
	}
	return items, nil
}

// GetVentureTree returns a venture with its projects, ordered phases and tasks.
func (e Engine) GetVentureTree(ctx context.Context, id string) (VentureTree, error) {
	const op = "get venture"
	v, err := e.Repo.GetVenture(ctx, id)
	if err != nil {
		return VentureTree{}, mapStoreErr(op, "venture", err)
	}
	out := VentureTree{Venture: v, Projects: []ProjectTree{}}
	projects, err := e.Repo.ListProjects(ctx, v.ID)
	if err != nil {
		return VentureTree{}, mapStoreErr(op, "project", err)
	}
	for _, p := range projects {
		pt := ProjectTree{Project: p, Phases: []PhaseTree{}}
		phases, err := e.Repo.ListPhases(ctx, p.ID)
		if err != nil {
			return VentureTree{}, mapStoreErr(op, "phase", err)
		}
		for _, ph := range phases {
			tasks, err := e.Repo.ListTasks(ctx, ph.ID)
			if err != nil {
				return VentureTree{}, mapStoreErr(op, "task", err)
			}
			if tasks == nil {
				tasks = []domain.Task{}
			}
			pt.Phases = append(pt.Phases, PhaseTree{Phase: ph, Tasks: tasks})
		}
		out.Projects = append(out.Projects, pt)
	}
	return out, nil
}

func (e Engine) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	d, err := e.Repo.GetDocument(ctx, id)
	if err != nil {
		return domain.Document{}, mapStoreErr("get document", "document", err)
	}
	return d, nil
}

type EventQuery struct {
	Type       string
	EntityKind string
	EntityID   string
	// Cursor is the id of the last event of the previous page.
	Cursor string
	Limit  int
}

type EventPage struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ListEvents returns events newest first.
func (e Engine) ListEvents(ctx context.Context, q EventQuery) (EventPage, error) {
	const op = "list events"
	var before int64
	if q.Cursor != "" {
		parsed, err := strconv.ParseInt(q.Cursor, 10, 64)
		if err != nil || parsed <= 0 {
			return EventPage{}, apperr.Validation(op, "invalid cursor %q", q.Cursor)
		}
		before = parsed
	}
	limit := repo.NormalizeLimit(q.Limit)
	items, err := e.Repo.LatestEvents(ctx, repo.EventFilter{
		Type:       q.Type,
		EntityKind: q.EntityKind,
		EntityID:   q.EntityID,
		Before:     before,
		Limit:      limit + 1,
	})
	if err != nil {
		return EventPage{}, mapStoreErr(op, "event", err)
	}
	page := EventPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextCursor = strconv.FormatInt(page.Items[limit-1].ID, 10)
	}
	if page.Items == nil {
		page.Items = []domain.Event{}
	}
	return page, nil
}

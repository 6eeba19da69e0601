// Package compile validates and normalises venture plans before they are persisted.
package compile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"venturelab/internal/llm"
)

type Plan struct {
	Venture *PlanVenture `json:"venture,omitempty"`
	Project PlanProject  `json:"project"`
	Phases  []PlanPhase  `json:"phases"`
}

type PlanVenture struct {
	Name        string `json:"name"`
	OneLiner    string `json:"one_liner"`
	Description string `json:"description"`
}

type PlanProject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type PlanPhase struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Order       int        `json:"order"`
	Tasks       []PlanTask `json:"tasks"`
}

type PlanTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// ErrInvalidPlan marks plans whose shape cannot be persisted.
var ErrInvalidPlan = errors.New("invalid plan")

// Schema is the JSON schema for generated plans. The venture block is
// required only when the plan creates a new venture.
func Schema(withVenture bool) map[string]any {
	named := func(field string) map[string]any {
		return map[string]any{
			"type":     "object",
			"required": []any{field},
			"properties": map[string]any{
				field:         map[string]any{"type": "string", "minLength": 1},
				"description": map[string]any{"type": "string"},
			},
		}
	}
	task := named("title")
	task["properties"].(map[string]any)["priority"] = map[string]any{"type": "string"}
	phase := named("name")
	phase["required"] = []any{"name", "order"}
	props := phase["properties"].(map[string]any)
	props["order"] = map[string]any{"type": "integer"}
	props["tasks"] = map[string]any{"type": "array", "items": task}

	required := []any{"project", "phases"}
	if withVenture {
		required = append(required, "venture")
	}
	return map[string]any{
		"type":     "object",
		"required": required,
		"properties": map[string]any{
			"venture": named("name"),
			"project": named("name"),
			"phases":  map[string]any{"type": "array", "minItems": 1, "items": phase},
		},
	}
}

// Parse decodes a generated plan, checks its shape and renumbers its phases.
func Parse(text string, withVenture bool) (Plan, error) {
	var p Plan
	if err := llm.DecodeJSON(text, Schema(withVenture), &p); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if err := Validate(p, withVenture); err != nil {
		return Plan{}, err
	}
	p.Phases = Renumber(p.Phases)
	return p, nil
}

// Validate checks the invariants the store relies on.
func Validate(p Plan, withVenture bool) error {
	if withVenture && (p.Venture == nil || strings.TrimSpace(p.Venture.Name) == "") {
		return fmt.Errorf("%w: venture name required", ErrInvalidPlan)
	}
	if strings.TrimSpace(p.Project.Name) == "" {
		return fmt.Errorf("%w: project name required", ErrInvalidPlan)
	}
	if len(p.Phases) == 0 {
		return fmt.Errorf("%w: at least one phase required", ErrInvalidPlan)
	}
	for i, ph := range p.Phases {
		if strings.TrimSpace(ph.Name) == "" {
			return fmt.Errorf("%w: phase %d has no name", ErrInvalidPlan, i)
		}
		for j, t := range ph.Tasks {
			if strings.TrimSpace(t.Title) == "" {
				return fmt.Errorf("%w: phase %q task %d has no title", ErrInvalidPlan, ph.Name, j)
			}
		}
	}
	return nil
}

// Renumber orders phases by the generator's order value, keeping ties in
// input order, and rewrites Order to 1..N.
func Renumber(phases []PlanPhase) []PlanPhase {
	out := make([]PlanPhase, len(phases))
	copy(out, phases)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

// Counts reports projects, phases and tasks in the plan.
func (p Plan) Counts() (projects, phases, tasks int) {
	for _, ph := range p.Phases {
		tasks += len(ph.Tasks)
	}
	return 1, len(p.Phases), tasks
}

// TaskPriority maps generator priorities onto the task priority scale.
func TaskPriority(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "urgent", "p0":
		return "P0"
	case "high", "p1":
		return "P1"
	case "low", "p3":
		return "P3"
	default:
		return "P2"
	}
}

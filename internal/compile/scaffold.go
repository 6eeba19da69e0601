package compile

import (
	"fmt"
	"strings"

	"venturelab/internal/domain"
)

// Scaffold builds the deterministic three-phase plan used when an idea is
// compiled into an existing venture. Validation steps from the score, when
// present, become the first phase's tasks.
func Scaffold(idea domain.Idea) Plan {
	validate := []PlanTask{
		{Title: "Interview five target customers", Description: describeCustomer(idea), Priority: "high"},
		{Title: "Write a one-page value proposition", Priority: "medium"},
		{Title: "Run a landing page or outreach test", Priority: "medium"},
	}
	if idea.Score != nil {
		var steps []PlanTask
		for _, step := range idea.Score.NextValidations {
			if step = strings.TrimSpace(step); step != "" {
				steps = append(steps, PlanTask{Title: step, Priority: "high"})
			}
		}
		if len(steps) > 0 {
			validate = steps
		}
	}
	return Plan{
		Project: PlanProject{
			Name:        idea.Name,
			Description: idea.Description,
		},
		Phases: []PlanPhase{
			{
				Name:        "Validate",
				Description: "Confirm the buyer, the pain and willingness to pay.",
				Order:       1,
				Tasks:       validate,
			},
			{
				Name:        "Build MVP",
				Description: "Ship the smallest version that delivers the core outcome.",
				Order:       2,
				Tasks: []PlanTask{
					{Title: "Define MVP scope and success metric", Priority: "high"},
					{Title: "Build the core workflow", Priority: "high"},
					{Title: "Onboard first pilot users", Priority: "medium"},
				},
			},
			{
				Name:        "Launch",
				Description: "Open to paying customers through the first channel.",
				Order:       3,
				Tasks: []PlanTask{
					{Title: "Set pricing and billing", Priority: "medium"},
					{Title: "Launch on the primary distribution channel", Priority: "high"},
					{Title: "Review metrics after 30 days", Priority: "low"},
				},
			},
		},
	}
}

func describeCustomer(idea domain.Idea) string {
	if idea.TargetCustomer == "" {
		return "Talk to the people who would pay for " + idea.Name + "."
	}
	return fmt.Sprintf("Talk to %s about the problem %s solves.", idea.TargetCustomer, idea.Name)
}

package domain

import "fmt"

// Status is the lifecycle position of an idea.
type Status string

const (
	StatusIdea        Status = "idea"
	StatusResearching Status = "researching"
	StatusResearched  Status = "researched"
	StatusScoring     Status = "scoring"
	StatusScored      Status = "scored"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusParked      Status = "parked"
	StatusCompiling   Status = "compiling"
	StatusCompiled    Status = "compiled"
	StatusFailed      Status = "failed"
)

// Statuses lists every status in pipeline order.
var Statuses = []Status{
	StatusIdea, StatusResearching, StatusResearched, StatusScoring, StatusScored,
	StatusApproved, StatusRejected, StatusParked, StatusCompiling, StatusCompiled, StatusFailed,
}

func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// InFlight reports whether a stage is currently running for the status.
func (s Status) InFlight() bool {
	switch s {
	case StatusResearching, StatusScoring, StatusCompiling:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCompiled, StatusFailed:
		return true
	}
	return false
}

type Verdict string

const (
	VerdictGreen  Verdict = "GREEN"
	VerdictYellow Verdict = "YELLOW"
	VerdictRed    Verdict = "RED"
)

// Decision is the human call recorded at the approval stage.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionParked   Decision = "parked"
	DecisionKilled   Decision = "killed"
)

func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApproved, DecisionParked, DecisionKilled:
		return Decision(s), nil
	}
	return "", fmt.Errorf("invalid decision %q", s)
}

// Status returns the idea status a decision moves to.
func (d Decision) Status() Status {
	switch d {
	case DecisionApproved:
		return StatusApproved
	case DecisionParked:
		return StatusParked
	default:
		return StatusRejected
	}
}

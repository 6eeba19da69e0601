package domain

import "fmt"

// Stage names one step of the idea pipeline.
type Stage string

const (
	StageResearch Stage = "research"
	StageScore    Stage = "score"
	StageApproval Stage = "approval"
	StageCompile  Stage = "compile"
)

// Rules carries the operator switches that widen the transition table.
type Rules struct {
	AllowParkedRescore bool
}

// TransitionError reports a status change the table does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// EnsureTransition checks a single status change, reverts included.
func EnsureTransition(from, to Status, rules Rules) error {
	if from == to {
		return TransitionError{From: from, To: to}
	}
	ok := false
	switch from {
	case StatusIdea:
		ok = to == StatusResearching
	case StatusResearching:
		ok = to == StatusResearched || to == StatusIdea || to == StatusFailed
	case StatusResearched:
		ok = to == StatusScoring
	case StatusScoring:
		switch to {
		case StatusScored, StatusResearched, StatusFailed:
			ok = true
		case StatusParked:
			ok = rules.AllowParkedRescore
		}
	case StatusScored:
		switch to {
		case StatusScoring, StatusApproved, StatusParked, StatusRejected:
			ok = true
		}
	case StatusParked:
		ok = to == StatusScoring && rules.AllowParkedRescore
	case StatusApproved:
		ok = to == StatusCompiling
	case StatusCompiling:
		ok = to == StatusCompiled || to == StatusApproved || to == StatusFailed
	}
	if !ok {
		return TransitionError{From: from, To: to}
	}
	return nil
}

// StageEntry returns the in-flight status a stage moves the idea into,
// or an error when the stage cannot start from the current status.
func StageEntry(stage Stage, current Status, rules Rules) (Status, error) {
	var next Status
	switch stage {
	case StageResearch:
		next = StatusResearching
	case StageScore:
		next = StatusScoring
	case StageCompile:
		next = StatusCompiling
	default:
		return "", fmt.Errorf("stage %s has no in-flight status", stage)
	}
	if err := EnsureTransition(current, next, rules); err != nil {
		return "", err
	}
	return next, nil
}

// StageDone returns the status a stage settles in after success.
func StageDone(stage Stage) Status {
	switch stage {
	case StageResearch:
		return StatusResearched
	case StageScore:
		return StatusScored
	case StageCompile:
		return StatusCompiled
	}
	return ""
}

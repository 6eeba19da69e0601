package domain

import (
	"errors"
	"testing"
)

func TestEnsureTransitionForwardPath(t *testing.T) {
	path := []Status{
		StatusIdea, StatusResearching, StatusResearched, StatusScoring, StatusScored,
		StatusApproved, StatusCompiling, StatusCompiled,
	}
	for i := 0; i < len(path)-1; i++ {
		if err := EnsureTransition(path[i], path[i+1], Rules{}); err != nil {
			t.Fatalf("%s -> %s: %v", path[i], path[i+1], err)
		}
	}
}

func TestEnsureTransitionRejectsSkipsAndRegressions(t *testing.T) {
	cases := []struct{ from, to Status }{
		{StatusIdea, StatusScoring},
		{StatusResearched, StatusApproved},
		{StatusScored, StatusResearching},
		{StatusScored, StatusIdea},
		{StatusScored, StatusCompiling},
		{StatusRejected, StatusScoring},
		{StatusCompiled, StatusCompiling},
		{StatusFailed, StatusIdea},
		{StatusParked, StatusScoring},
		{StatusScoring, StatusParked},
		{StatusIdea, StatusIdea},
	}
	for _, c := range cases {
		err := EnsureTransition(c.from, c.to, Rules{})
		var te TransitionError
		if !errors.As(err, &te) {
			t.Fatalf("%s -> %s: expected transition error, got %v", c.from, c.to, err)
		}
	}
}

func TestParkedRescoreRequiresRule(t *testing.T) {
	rules := Rules{AllowParkedRescore: true}
	if err := EnsureTransition(StatusParked, StatusScoring, rules); err != nil {
		t.Fatalf("parked -> scoring: %v", err)
	}
	if err := EnsureTransition(StatusScoring, StatusParked, rules); err != nil {
		t.Fatalf("scoring -> parked: %v", err)
	}
}

func TestStageEntry(t *testing.T) {
	next, err := StageEntry(StageResearch, StatusIdea, Rules{})
	if err != nil || next != StatusResearching {
		t.Fatalf("research entry: %s %v", next, err)
	}
	if _, err := StageEntry(StageResearch, StatusResearched, Rules{}); err == nil {
		t.Fatalf("expected research from researched to fail")
	}
	next, err = StageEntry(StageScore, StatusScored, Rules{})
	if err != nil || next != StatusScoring {
		t.Fatalf("rescore entry: %s %v", next, err)
	}
	if _, err := StageEntry(StageCompile, StatusScored, Rules{}); err == nil {
		t.Fatalf("expected compile from scored to fail")
	}
	if _, err := StageEntry(StageApproval, StatusScored, Rules{}); err == nil {
		t.Fatalf("approval has no in-flight status")
	}
}

func TestDecisionStatus(t *testing.T) {
	cases := map[Decision]Status{
		DecisionApproved: StatusApproved,
		DecisionParked:   StatusParked,
		DecisionKilled:   StatusRejected,
	}
	for d, want := range cases {
		if got := d.Status(); got != want {
			t.Fatalf("%s: want %s got %s", d, want, got)
		}
	}
	if _, err := ParseDecision("maybe"); err == nil {
		t.Fatalf("expected invalid decision")
	}
}

func TestParseStatusClosedSet(t *testing.T) {
	if len(Statuses) != 11 {
		t.Fatalf("expected 11 statuses, got %d", len(Statuses))
	}
	for _, s := range Statuses {
		if _, err := ParseStatus(string(s)); err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatalf("expected unknown status to fail")
	}
}

func TestParseDomainDefaultsToOther(t *testing.T) {
	d, ok := ParseDomain("")
	if !ok || d != DomainOther {
		t.Fatalf("empty domain: %s %v", d, ok)
	}
	if _, ok := ParseDomain("crypto"); ok {
		t.Fatalf("expected unknown domain to fail")
	}
}

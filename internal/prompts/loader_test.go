package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbeddedResearch(t *testing.T) {
	l := NewLoader("")
	p, err := l.Render(Research, IdeaData{Name: "Ledgerly", Description: "bookkeeping for plumbers", Domain: "saas"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if p.Meta.ID != "research" {
		t.Fatalf("expected research meta, got %q", p.Meta.ID)
	}
	if p.Meta.System == "" {
		t.Fatalf("expected system prompt")
	}
	if !strings.Contains(p.User, "Ledgerly") || !strings.Contains(p.User, "bookkeeping for plumbers") {
		t.Fatalf("idea fields missing from prompt: %s", p.User)
	}
	if strings.Contains(p.User, "Target customer") {
		t.Fatalf("empty target customer should be omitted")
	}
}

func TestRenderScoreListsDimensions(t *testing.T) {
	l := NewLoader("")
	p, err := l.Render(Score, ScoreData{
		IdeaData:      IdeaData{Name: "X", Description: "Y"},
		Research:      "market notes",
		RubricVersion: "v1",
		Dimensions: []DimensionData{
			{Key: "buyer_clarity", Label: "Buyer clarity", Max: 15},
			{Key: "regulatory_friction", Label: "Regulatory friction", Max: 10, Inverse: true},
		},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !p.Meta.JSON {
		t.Fatalf("score prompt must request json")
	}
	for _, want := range []string{"buyer_clarity", "max 15", "regulatory_friction", "inverse", "market notes"} {
		if !strings.Contains(p.User, want) {
			t.Fatalf("expected %q in prompt: %s", want, p.User)
		}
	}
}

func TestRenderCompile(t *testing.T) {
	l := NewLoader("")
	p, err := l.Render(Compile, CompileData{
		IdeaData:   IdeaData{Name: "X", Description: "Y"},
		Verdict:    "GREEN",
		FinalScore: 81.5,
		NextSteps:  []string{"call ten plumbers"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(p.User, "81.50") || !strings.Contains(p.User, "call ten plumbers") {
		t.Fatalf("unexpected compile prompt: %s", p.User)
	}
}

func TestOverrideDirWins(t *testing.T) {
	dir := t.TempDir()
	body := "---\nid: research\nversion: \"2\"\ntemperature: 0.9\nmodel: perplexity/sonar\n---\nCustom {{.Name}}\n"
	if err := os.WriteFile(filepath.Join(dir, "research.md"), []byte(body), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	l := NewLoader(dir)
	p, err := l.Render(Research, IdeaData{Name: "Z"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if p.User != "Custom Z" {
		t.Fatalf("expected override body, got %q", p.User)
	}
	if p.Meta.Version != "2" || p.Meta.Model != "perplexity/sonar" {
		t.Fatalf("unexpected meta: %+v", p.Meta)
	}
	if p.Meta.Temperature == nil || *p.Meta.Temperature != 0.9 {
		t.Fatalf("expected temperature override")
	}

	// Other templates still come from the embedded set.
	if _, err := l.Render(Compile, CompileData{}); err != nil {
		t.Fatalf("embedded compile: %v", err)
	}
}

func TestParseFrontmatterWithoutHeader(t *testing.T) {
	meta, body, err := parseFrontmatter([]byte("just text"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if meta.ID != "" || body != "just text" {
		t.Fatalf("unexpected result: %+v %q", meta, body)
	}
}

func TestUnknownPrompt(t *testing.T) {
	if _, err := NewLoader("").Render("nope", nil); err == nil {
		t.Fatalf("expected error for unknown prompt")
	}
}

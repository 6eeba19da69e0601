// Package scoring turns a model's rubric answer into a Score and a Verdict.
package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"venturelab/internal/domain"
	"venturelab/internal/llm"
)

type RubricDimension struct {
	Key     string
	Label   string
	Max     float64
	Inverse bool
}

type Rubric struct {
	Version    string
	Dimensions []RubricDimension
}

// V1 is the eight-dimension rubric. Maxima sum to 100.
var V1 = Rubric{
	Version: "v1",
	Dimensions: []RubricDimension{
		{Key: "buyer_clarity", Label: "Buyer clarity & budget", Max: 15},
		{Key: "pain_intensity", Label: "Pain intensity & urgency", Max: 15},
		{Key: "distribution", Label: "Distribution feasibility", Max: 15},
		{Key: "revenue_model", Label: "Revenue model realism", Max: 15},
		{Key: "competitive_edge", Label: "Competitive edge", Max: 10},
		{Key: "execution_complexity", Label: "Execution complexity", Max: 10, Inverse: true},
		{Key: "regulatory_friction", Label: "Regulatory friction", Max: 10, Inverse: true},
		{Key: "ai_leverage", Label: "AI leverage", Max: 10},
	},
}

var rubrics = map[string]Rubric{V1.Version: V1}

func RubricFor(version string) (Rubric, error) {
	r, ok := rubrics[version]
	if !ok {
		return Rubric{}, fmt.Errorf("unknown rubric version %q", version)
	}
	return r, nil
}

func (r Rubric) MaxTotal() float64 {
	var total float64
	for _, d := range r.Dimensions {
		total += d.Max
	}
	return total
}

// Schema is the JSON schema a model answer must satisfy for this rubric.
func (r Rubric) Schema() map[string]any {
	props := make(map[string]any, len(r.Dimensions))
	required := make([]any, 0, len(r.Dimensions))
	for _, d := range r.Dimensions {
		props[d.Key] = map[string]any{
			"type":     "object",
			"required": []any{"score"},
			"properties": map[string]any{
				"score":         map[string]any{"type": "number", "minimum": 0, "maximum": d.Max},
				"justification": map[string]any{"type": "string"},
			},
		}
		required = append(required, d.Key)
	}
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type":     "object",
		"required": []any{"dimensions", "confidence"},
		"properties": map[string]any{
			"dimensions": map[string]any{
				"type":       "object",
				"required":   required,
				"properties": props,
			},
			"confidence":            map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"kill_reasons":          stringList,
			"next_validation_steps": stringList,
		},
	}
}

type Thresholds struct {
	Green  float64
	Yellow float64
}

// VerdictFor maps a final score onto its tier. Boundaries belong to the higher tier.
func VerdictFor(final float64, t Thresholds) domain.Verdict {
	switch {
	case final >= t.Green:
		return domain.VerdictGreen
	case final >= t.Yellow:
		return domain.VerdictYellow
	default:
		return domain.VerdictRed
	}
}

// InputHash identifies the inputs a score was computed from.
func InputHash(description, research, rubricVersion string) string {
	h := sha256.New()
	h.Write([]byte(description))
	h.Write([]byte{0})
	h.Write([]byte(research))
	h.Write([]byte{0})
	h.Write([]byte(rubricVersion))
	return hex.EncodeToString(h.Sum(nil))
}

type answer struct {
	Dimensions map[string]struct {
		Score         float64 `json:"score"`
		Justification string  `json:"justification"`
	} `json:"dimensions"`
	Confidence      float64  `json:"confidence"`
	KillReasons     []string `json:"kill_reasons"`
	NextValidations []string `json:"next_validation_steps"`
}

// Parse validates a model answer against the rubric and computes the totals.
func Parse(text string, r Rubric) (domain.Score, error) {
	var a answer
	if err := llm.DecodeJSON(text, r.Schema(), &a); err != nil {
		return domain.Score{}, err
	}
	dims := make([]domain.Dimension, 0, len(r.Dimensions))
	for _, d := range r.Dimensions {
		got := a.Dimensions[d.Key]
		dims = append(dims, domain.Dimension{
			Key:           d.Key,
			Label:         d.Label,
			Score:         got.Score,
			Max:           d.Max,
			Inverse:       d.Inverse,
			Justification: got.Justification,
		})
	}
	return Compute(r.Version, dims, a.Confidence, a.KillReasons, a.NextValidations), nil
}

// Compute fills the raw total and the confidence-adjusted final score.
func Compute(version string, dims []domain.Dimension, confidence float64, killReasons, next []string) domain.Score {
	var raw float64
	for _, d := range dims {
		raw += d.Score
	}
	killReasons = nonBlank(killReasons)
	next = nonBlank(next)
	return domain.Score{
		RubricVersion:   version,
		Dimensions:      dims,
		RawTotal:        round2(raw),
		Confidence:      confidence,
		FinalScore:      round2(raw * confidence),
		KillReasons:     killReasons,
		NextValidations: next,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// nonBlank trims items and drops the empty ones. The result is never nil.
func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

package scoring

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturelab/internal/domain"
	"venturelab/internal/llm"
)

// answerJSON builds a model answer for V1 with every dimension at frac of its max.
func answerJSON(t *testing.T, frac, confidence float64) string {
	t.Helper()
	dims := map[string]any{}
	for _, d := range V1.Dimensions {
		dims[d.Key] = map[string]any{"score": d.Max * frac, "justification": "because"}
	}
	b, err := json.Marshal(map[string]any{
		"dimensions":            dims,
		"confidence":            confidence,
		"kill_reasons":          []string{"crowded"},
		"next_validation_steps": []string{"interview buyers"},
	})
	require.NoError(t, err)
	return string(b)
}

func TestParseAllMaxima(t *testing.T) {
	s, err := Parse(answerJSON(t, 1, 1.0), V1)
	require.NoError(t, err)
	assert.Equal(t, V1.MaxTotal(), s.RawTotal)
	assert.Equal(t, 100.0, s.FinalScore)
	assert.Equal(t, "v1", s.RubricVersion)
	assert.Len(t, s.Dimensions, 8)
	assert.Equal(t, "buyer_clarity", s.Dimensions[0].Key)
	assert.True(t, s.Dimensions[5].Inverse)
	assert.Equal(t, []string{"crowded"}, s.KillReasons)
	assert.Equal(t, []string{"interview buyers"}, s.NextValidations)
	assert.Equal(t, domain.VerdictGreen, VerdictFor(s.FinalScore, Thresholds{Green: 70, Yellow: 50}))
}

func TestParseAppliesConfidence(t *testing.T) {
	s, err := Parse(answerJSON(t, 0.5, 0.75), V1)
	require.NoError(t, err)
	assert.Equal(t, 50.0, s.RawTotal)
	assert.Equal(t, 37.5, s.FinalScore)
}

func TestParseRejectsScoreAboveMax(t *testing.T) {
	_, err := Parse(answerJSON(t, 1.5, 1), V1)
	require.Error(t, err)
	var se *llm.SchemaError
	assert.True(t, errors.As(err, &se))
}

func TestParseRejectsConfidenceOutOfRange(t *testing.T) {
	_, err := Parse(answerJSON(t, 1, 1.2), V1)
	assert.Error(t, err)
}

func TestParseRejectsMissingDimension(t *testing.T) {
	_, err := Parse(`{"dimensions": {"buyer_clarity": {"score": 3}}, "confidence": 1}`, V1)
	assert.Error(t, err)
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse("I think this idea is great!", V1)
	assert.Error(t, err)
}

func TestParseAcceptsFencedAnswer(t *testing.T) {
	_, err := Parse("```json\n"+answerJSON(t, 0.2, 0.5)+"\n```", V1)
	assert.NoError(t, err)
}

func TestVerdictBoundaries(t *testing.T) {
	th := Thresholds{Green: 70, Yellow: 50}
	cases := []struct {
		final float64
		want  domain.Verdict
	}{
		{100, domain.VerdictGreen},
		{70, domain.VerdictGreen},
		{69.99, domain.VerdictYellow},
		{50, domain.VerdictYellow},
		{49.99, domain.VerdictRed},
		{0, domain.VerdictRed},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, VerdictFor(c.final, th), "final %v", c.final)
	}
}

func TestInputHash(t *testing.T) {
	base := InputHash("desc", "research", "v1")
	assert.Equal(t, base, InputHash("desc", "research", "v1"))
	assert.NotEqual(t, base, InputHash("desc", "research edited", "v1"))
	assert.NotEqual(t, base, InputHash("desc", "research", "v2"))
	// The separator keeps field boundaries significant.
	assert.NotEqual(t, InputHash("ab", "c", "v1"), InputHash("a", "bc", "v1"))
}

func TestRubricFor(t *testing.T) {
	r, err := RubricFor("v1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, r.MaxTotal())
	_, err = RubricFor("v9")
	assert.Error(t, err)
}

func TestComputeDropsBlankListItems(t *testing.T) {
	s := Compute(V1.Version, nil, 1, []string{" ", "crowded "}, []string{"talk to buyers", " ", ""})
	assert.Equal(t, []string{"crowded"}, s.KillReasons)
	assert.Equal(t, []string{"talk to buyers"}, s.NextValidations)
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStageCountsOutcome(t *testing.T) {
	before := testutil.ToFloat64(StageRuns.WithLabelValues("score", OutcomeCached))
	ObserveStage("score", OutcomeCached, 10*time.Millisecond)
	after := testutil.ToFloat64(StageRuns.WithLabelValues("score", OutcomeCached))
	assert.Equal(t, before+1, after)
}

package engine_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"venturelab/internal/apperr"
	"venturelab/internal/domain"
	"venturelab/internal/llm"
	"venturelab/internal/llm/llmtest"
)

func withCachedScore(t *testing.T, env *testEnv) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	env.Engine.LLM.Score = llm.NewCachedClient(env.Score, rdb, time.Hour, nil)
	return mr
}

func TestRejectedScoreAnswerIsNotServedFromCache(t *testing.T) {
	env := newTestEnv(t)
	mr := withCachedScore(t, &env)
	it := env.researched(t)
	env.Score.Push(llmtest.Text("not json at all"), llmtest.Text(scoreAnswer(t, 1, 1)))

	res, err := env.Engine.Score(env.Ctx, it.ID, "tester")
	expectKind(t, err, apperr.KindParse)
	if res.Idea.Status != domain.StatusResearched {
		t.Fatalf("expected reverted idea, got %s", res.Idea.Status)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("rejected answer still cached: %v", keys)
	}

	res, err = env.Engine.Score(env.Ctx, it.ID, "tester")
	if err != nil {
		t.Fatalf("retry score: %v", err)
	}
	if res.Idea.Status != domain.StatusScored || res.Cached {
		t.Fatalf("unexpected retry result: %+v", res)
	}
	if env.Score.CallCount() != 2 {
		t.Fatalf("retry must reach the model, calls=%d", env.Score.CallCount())
	}
	if keys := mr.Keys(); len(keys) != 1 {
		t.Fatalf("accepted answer should be cached, keys=%v", keys)
	}
}

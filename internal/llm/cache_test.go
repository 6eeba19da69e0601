package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturelab/internal/llm"
	"venturelab/internal/llm/llmtest"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func req(content string) llm.Request {
	return llm.Request{Model: "m", Messages: []llm.Message{llm.User(content)}}
}

func TestCachedClientHitSkipsUpstream(t *testing.T) {
	_, rdb := newRedis(t)
	fake := llmtest.New(llmtest.Text("first"), llmtest.Text("second"))
	c := llm.NewCachedClient(fake, rdb, time.Hour, nil)
	ctx := context.Background()

	r1, err := c.Complete(ctx, req("a"))
	require.NoError(t, err)
	r2, err := c.Complete(ctx, req("a"))
	require.NoError(t, err)

	assert.Equal(t, "first", r1.Text)
	assert.Equal(t, "first", r2.Text)
	assert.Equal(t, 1, fake.CallCount())
}

func TestCachedClientDistinctRequests(t *testing.T) {
	_, rdb := newRedis(t)
	fake := llmtest.New(llmtest.Text("first"), llmtest.Text("second"))
	c := llm.NewCachedClient(fake, rdb, time.Hour, nil)
	ctx := context.Background()

	_, err := c.Complete(ctx, req("a"))
	require.NoError(t, err)
	r2, err := c.Complete(ctx, req("b"))
	require.NoError(t, err)
	assert.Equal(t, "second", r2.Text)
	assert.Equal(t, 2, fake.CallCount())
}

func TestCachedClientExpires(t *testing.T) {
	mr, rdb := newRedis(t)
	fake := llmtest.New(llmtest.Text("first"), llmtest.Text("second"))
	c := llm.NewCachedClient(fake, rdb, time.Minute, nil)
	ctx := context.Background()

	_, err := c.Complete(ctx, req("a"))
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	r2, err := c.Complete(ctx, req("a"))
	require.NoError(t, err)
	assert.Equal(t, "second", r2.Text)
}

func TestCachedClientFallsThroughWhenRedisDown(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	fake := llmtest.New(llmtest.Text("live"))
	c := llm.NewCachedClient(fake, rdb, time.Hour, nil)

	resp, err := c.Complete(context.Background(), req("a"))
	require.NoError(t, err)
	assert.Equal(t, "live", resp.Text)
}

func TestCachedClientDoesNotStoreErrors(t *testing.T) {
	mr, rdb := newRedis(t)
	boom := errors.New("boom")
	fake := llmtest.New(llmtest.Fail(boom), llmtest.Text("ok"))
	c := llm.NewCachedClient(fake, rdb, time.Hour, nil)
	ctx := context.Background()

	_, err := c.Complete(ctx, req("a"))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, mr.Keys())

	resp, err := c.Complete(ctx, req("a"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}

func TestCachedClientForget(t *testing.T) {
	mr, rdb := newRedis(t)
	fake := llmtest.New(llmtest.Text("broken"), llmtest.Text("fixed"))
	c := llm.NewCachedClient(fake, rdb, time.Hour, nil)
	ctx := context.Background()

	_, err := c.Complete(ctx, req("a"))
	require.NoError(t, err)
	require.NoError(t, c.Forget(ctx, req("a")))
	assert.Empty(t, mr.Keys())

	r, err := c.Complete(ctx, req("a"))
	require.NoError(t, err)
	assert.Equal(t, "fixed", r.Text)
	assert.Equal(t, 2, fake.CallCount())

	var _ llm.Forgetter = c
}

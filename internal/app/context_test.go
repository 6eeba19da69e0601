package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturelab/internal/config"
	"venturelab/internal/engine"
	"venturelab/internal/llm"
	"venturelab/internal/llm/llmtest"
)

func TestOpenWithInjectedClients(t *testing.T) {
	fake := llmtest.New(llmtest.Text("notes"))
	rt, err := Open(context.Background(), Options{
		Workspace: t.TempDir(),
		Clients:   &engine.Clients{Research: fake, Score: fake, Compile: fake},
	})
	require.NoError(t, err)
	defer rt.Close()

	it, err := rt.Engine.CreateIdea(context.Background(), engine.CreateIdeaInput{Name: "X", Description: "Y"})
	require.NoError(t, err)
	it, err = rt.Engine.Research(context.Background(), it.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, "researched", string(it.Status))
	assert.Nil(t, rt.Redis)
}

func TestOpenBuildsCachedClients(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	var hits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"model":"m","choices":[{"message":{"content":"market notes"}}],"usage":{"total_tokens":7}}`))
	}))
	defer upstream.Close()

	dir := t.TempDir()
	yml := "llm:\n  base_url: " + upstream.URL + "\ncache:\n  redis_addr: " + mr.Addr() + "\n"
	require.NoError(t, os.WriteFile(config.Path(dir), []byte(yml), 0o644))

	rt, err := Open(context.Background(), Options{Workspace: dir})
	require.NoError(t, err)
	defer rt.Close()
	require.NotNil(t, rt.Redis)
	_, cached := rt.Engine.LLM.Research.(*llm.CachedClient)
	assert.True(t, cached)

	req := llm.Request{Model: "m", Messages: []llm.Message{llm.User("hi")}}
	for i := 0; i < 2; i++ {
		resp, err := rt.Engine.LLM.Score.Complete(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "market notes", resp.Text)
	}
	assert.Equal(t, 1, hits)
}

func TestOpenSkipsUnreachableRedis(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("cache:\n  redis_addr: 127.0.0.1:1\n"), 0o644))
	rt, err := Open(context.Background(), Options{Workspace: dir})
	require.NoError(t, err)
	defer rt.Close()
	assert.Nil(t, rt.Redis)
	_, isHTTP := rt.Engine.LLM.Research.(*llm.HTTPClient)
	assert.True(t, isHTTP)
}

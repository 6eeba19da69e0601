package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"

	"venturelab/internal/config"
	"venturelab/internal/db"
	"venturelab/internal/domain"
	"venturelab/internal/engine"
	"venturelab/internal/events"
	"venturelab/internal/llm/llmtest"
	"venturelab/internal/migrate"
	"venturelab/internal/scoring"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL      string
	Engine   engine.Engine
	Research *llmtest.Client
	Score    *llmtest.Client
	Compile  *llmtest.Client
	client   *http.Client
	close    func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	research, score, compile := llmtest.New(), llmtest.New(), llmtest.New()
	e := engine.New(conn, config.Default(), engine.Clients{Research: research, Score: score, Compile: compile}, nil)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: testJWTSecret, AllowActorHeader: true},
		Logger:   zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:      "http://" + ln.Addr().String(),
		Engine:   e,
		Research: research,
		Score:    score,
		Compile:  compile,
		client:   &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

var asOwner = map[string]string{"X-Actor-Id": "owner"}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
	return out
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	env := decode[struct {
		Error apiErrorBody `json:"error"`
	}](t, data)
	return env.Error.Code
}

func scoreJSON(t *testing.T) string {
	t.Helper()
	dims := map[string]any{}
	for _, d := range scoring.V1.Dimensions {
		dims[d.Key] = map[string]any{"score": d.Max, "justification": "strong"}
	}
	b, err := json.Marshal(map[string]any{
		"dimensions":            dims,
		"confidence":            1,
		"kill_reasons":          []string{},
		"next_validation_steps": []string{"talk to ten plumbers"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func createIdea(t *testing.T, srv *testServer) domain.Idea {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/ideas", map[string]any{
		"name":            "Ledgerly",
		"description":     "Bookkeeping for plumbers",
		"domain":          "saas",
		"target_customer": "independent plumbers",
	}, asOwner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create idea status %d: %s", res.StatusCode, string(data))
	}
	return decode[domain.Idea](t, data)
}

func TestIdeaLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	it := createIdea(t, srv)
	if it.Status != domain.StatusIdea || it.Version != 1 {
		t.Fatalf("unexpected idea: %+v", it)
	}

	srv.Research.Push(llmtest.Text("Plumbers spend five hours a week on books."))
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/ideas/"+it.ID+"/research", nil, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("research status %d: %s", res.StatusCode, string(data))
	}
	it = decode[domain.Idea](t, data)
	if it.Status != domain.StatusResearched || it.ResearchDocID == nil {
		t.Fatalf("unexpected researched idea: %+v", it)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/documents/"+*it.ResearchDocID, nil, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("document status %d: %s", res.StatusCode, string(data))
	}
	if doc := decode[domain.Document](t, data); doc.Type != "research" || !strings.Contains(doc.Body, "five hours") {
		t.Fatalf("unexpected document: %+v", doc)
	}

	srv.Score.Push(llmtest.Text(scoreJSON(t)))
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/ideas/"+it.ID+"/score", nil, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("score status %d: %s", res.StatusCode, string(data))
	}
	scored := decode[engine.ScoreResult](t, data)
	if scored.Cached || scored.Idea.Verdict == nil || *scored.Idea.Verdict != domain.VerdictGreen {
		t.Fatalf("unexpected score result: %+v", scored)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/ideas/"+it.ID+"/score", nil, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("rescore status %d: %s", res.StatusCode, string(data))
	}
	if again := decode[engine.ScoreResult](t, data); !again.Cached || again.Idea.Version != scored.Idea.Version {
		t.Fatalf("expected cached score, got %+v", again)
	}
	if srv.Score.CallCount() != 1 {
		t.Fatalf("expected one score call, got %d", srv.Score.CallCount())
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/ideas/"+it.ID+"/approval", map[string]any{
		"decision": "approved",
		"comment":  "go",
	}, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approval status %d: %s", res.StatusCode, string(data))
	}
	if approved := decode[domain.Idea](t, data); approved.ApprovedBy == nil || *approved.ApprovedBy != "owner" {
		t.Fatalf("approver not recorded: %+v", approved)
	}

	srv.Compile.Push(llmtest.Text(`{"venture":{"name":"Ledgerly"},"project":{"name":"Launch"},` +
		`"phases":[{"name":"Build","order":2,"tasks":[{"title":"MVP"}]},{"name":"Discover","order":1,"tasks":[{"title":"Interviews"}]}]}`))
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/ideas/"+it.ID+"/compile", map[string]any{"new_venture": true}, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("compile status %d: %s", res.StatusCode, string(data))
	}
	compiled := decode[engine.CompileResult](t, data)
	if compiled.Idea.Status != domain.StatusCompiled || compiled.Stats.Tasks != 2 || compiled.Idea.VentureID == nil {
		t.Fatalf("unexpected compile result: %+v", compiled)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/ventures/"+*compiled.Idea.VentureID, nil, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("venture status %d: %s", res.StatusCode, string(data))
	}
	tree := decode[engine.VentureTree](t, data)
	if len(tree.Projects) != 1 || tree.Projects[0].Phases[0].Name != "Discover" {
		t.Fatalf("unexpected venture tree: %+v", tree)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/ventures", nil, asOwner)
	if res.StatusCode != http.StatusOK || len(decode[[]domain.Venture](t, data)) != 1 {
		t.Fatalf("list ventures status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/events?entity_id="+it.ID+"&limit=3", nil, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	page := decode[engine.EventPage](t, data)
	if len(page.Items) != 3 || page.NextCursor == "" || page.Items[0].Type != events.IdeaCompiled {
		t.Fatalf("unexpected events page: %+v", page)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/events?entity_id="+it.ID+"&cursor="+page.NextCursor, nil, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events page 2 status %d: %s", res.StatusCode, string(data))
	}
	if next := decode[engine.EventPage](t, data); len(next.Items) == 0 || next.Items[0].ID >= page.Items[2].ID {
		t.Fatalf("second page does not continue the first: %+v", next)
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/ideas/missing", nil, asOwner)
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "not_found" {
		t.Fatalf("expected not_found, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/ideas", map[string]any{"description": "no name"}, asOwner)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d: %s", res.StatusCode, string(data))
	}

	it := createIdea(t, srv)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/ideas/"+it.ID+"/score", nil, asOwner)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "state_conflict" {
		t.Fatalf("expected state_conflict, got %d: %s", res.StatusCode, string(data))
	}

	srv.Research.Push(llmtest.Fail(errors.New("provider down")))
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/ideas/"+it.ID+"/research", nil, asOwner)
	if res.StatusCode != http.StatusBadGateway || errorCode(t, data) != "upstream_failed" {
		t.Fatalf("expected upstream_failed, got %d: %s", res.StatusCode, string(data))
	}

	srv.Research.Push(llmtest.Text("notes"))
	if res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/ideas/"+it.ID+"/research", nil, asOwner); res.StatusCode != http.StatusOK {
		t.Fatalf("research retry status %d: %s", res.StatusCode, string(data))
	}
	srv.Score.Push(llmtest.Text("I think it is great"))
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/ideas/"+it.ID+"/score", nil, asOwner)
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, data) != "parse_failed" {
		t.Fatalf("expected parse_failed, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/ideas/"+it.ID+"/approval", map[string]any{"decision": "maybe"}, asOwner)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad decision, got %d: %s", res.StatusCode, string(data))
	}
}

func TestDeleteIdea(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	it := createIdea(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v1/ideas/"+it.ID, nil, asOwner)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/ideas/"+it.ID, nil, asOwner)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", res.StatusCode)
	}
}

func TestListIdeasPaging(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	for i := 0; i < 3; i++ {
		createIdea(t, srv)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/ideas?limit=2&status=idea", nil, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	page := decode[engine.IdeaPage](t, data)
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("unexpected first page: %+v", page)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/ideas?limit=2&cursor="+url.QueryEscape(page.NextCursor), nil, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list page 2 status %d: %s", res.StatusCode, string(data))
	}
	if next := decode[engine.IdeaPage](t, data); len(next.Items) != 1 || next.NextCursor != "" {
		t.Fatalf("unexpected second page: %+v", next)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/ideas?status=bogus", nil, asOwner)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status filter, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/ideas", nil, nil)
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "unauthorized" {
		t.Fatalf("expected 401 without credentials, got %d: %s", res.StatusCode, string(data))
	}

	_, secret, err := srv.Engine.CreateAPIKey(context.Background(), "ci-bot", "ci", "admin")
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/ideas", map[string]any{
		"name": "Keyed", "description": "created with an api key",
	}, map[string]string{"X-Api-Key": secret})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("api key create status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/ideas", nil, map[string]string{"X-Api-Key": "vl_wrong"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d", res.StatusCode)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/ideas", nil, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("jwt status %d: %s", res.StatusCode, string(data))
	}
	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "mallory"}).SignedString([]byte("other"))
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/ideas", nil, map[string]string{"Authorization": "Bearer " + forged})
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %d: %s", res.StatusCode, string(data))
	}

	page, err := srv.Engine.ListEvents(context.Background(), engine.EventQuery{Type: events.IdeaCreated})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Items[0].ActorID != "ci-bot" {
		t.Fatalf("expected the api key actor on the event, got %+v", page.Items)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	createIdea(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/metrics", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", res.StatusCode)
	}
	if !strings.Contains(string(data), `venturelab_ideas{status="idea"}`) {
		t.Fatalf("status gauge missing from exposition")
	}
}

func TestOpenAPIDocument(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	doc := decode[map[string]any](t, data)
	paths, _ := doc["paths"].(map[string]any)
	for _, p := range []string{"/v1/ideas", "/v1/ideas/{id}/score", "/v1/ventures/{id}"} {
		if _, ok := paths[p]; !ok {
			t.Fatalf("missing path %s in openapi document", p)
		}
	}
}

package venturelabsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsCredentialsAndDecodes(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"i1","name":"Ledgerly","status":"idea","version":1}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	c.APIKey = "vl_key"
	it, err := c.CreateIdea(context.Background(), CreateIdea{Name: "Ledgerly", Description: "Books"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if it.ID != "i1" || it.Status != "idea" || it.Version != 1 {
		t.Fatalf("unexpected idea: %+v", it)
	}
	if gotPath != "/v1/ideas" || gotKey != "vl_key" || gotBody["name"] != "Ledgerly" {
		t.Fatalf("unexpected request: path=%s key=%s body=%v", gotPath, gotKey, gotBody)
	}
}

func TestClientCompileBody(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b map[string]any
		_ = json.NewDecoder(r.Body).Decode(&b)
		bodies = append(bodies, b)
		_, _ = w.Write([]byte(`{"idea":{"id":"i1","status":"compiled"},"stats":{"projects":1,"phases":3,"tasks":9}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Compile(context.Background(), "i1", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Phases != 3 || res.Idea.Status != "compiled" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := c.Compile(context.Background(), "i1", "v1"); err != nil {
		t.Fatal(err)
	}
	if bodies[0]["new_venture"] != true || bodies[1]["new_venture"] != false || bodies[1]["venture_id"] != "v1" {
		t.Fatalf("unexpected compile bodies: %v", bodies)
	}
}

func TestClientErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"state_conflict","message":"score: idea must be researched"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.ActorID = "owner"
	_, err := c.Score(context.Background(), "i1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != "state_conflict" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestClientEventsQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"items":[{"id":7,"type":"idea.created"}],"next_cursor":"7"}`))
	}))
	defer srv.Close()

	page, err := New(srv.URL).EventsPage(context.Background(), "i1", 1, "9")
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "cursor=9&entity_id=i1&limit=1" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(page.Items) != 1 || page.NextCursor != "7" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestClientDeleteNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	if err := New(srv.URL).DeleteIdea(context.Background(), "i1"); err != nil {
		t.Fatal(err)
	}
}

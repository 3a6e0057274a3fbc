package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVectorRetrieverParsesHits(t *testing.T) {
	var gotAuth string
	var gotBody queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": [
			{"id": "ent-3", "score": 0.91, "metadata": {"text": "Purulent discharge beyond 7 days suggests bacterial rhinosinusitis.", "source": "ICMR STW ENT"}},
			{"id": "ent-9", "score": 0.45, "metadata": {"text": ""}},
			{"id": "ent-4", "score": 0.40, "metadata": {"text": "Viral URI resolves within a week.", "source": "ICMR STW ENT"}}
		]}`))
	}))
	defer srv.Close()

	r, err := NewVectorRetriever(srv.URL, "secret-token")
	if err != nil {
		t.Fatalf("NewVectorRetriever: %v", err)
	}

	passages := r.Retrieve(context.Background(), "nasal discharge 8 days", 3)
	if gotAuth != "Bearer secret-token" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	if gotBody.TopK != 3 || !gotBody.IncludeMetadata {
		t.Errorf("request body = %+v", gotBody)
	}
	if len(passages) != 2 {
		t.Fatalf("expected 2 passages (empty text skipped), got %d", len(passages))
	}
	if passages[0].ID != "ent-3" || passages[0].Score != 0.91 {
		t.Errorf("first passage = %+v", passages[0])
	}
	if passages[1].Source != "ICMR STW ENT" {
		t.Errorf("source not carried through: %+v", passages[1])
	}
}

func TestVectorRetrieverFailuresYieldEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	r, err := NewVectorRetriever(srv.URL, "token")
	if err != nil {
		t.Fatalf("NewVectorRetriever: %v", err)
	}
	if got := r.Retrieve(context.Background(), "query", 5); len(got) != 0 {
		t.Errorf("expected no passages on upstream error, got %d", len(got))
	}

	srv.Close()
	if got := r.Retrieve(context.Background(), "query", 5); len(got) != 0 {
		t.Errorf("expected no passages when the index is unreachable, got %d", len(got))
	}
}

func TestVectorRetrieverBlankQuery(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	r, err := NewVectorRetriever(srv.URL, "token")
	if err != nil {
		t.Fatalf("NewVectorRetriever: %v", err)
	}
	if got := r.Retrieve(context.Background(), "   ", 5); got != nil {
		t.Errorf("blank query should return nil, got %v", got)
	}
	if called {
		t.Error("blank query must not hit the index")
	}
}

func TestNewVectorRetrieverRequiresBaseURL(t *testing.T) {
	if _, err := NewVectorRetriever("", "token"); err == nil {
		t.Error("expected an error for an empty base URL")
	}
}

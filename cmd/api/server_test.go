package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FallenAngels520/math-multi-agent/internal/event"
	"github.com/FallenAngels520/math-multi-agent/internal/llm"
	"github.com/FallenAngels520/math-multi-agent/internal/mathtool"
	"github.com/FallenAngels520/math-multi-agent/internal/runstore"
)

func newTestServer(t *testing.T) *apiServer {
	t.Helper()
	store := runstore.New(filepath.Join(t.TempDir(), "runs.json"))
	srv := newAPIServer(llm.NewFakeClient(), mathtool.NewRegistry(), store, false)
	srv.retention = 0 // evict finished runs immediately
	return srv
}

// A finished run moves from the live map to the archive; the map stays
// bounded no matter how many runs the server handles.
func TestExecuteRun_ArchivesAndEvicts(t *testing.T) {
	srv := newTestServer(t)
	run := &liveRun{
		problem: "compute 6*7",
		events:  make(chan event.Event, 256),
	}
	srv.mu.Lock()
	srv.runs["run-1"] = run
	srv.mu.Unlock()

	srv.executeRun("run-1", run, 10)

	if _, ok := srv.lookupRun("run-1"); ok {
		t.Fatal("run-1 still in the live map after completion")
	}
	rec, ok := srv.store.Get("run-1")
	if !ok {
		t.Fatal("run-1 missing from the archive")
	}
	if rec.Answer != "42" {
		t.Fatalf("archived answer = %q, want 42", rec.Answer)
	}

	// The archive still serves the run over the API.
	w := httptest.NewRecorder()
	srv.handleRuns(w, httptest.NewRequest("GET", "/api/runs/run-1", nil))
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got runstore.Record
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.RunID != "run-1" {
		t.Fatalf("run_id = %q, want run-1", got.RunID)
	}
}

type fakeArtifacts struct {
	objects map[string][]byte
}

func (f *fakeArtifacts) List(_ context.Context, runID string) ([]string, error) {
	prefix := runID + "/"
	var paths []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			paths = append(paths, strings.TrimPrefix(key, prefix))
		}
	}
	return paths, nil
}

func (f *fakeArtifacts) Get(_ context.Context, runID, path string) ([]byte, error) {
	data, ok := f.objects[runID+"/"+path]
	if !ok {
		return nil, runstore.ErrNotFound
	}
	return data, nil
}

func (f *fakeArtifacts) GetURL(_ context.Context, runID, path string) (string, error) {
	return "https://bucket.test/" + runID + "/" + path, nil
}

func TestHandleArtifacts_ListsWithLinks(t *testing.T) {
	srv := newTestServer(t)
	srv.artifacts = &fakeArtifacts{objects: map[string][]byte{
		"run-1/answer.json": []byte(`{"answer":"42"}`),
	}}

	w := httptest.NewRecorder()
	srv.handleRuns(w, httptest.NewRequest("GET", "/api/runs/run-1/artifacts", nil))
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var out struct {
		RunID     string          `json:"run_id"`
		Artifacts []artifactEntry `json:"artifacts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.RunID != "run-1" || len(out.Artifacts) != 1 {
		t.Fatalf("listing = %+v, want one artifact for run-1", out)
	}
	if out.Artifacts[0].Path != "answer.json" {
		t.Fatalf("path = %q, want answer.json", out.Artifacts[0].Path)
	}
	if out.Artifacts[0].URL != "https://bucket.test/run-1/answer.json" {
		t.Fatalf("url = %q, want presigned link", out.Artifacts[0].URL)
	}
}

func TestHandleArtifacts_ServesContent(t *testing.T) {
	srv := newTestServer(t)
	srv.artifacts = &fakeArtifacts{objects: map[string][]byte{
		"run-1/answer.json": []byte(`{"answer":"42"}`),
	}}

	w := httptest.NewRecorder()
	srv.handleRuns(w, httptest.NewRequest("GET", "/api/runs/run-1/artifacts/answer.json", nil))
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := w.Body.String(); body != `{"answer":"42"}` {
		t.Fatalf("body = %q, want the stored artifact", body)
	}

	w = httptest.NewRecorder()
	srv.handleRuns(w, httptest.NewRequest("GET", "/api/runs/run-1/artifacts/missing.json", nil))
	if w.Code != 404 {
		t.Fatalf("status = %d, want 404 for a missing artifact", w.Code)
	}
}

func TestHandleArtifacts_Unconfigured(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.handleRuns(w, httptest.NewRequest("GET", "/api/runs/run-1/artifacts", nil))
	if w.Code != 404 {
		t.Fatalf("status = %d, want 404 when no artifact store is configured", w.Code)
	}
}

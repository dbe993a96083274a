package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/FallenAngels520/math-multi-agent/internal/runstore"
)

// artifactReader is the read side of the artifact bucket;
// *runstore.ArtifactStore satisfies it.
type artifactReader interface {
	List(ctx context.Context, runID string) ([]string, error)
	Get(ctx context.Context, runID, path string) ([]byte, error)
	GetURL(ctx context.Context, runID, path string) (string, error)
}

type artifactEntry struct {
	Path string `json:"path"`
	URL  string `json:"url,omitempty"`
}

// handleArtifacts serves a run's artifact listing with presigned download
// links, or the raw content of one artifact when a path is given.
func (s *apiServer) handleArtifacts(w http.ResponseWriter, r *http.Request, runID, path string) {
	if s.artifacts == nil {
		http.Error(w, "artifact store not configured", http.StatusNotFound)
		return
	}
	ctx := r.Context()

	path = strings.Trim(path, "/")
	if path == "" {
		paths, err := s.artifacts.List(ctx, runID)
		if err != nil {
			http.Error(w, "list artifacts: "+err.Error(), http.StatusInternalServerError)
			return
		}
		entries := make([]artifactEntry, 0, len(paths))
		for _, p := range paths {
			entry := artifactEntry{Path: p}
			if url, urlErr := s.artifacts.GetURL(ctx, runID, p); urlErr == nil {
				entry.URL = url
			}
			entries = append(entries, entry)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"run_id":    runID,
			"artifacts": entries,
		})
		return
	}

	data, err := s.artifacts.Get(ctx, runID, path)
	if errors.Is(err, runstore.ErrNotFound) {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "get artifact: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

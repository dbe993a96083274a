package mathtool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const wolframOK = `{"queryresult":{"success":true,"pods":[
	{"title":"Input","subpods":[{"plaintext":"6*7"}]},
	{"title":"Result","subpods":[{"plaintext":"42"}]}
]}}`

func newTestWolfram(t *testing.T, handler http.HandlerFunc) (*Wolfram, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	w, err := NewWolfram(WolframConfig{AppID: "TEST-APPID", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewWolfram: %v", err)
	}
	return w, srv
}

func TestWolfram_ComputeParsesPods(t *testing.T) {
	var gotQuery, gotAppID string
	w, _ := newTestWolfram(t, func(rw http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("input")
		gotAppID = r.URL.Query().Get("appid")
		rw.Write([]byte(wolframOK))
	})

	out, err := w.Compute(context.Background(), "6*7")
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}
	if gotQuery != "6*7" || gotAppID != "TEST-APPID" {
		t.Fatalf("request params = %q/%q, want 6*7/TEST-APPID", gotQuery, gotAppID)
	}
	want := "Input: 6*7\nResult: 42"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestWolfram_ComputeCaches(t *testing.T) {
	requests := 0
	w, _ := newTestWolfram(t, func(rw http.ResponseWriter, r *http.Request) {
		requests++
		rw.Write([]byte(wolframOK))
	})

	for i := 0; i < 3; i++ {
		if _, err := w.Compute(context.Background(), "6*7"); err != nil {
			t.Fatalf("Compute error: %v", err)
		}
	}
	if requests != 1 {
		t.Fatalf("requests = %d, want 1 (cache hit)", requests)
	}
}

func TestWolfram_UninterpretableQuery(t *testing.T) {
	w, _ := newTestWolfram(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(`{"queryresult":{"success":false,"pods":[]}}`))
	})
	if _, err := w.Compute(context.Background(), "gibberish"); err == nil {
		t.Fatal("expected error for uninterpretable query")
	}
}

func TestWolfram_RequiresAppID(t *testing.T) {
	t.Setenv("WOLFRAM_ALPHA_APP_ID", "")
	if _, err := NewWolfram(WolframConfig{}); err == nil {
		t.Fatal("expected error without app id")
	}
}

func TestWolfram_EmptyQuery(t *testing.T) {
	w, _ := newTestWolfram(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(wolframOK))
	})
	if _, err := w.Compute(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty query")
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/FallenAngels520/math-multi-agent/internal/llm"
	"github.com/FallenAngels520/math-multi-agent/internal/mathtool"
	"github.com/FallenAngels520/math-multi-agent/internal/runstore"
)

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

func main() {
	port := flag.String("port", ":8080", "server port")
	model := flag.String("model", llm.DefaultGeminiModel, "Gemini model name")
	useFake := flag.Bool("fake", false, "use the deterministic fake LLM (offline)")
	useLLMOracle := flag.Bool("llm-oracle", false, "route with the model-backed oracle instead of the rule table")
	storePath := flag.String("store", "runs.json", "run archive path (file backend)")
	flag.Parse()

	_ = godotenv.Load()

	var client llm.Client
	if *useFake {
		client = llm.NewFakeClient()
	} else {
		ctx, cancel := contextWithTimeout(30 * time.Second)
		gemini, err := llm.NewGeminiClient(ctx, *model)
		cancel()
		if err != nil {
			log.Fatalf("llm client: %v", err)
		}
		client = llm.Wrap(gemini,
			llm.WithLogging(nil),
			llm.Retry(3, 500*time.Millisecond),
			llm.RateLimitFromEnv("LLM", "GEMINI"),
		)
	}
	defer client.Close()

	tools := mathtool.NewRegistry()
	if wolfram, err := mathtool.NewWolfram(mathtool.WolframConfig{}); err == nil {
		tools.Register(wolfram)
	} else {
		log.Printf("wolfram tool disabled: %v", err)
	}

	store := runstore.NewFromEnv(*storePath)
	defer store.Close()

	srv := newAPIServer(client, tools, store, *useLLMOracle)
	if cfg, ok := runstore.S3ConfigFromEnv(); ok {
		artifacts, err := runstore.NewArtifactStore(cfg)
		if err != nil {
			log.Printf("artifact store disabled: %v", err)
		} else {
			srv.artifacts = artifacts
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/solve", srv.handleSolve)
	mux.HandleFunc("/api/runs", srv.handleRuns)
	mux.HandleFunc("/api/runs/", srv.handleRuns)
	mux.HandleFunc("/api/watch/", srv.handleWatchSSE)
	mux.HandleFunc("/ws/watch", srv.handleWatchWS)

	// Simple CORS middleware
	h := http.Handler(mux)
	h = func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			if r.Method == "OPTIONS" {
				return
			}
			next.ServeHTTP(w, r)
		})
	}(h)

	log.Printf("Starting API server on %s", *port)
	log.Fatal(http.ListenAndServe(*port, h2c.NewHandler(h, &http2.Server{})))
}

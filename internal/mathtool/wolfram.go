package mathtool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// WolframConfig configures the Wolfram Alpha boundary client.
type WolframConfig struct {
	AppID     string
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
}

// Wolfram is a thin client for the Wolfram Alpha query API. Results are
// cached per query: verification loops tend to re-issue the same
// computations.
type Wolfram struct {
	appID   string
	baseURL string
	http    *http.Client
	cache   *lru.Cache[string, string]
}

const defaultWolframURL = "http://api.wolframalpha.com/v2/query"

func NewWolfram(cfg WolframConfig) (*Wolfram, error) {
	appID := strings.TrimSpace(cfg.AppID)
	if appID == "" {
		appID = strings.TrimSpace(os.Getenv("WOLFRAM_ALPHA_APP_ID"))
	}
	if appID == "" {
		return nil, fmt.Errorf("mathtool: wolfram app id is required (set WOLFRAM_ALPHA_APP_ID)")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultWolframURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Wolfram{
		appID:   appID,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cache:   cache,
	}, nil
}

func (w *Wolfram) Name() string { return "wolfram_alpha" }

func (w *Wolfram) Description() string {
	return "computational knowledge engine for symbolic and numeric math queries"
}

// Compute sends a query and returns the concatenated plaintext pods.
func (w *Wolfram) Compute(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("mathtool: empty wolfram query")
	}
	if out, ok := w.cache.Get(query); ok {
		return out, nil
	}

	params := url.Values{}
	params.Set("input", query)
	params.Set("appid", w.appID)
	params.Set("format", "plaintext")
	params.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("mathtool: wolfram request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mathtool: wolfram returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	out, err := parseWolframPods(body)
	if err != nil {
		return "", err
	}
	w.cache.Add(query, out)
	return out, nil
}

type wolframResponse struct {
	QueryResult struct {
		Success bool `json:"success"`
		Pods    []struct {
			Title   string `json:"title"`
			Subpods []struct {
				Plaintext string `json:"plaintext"`
			} `json:"subpods"`
		} `json:"pods"`
	} `json:"queryresult"`
}

func parseWolframPods(body []byte) (string, error) {
	var wr wolframResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return "", fmt.Errorf("mathtool: wolfram response invalid: %w", err)
	}
	if !wr.QueryResult.Success {
		return "", fmt.Errorf("mathtool: wolfram could not interpret the query")
	}
	var b strings.Builder
	for _, pod := range wr.QueryResult.Pods {
		for _, sub := range pod.Subpods {
			text := strings.TrimSpace(sub.Plaintext)
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(pod.Title)
			b.WriteString(": ")
			b.WriteString(text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("mathtool: wolfram returned no plaintext pods")
	}
	return b.String(), nil
}

//go:build e2e

package e2e_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dutchstory-backend/internal/adapter/postgres"
	knowledgerepo "github.com/heartmarshall/dutchstory-backend/internal/adapter/postgres/knowledge"
	"github.com/heartmarshall/dutchstory-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/dutchstory-backend/internal/adapter/provider/duckduckgo"
	"github.com/heartmarshall/dutchstory-backend/internal/adapter/provider/openai"
	"github.com/heartmarshall/dutchstory-backend/internal/adapter/provider/pdfurl"
	"github.com/heartmarshall/dutchstory-backend/internal/knowledge"
	"github.com/heartmarshall/dutchstory-backend/internal/service/tutor"
	"github.com/heartmarshall/dutchstory-backend/internal/transport/middleware"
	"github.com/heartmarshall/dutchstory-backend/internal/transport/rest"
)

// knowledgeAxis is the embedding axis of the seeded chunks and of every
// query embedding returned by the fake model API.
const knowledgeAxis = 700

const paragraphJSON = `{
	"dutch_sentences": [
		"Jan gaat naar een voetbalwedstrijd met zijn vriend.",
		"Hij ziet de spelers op het veld rennen",
		"De keeper stopt de bal met zijn handen",
		"Het team scoort een doelpunt en iedereen juicht",
		"Na de wedstrijd gaan ze naar huis"
	],
	"english_translations": [
		"Jan goes to a football match with his friend",
		"He sees the players running on the field",
		"The goalkeeper stops the ball with his hands",
		"The team scores a goal and everyone cheers",
		"After the match, they go home"
	],
	"topic": "football match",
	"level": "Beginner",
	"vocabulary": [
		{"dutch": "de wedstrijd", "english": "the match"},
		{"dutch": "de keeper", "english": "the goalkeeper"}
	]
}`

// ---------------------------------------------------------------------------
// Fake model API (chat completions + embeddings).
// ---------------------------------------------------------------------------

type fakeModelAPI struct {
	mu sync.Mutex
	// prompts holds the last user message of every chat call, in order.
	prompts []string
	// coordinatorReply overrides the structured coordinator response.
	coordinatorReply string
}

func (f *fakeModelAPI) chatCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func (f *fakeModelAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/v1/embeddings":
		inputs, _ := body["input"].([]any)
		data := make([]map[string]any, len(inputs))
		for i := range inputs {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": testhelper.AxisVector(knowledgeAxis)}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  "text-embedding-3-small",
			"usage":  map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})

	case "/v1/chat/completions":
		msgs, _ := body["messages"].([]any)
		last, _ := msgs[len(msgs)-1].(map[string]any)
		prompt, _ := last["content"].(string)

		f.mu.Lock()
		f.prompts = append(f.prompts, prompt)
		override := f.coordinatorReply
		f.mu.Unlock()

		reply := "de wedstrijd: the match\nde keeper: the goalkeeper"
		if _, structured := body["response_format"]; structured {
			reply = paragraphJSON
			if override != "" {
				reply = override
			}
		} else if strings.Contains(prompt, "Vocabulary") {
			reply = "Jan gaat naar een voetbalwedstrijd met zijn vriend."
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-e2e",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})

	default:
		http.NotFound(w, r)
	}
}

// ---------------------------------------------------------------------------
// Test server.
// ---------------------------------------------------------------------------

type testServer struct {
	URL      string
	Client   *http.Client
	Pool     *pgxpool.Pool
	Model    *fakeModelAPI
	WebCalls *atomic.Int32
}

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

type serverOptions struct {
	askPerMinute int
	timeout      time.Duration
	// minKnowledgeHits defaults to 2, which the seeded source satisfies.
	minKnowledgeHits int
}

// setupTestServer bootstraps the application stack on a real pgvector
// container with fake model and search upstreams. The knowledge source is
// seeded so startup ingestion skips the download.
func setupTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()

	pool := testhelper.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(testLogWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if opts.minKnowledgeHits == 0 {
		opts.minKnowledgeHits = 2
	}

	// 1. Fake upstreams.
	model := &fakeModelAPI{}
	modelSrv := httptest.NewServer(model)
	t.Cleanup(modelSrv.Close)

	webCalls := &atomic.Int32{}
	webSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		webCalls.Add(1)
		io.WriteString(w, `<a rel="nofollow" href="https://example.org/voetbal" class='result-link'>Voetbal woorden</a>
<td class='result-snippet'>de bal: the ball</td>`)
	}))
	t.Cleanup(webSrv.Close)

	// 2. Knowledge base over a seeded source.
	source := testhelper.UniqueSourceURL()
	testhelper.SeedSource(t, pool, source, knowledgeAxis, knowledgeAxis)

	oa := openai.New(openai.Options{
		APIKey:         "sk-e2e",
		BaseURL:        modelSrv.URL + "/v1/",
		Model:          "gpt-4o",
		EmbeddingModel: "text-embedding-3-small",
		Dimensions:     testhelper.EmbeddingDimensions,
		MaxRetries:     0,
	}, logger)

	kb := knowledge.NewBase(logger,
		knowledgerepo.New(pool),
		postgres.NewTxManager(pool),
		pdfurl.New(time.Second, logger),
		oa,
		knowledge.Options{Sources: []string{source}, ChunkSize: 200, ChunkOverlap: 40, MinScore: 0.5},
	)
	if err := kb.EnsureLoaded(t.Context()); err != nil {
		t.Fatalf("ensure loaded: %v", err)
	}

	// 3. Pipeline.
	svc := tutor.NewService(logger, oa, kb,
		duckduckgo.NewWithURL(webSrv.URL, time.Second, 3, logger),
		tutor.Config{KnowledgeLimit: 5, MinKnowledgeHits: opts.minKnowledgeHits, MaxTokens: 512},
	)

	// 4. HTTP stack.
	limiter := middleware.NewRateLimiter(time.Minute)
	t.Cleanup(limiter.Stop)

	router := rest.NewRouter(
		rest.NewTutorHandler(svc, opts.timeout, logger),
		rest.NewHealthHandler(pool, kb, "test-version"),
		limiter.Limit(opts.askPerMinute),
	)
	handler := middleware.Chain(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
	)(router)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		URL:      srv.URL,
		Client:   srv.Client(),
		Pool:     pool,
		Model:    model,
		WebCalls: webCalls,
	}
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()

	resp, err := ts.Client.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

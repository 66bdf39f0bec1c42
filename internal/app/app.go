package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dutchstory-backend/internal/adapter/postgres"
	knowledgerepo "github.com/heartmarshall/dutchstory-backend/internal/adapter/postgres/knowledge"
	"github.com/heartmarshall/dutchstory-backend/internal/adapter/provider/anthropic"
	"github.com/heartmarshall/dutchstory-backend/internal/adapter/provider/duckduckgo"
	"github.com/heartmarshall/dutchstory-backend/internal/adapter/provider/openai"
	"github.com/heartmarshall/dutchstory-backend/internal/adapter/provider/pdfurl"
	"github.com/heartmarshall/dutchstory-backend/internal/config"
	"github.com/heartmarshall/dutchstory-backend/internal/knowledge"
	"github.com/heartmarshall/dutchstory-backend/internal/provider"
	"github.com/heartmarshall/dutchstory-backend/internal/service/tutor"
	"github.com/heartmarshall/dutchstory-backend/internal/transport/middleware"
	"github.com/heartmarshall/dutchstory-backend/internal/transport/rest"
)

// chatModel is satisfied by both LLM adapters.
type chatModel interface {
	Complete(ctx context.Context, req provider.ChatRequest) (provider.ChatResult, error)
	Model() string
}

type webSearcher interface {
	Search(ctx context.Context, query string) ([]provider.SearchResult, error)
}

// runtime holds the components shared by the serve and ingest commands.
type runtime struct {
	cfg       *config.Config
	log       *slog.Logger
	pool      *pgxpool.Pool
	openai    *openai.Client
	knowledge *knowledge.Base
}

func (rt *runtime) close() { rt.pool.Close() }

// bootstrap loads config, connects to the database, applies migrations and
// builds the knowledge base. It does not ingest anything.
func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("llm_model", cfg.LLM.ChatModel()),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := postgres.Migrate(ctx, cfg.Database.DSN, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	oa := openai.New(openai.Options{
		APIKey:         cfg.LLM.OpenAIAPIKey,
		BaseURL:        cfg.LLM.OpenAIBaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.Embedding.Model,
		Dimensions:     cfg.Embedding.Dimensions,
		Temperature:    cfg.LLM.Temperature,
		MaxRetries:     -1,
	}, logger)

	kb := knowledge.NewBase(logger,
		knowledgerepo.New(pool),
		postgres.NewTxManager(pool),
		pdfurl.New(cfg.Knowledge.LoadTimeout, logger),
		oa,
		knowledge.Options{
			Sources:      cfg.Knowledge.Sources,
			AssumeLoaded: cfg.Knowledge.AssumeLoaded,
			Recreate:     cfg.Knowledge.Recreate,
			ChunkSize:    cfg.Knowledge.ChunkSize,
			ChunkOverlap: cfg.Knowledge.ChunkOverlap,
			BatchSize:    cfg.Embedding.BatchSize,
			Concurrency:  cfg.Embedding.Concurrency,
			MinScore:     cfg.Knowledge.MinScore,
		},
	)

	return &runtime{cfg: cfg, log: logger, pool: pool, openai: oa, knowledge: kb}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully. The knowledge base is loaded before the listener opens;
// a failed load aborts startup.
func Run(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg, logger := rt.cfg, rt.log

	loadCtx, cancelLoad := context.WithTimeout(ctx, cfg.Knowledge.LoadTimeout)
	err = rt.knowledge.EnsureLoaded(loadCtx)
	cancelLoad()
	if err != nil {
		return fmt.Errorf("load knowledge base: %w", err)
	}

	svc := tutor.NewService(logger, rt.chatModel(), rt.knowledge, rt.webSearcher(), tutor.Config{
		KnowledgeLimit:   cfg.Knowledge.SearchLimit,
		MinKnowledgeHits: cfg.Knowledge.MinResults,
		MaxTokens:        cfg.LLM.MaxTokens,
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimit.CleanupInterval)
	defer limiter.Stop()

	router := rest.NewRouter(
		rest.NewTutorHandler(svc, cfg.LLM.RequestTimeout, logger),
		rest.NewHealthHandler(rt.pool, rt.knowledge, BuildVersion()),
		limiter.Limit(cfg.RateLimit.AskPerMinute),
	)

	handler := middleware.Chain(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
	)(router)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return serve(ctx, srv, cfg.Server.ShutdownTimeout, logger)
}

// Ingest reloads every configured knowledge source regardless of existing
// ingestion records.
func Ingest(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	loadCtx, cancel := context.WithTimeout(ctx, rt.cfg.Knowledge.LoadTimeout)
	defer cancel()

	if err := rt.knowledge.Reload(loadCtx); err != nil {
		return fmt.Errorf("reload knowledge base: %w", err)
	}
	return nil
}

func (rt *runtime) chatModel() chatModel {
	if strings.EqualFold(rt.cfg.LLM.Provider, "anthropic") {
		return anthropic.New(anthropic.Options{
			APIKey:      rt.cfg.LLM.AnthropicAPIKey,
			Model:       rt.cfg.LLM.AnthropicModel,
			Temperature: rt.cfg.LLM.Temperature,
			MaxRetries:  -1,
		}, rt.log)
	}
	return rt.openai
}

// webSearcher returns nil (untyped) when web search is disabled so the
// service sees a nil interface.
func (rt *runtime) webSearcher() webSearcher {
	if !rt.cfg.Search.Enabled {
		rt.log.Info("web search disabled")
		return nil
	}
	return duckduckgo.New(rt.cfg.Search.Timeout, rt.cfg.Search.MaxResults, rt.log)
}

// serve runs srv until ctx is done, then drains in-flight requests for up
// to shutdownTimeout.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down http server", slog.Duration("timeout", shutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("http server stopped")
	return <-errCh
}

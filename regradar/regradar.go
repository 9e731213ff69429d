package regradar

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/regradar/regradar/internal/assess"
	"github.com/hazyhaar/regradar/regradar/internal/digest"
	"github.com/hazyhaar/regradar/regradar/internal/extract"
	"github.com/hazyhaar/regradar/regradar/internal/feed"
	"github.com/hazyhaar/regradar/regradar/internal/fetch"
	"github.com/hazyhaar/regradar/regradar/internal/httpapi"
	"github.com/hazyhaar/regradar/regradar/internal/ingest"
	"github.com/hazyhaar/regradar/regradar/internal/llm"
	"github.com/hazyhaar/regradar/regradar/internal/scheduler"
	"github.com/hazyhaar/regradar/regradar/internal/store"
)

// Service is the radar orchestrator: it owns the fetch → extract → version →
// diff → assess pipeline and the query-side collaborators built on the same
// store.
type Service struct {
	db        *sql.DB
	store     *store.Store
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	versioner *ingest.Versioner
	differ    *ingest.Differ
	runner    *assess.Runner
	digester  *digest.Builder
	config    *Config
	logger    *slog.Logger

	// runMu serializes pipeline runs; the pipeline never runs concurrently
	// with itself.
	runMu sync.Mutex
}

// New creates a Service on an open database, applying the schema. With no
// OpenAI key configured the deterministic stub classifier/summarizer is
// used.
func New(db *sql.DB, cfg *Config, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	st := store.New(db)

	var classifier assess.Classifier
	var summarizer assess.Summarizer
	if cfg.OpenAIKey != "" {
		oa := llm.NewOpenAI(llm.Config{APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel}, logger)
		classifier, summarizer = oa, oa
		logger.Info("regradar: using OpenAI services", "model", cfg.OpenAIModel)
	} else {
		classifier, summarizer = llm.Stub{}, llm.Stub{}
		logger.Info("regradar: no API key, using stub services")
	}

	return &Service{
		db:        db,
		store:     st,
		fetcher:   fetch.New(fetchConfig(cfg)),
		extractor: extract.New(),
		versioner: ingest.NewVersioner(st, logger),
		differ:    ingest.NewDiffer(st, logger),
		runner:    assess.NewRunner(st, classifier, summarizer, cfg.assessTimeout(), logger),
		digester:  digest.NewBuilder(st, logger),
		config:    cfg,
		logger:    logger,
	}, nil
}

func fetchConfig(cfg *Config) fetch.Config {
	fc := fetch.Config{
		Timeout:   cfg.fetchTimeout(),
		MaxBytes:  int64(cfg.FetchMaxMB) << 20,
		UserAgent: cfg.UserAgent,
	}
	if cfg.AllowPrivateHosts {
		fc.URLValidator = func(string) error { return nil }
	}
	return fc
}

// Store exposes the underlying store for the HTTP and MCP surfaces.
func (s *Service) Store() *store.Store { return s.store }

// Digester exposes the digest builder.
func (s *Service) Digester() *digest.Builder { return s.digester }

// Router returns the authenticated HTTP API handler.
func (s *Service) Router() http.Handler {
	api := httpapi.NewServer(s.store, httpapi.Config{
		APIKey:       s.config.APIKey,
		APIKeyBcrypt: s.config.APIKeyBcrypt,
	}, s.logger)
	return api.Router()
}

// StartScheduler runs the due-source polling loop until ctx is cancelled,
// feeding each due source through the pipeline.
func (s *Service) StartScheduler(ctx context.Context) {
	sched := scheduler.New(s.store, s.HandleSource, scheduler.Config{
		CheckInterval: s.config.checkInterval(),
		MaxFailCount:  s.config.MaxFailCount,
	}, s.logger)
	sched.Run(ctx)
}

// WatchDigest rewrites the digest file at the configured path whenever new
// assessments land. It blocks until ctx is cancelled.
func (s *Service) WatchDigest(ctx context.Context) {
	s.digester.Watch(ctx, s.db, digest.WatchOptions{Path: s.config.DigestPath})
}

// SeedSources inserts the configured sources, skipping URLs already present.
func (s *Service) SeedSources(ctx context.Context) error {
	seeds := make([]*store.Source, 0, len(s.config.Sources))
	for _, seed := range s.config.Sources {
		st := seed.Type
		if st == "" {
			st = "rss"
		}
		seeds = append(seeds, &store.Source{Name: seed.Name, URL: seed.URL, SourceType: st})
	}
	return s.store.SeedSources(ctx, seeds)
}

// RunOnce processes every enabled source through the full pipeline with
// bounded fan-out. A second call while a run is active returns
// ErrRunInProgress. Per-source and per-document failures are counted in the
// report, not returned.
func (s *Service) RunOnce(ctx context.Context) (*RunReport, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	sources, err := s.store.ListEnabledSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	var mu sync.Mutex
	report := &RunReport{Sources: len(sources)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for _, src := range sources {
		g.Go(func() error {
			s.processSource(gctx, src, report, &mu)
			return nil
		})
	}
	g.Wait()

	s.logger.Info("regradar: run complete",
		"sources", report.Sources, "fetched", report.Fetched,
		"new_versions", report.NewVersions, "events", report.Events,
		"published", report.Published, "review", report.Review,
		"errors", report.Errors)
	return report, ctx.Err()
}

// HandleSource processes a single source, waiting for any active run to
// finish first. The scheduler uses it as its sink.
func (s *Service) HandleSource(ctx context.Context, src *store.Source) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	var mu sync.Mutex
	report := &RunReport{Sources: 1}
	s.processSource(ctx, src, report, &mu)
	if report.Errors > 0 {
		return fmt.Errorf("source %d: %d error(s)", src.ID, report.Errors)
	}
	return nil
}

// candidate is one document observed during a source fetch.
type candidate struct {
	externalID string
	title      string
	text       string
}

// processSource runs fetch → extract → version → diff → assess for one
// source. Failures are recorded against the source or counted per document;
// they never abort the batch.
func (s *Service) processSource(ctx context.Context, src *store.Source, report *RunReport, mu *sync.Mutex) {
	log := s.logger.With("source_id", src.ID, "url", src.URL)

	res, err := s.fetcher.Fetch(ctx, src.URL, src.LastETag, src.LastModified, src.LastHash)
	if err != nil {
		log.Warn("regradar: fetch failed", "error", err)
		if err := s.store.RecordFetchError(ctx, src.ID, err.Error()); err != nil {
			log.Error("regradar: record fetch error", "error", err)
		}
		mu.Lock()
		report.Errors++
		mu.Unlock()
		return
	}

	if !res.Changed {
		// 304 or identical body; keep the previous validators.
		etag, lastMod, hash := res.ETag, res.LastMod, src.LastHash
		if etag == "" {
			etag = src.LastETag
		}
		if lastMod == "" {
			lastMod = src.LastModified
		}
		if err := s.store.RecordFetchSuccess(ctx, src.ID, etag, lastMod, hash); err != nil {
			log.Error("regradar: record fetch success", "error", err)
		}
		log.Debug("regradar: source unchanged")
		return
	}

	candidates := s.extractCandidates(src, res, log)
	for _, c := range candidates {
		if ctx.Err() != nil {
			return
		}
		if err := s.processDocument(ctx, src, c, report, mu); err != nil {
			log.Warn("regradar: document failed", "external_id", c.externalID, "error", err)
			mu.Lock()
			report.Errors++
			mu.Unlock()
		}
	}

	if err := s.store.RecordFetchSuccess(ctx, src.ID, res.ETag, res.LastMod, res.Hash); err != nil {
		log.Error("regradar: record fetch success", "error", err)
	}
}

// extractCandidates turns the fetched body into candidate documents. RSS
// sources yield one candidate per entry; everything else yields a single
// candidate keyed by the source URL. Entries or bodies that extract to
// nothing are dropped.
func (s *Service) extractCandidates(src *store.Source, res *fetch.Result, log *slog.Logger) []candidate {
	switch src.SourceType {
	case "rss":
		f, err := feed.Parse(res.Body)
		if err != nil {
			log.Warn("regradar: feed parse failed", "error", err)
			return nil
		}
		var out []candidate
		for _, entry := range f.Entries {
			if entry.ID == "" {
				continue
			}
			er, err := s.extractor.Extract([]byte(entry.Text()), extract.KindHTML)
			if err != nil || er.Text == "" {
				continue
			}
			title := entry.Title
			if title == "" {
				title = er.Title
			}
			out = append(out, candidate{externalID: entry.ID, title: title, text: er.Text})
		}
		return out

	case "pdf":
		er, err := s.extractor.Extract(res.Body, extract.KindPDF)
		if err != nil || er.Text == "" {
			log.Warn("regradar: pdf extraction failed", "error", err)
			return nil
		}
		return []candidate{{externalID: src.URL, title: er.Title, text: er.Text}}

	default:
		kind := extract.DetectKind(src.URL, res.ContentType)
		er, err := s.extractor.Extract(res.Body, kind)
		if err != nil || er.Text == "" {
			log.Warn("regradar: extraction failed", "kind", kind, "error", err)
			return nil
		}
		return []candidate{{externalID: src.URL, title: er.Title, text: er.Text}}
	}
}

// processDocument versions one candidate and, when the content is new and
// has a predecessor, diffs and assesses the change. Every change event runs
// the pipeline to completion.
func (s *Service) processDocument(ctx context.Context, src *store.Source, c candidate, report *RunReport, mu *sync.Mutex) error {
	res, err := s.versioner.StoreVersion(ctx, src.ID, c.externalID, c.title, c.text)
	if err != nil {
		return err
	}
	mu.Lock()
	report.Fetched++
	if res.IsNewVersion {
		report.NewVersions++
	}
	mu.Unlock()

	if !res.IsNewVersion {
		return nil
	}

	previous, err := s.differ.LinkPrevious(ctx, res.Version)
	if err != nil {
		return err
	}
	event, err := s.differ.ComputeDiff(ctx, res, previous)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}
	mu.Lock()
	report.Events++
	mu.Unlock()

	state, err := s.runner.Run(ctx, event, res.Version)
	if err != nil {
		return err
	}
	mu.Lock()
	switch state.Outcome {
	case assess.OutcomePublished:
		report.Published++
	case assess.OutcomeReview:
		report.Review++
	}
	mu.Unlock()
	return nil
}

// Stats returns aggregate entity counts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.CountStats(ctx)
}

// Package pipeline drives logo acquisition for a list of companies across
// a bounded pool of workers.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/logo-cli/internal/cache"
	"github.com/sells-group/logo-cli/internal/manifest"
	"github.com/sells-group/logo-cli/internal/model"
	"github.com/sells-group/logo-cli/internal/store"
)

// DefaultMaxConcurrency is the worker pool width when Options leaves it unset.
const DefaultMaxConcurrency = 8

// ReasonCancelled is the failure reason for companies the run never reached.
const ReasonCancelled = "cancelled"

// Reuser checks the backup store for an existing logo.
type Reuser interface {
	TryReuse(ctx context.Context, companyName, backupDir, sessionDir string) (*model.LogoArtifact, bool, error)
}

// Resolver maps a company name to its website domain.
type Resolver interface {
	Resolve(ctx context.Context, companyName string) (model.ResolvedDomain, error)
}

// Fetcher downloads a logo for a domain into both directories.
type Fetcher interface {
	Fetch(ctx context.Context, domain, companyName, backupDir, sessionDir string) (*model.LogoArtifact, error)
}

// Synthesizer writes a placeholder logo into both directories.
type Synthesizer interface {
	Synthesize(companyName, backupDir, sessionDir string) (*model.LogoArtifact, error)
}

// Options controls a single run.
type Options struct {
	BackupDir      string
	SessionDir     string
	SessionID      string
	MaxConcurrency int
	ManifestPath   string
	// OnProgress is called once per finished company, in completion order,
	// from a single goroutine.
	OnProgress func(Progress)
}

// Progress reports one finished company.
type Progress struct {
	Completed int
	Total     int
	Company   string
	Kind      model.SourceKind
	Failed    bool
}

// Fraction is the completed share of the run in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Completed) / float64(p.Total)
}

// Result is the outcome of a run. Artifacts holds every logo in the
// session cache, placeholders included. Failures lists the companies
// whose logo could not be obtained.
type Result struct {
	RunID        string
	Status       model.RunStatus
	Outcomes     []model.Outcome
	Artifacts    []model.LogoArtifact
	Failures     []model.FailureRecord
	Succeeded    int
	ManifestPath string
	Duration     time.Duration
}

// Pipeline runs the per-company sequence: backup lookup, then domain
// resolution and download, falling back to a placeholder.
type Pipeline struct {
	cache       Reuser
	resolver    Resolver
	fetcher     Fetcher
	placeholder Synthesizer
	store       store.Store
	inflight    singleflight.Group
}

// New creates a Pipeline. st may be nil, in which case nothing is indexed
// and no run history is kept.
func New(reuser Reuser, resolver Resolver, fetcher Fetcher, placeholder Synthesizer, st store.Store) *Pipeline {
	return &Pipeline{
		cache:       reuser,
		resolver:    resolver,
		fetcher:     fetcher,
		placeholder: placeholder,
		store:       st,
	}
}

// Run processes every company and always returns a Result for a valid
// invocation, even when every company fails. The returned error reports
// invalid options or a manifest that could not be written.
func (p *Pipeline) Run(ctx context.Context, companies []model.Company, opts Options) (*Result, error) {
	if opts.BackupDir == "" || opts.SessionDir == "" {
		return nil, eris.New("pipeline: backup and session directories are required")
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	for _, dir := range []string{opts.BackupDir, opts.SessionDir} {
		if err := cache.EnsureDir(dir); err != nil {
			return nil, eris.Wrap(err, "pipeline: prepare directories")
		}
	}

	start := time.Now()
	total := len(companies)
	zap.L().Info("pipeline: starting run",
		zap.Int("companies", total),
		zap.Int("concurrency", opts.MaxConcurrency),
		zap.String("session_dir", opts.SessionDir),
	)

	runID := p.startRun(ctx, opts.SessionID, total)

	outcomes := make(chan model.Outcome, total)
	collected := make(chan *Result, 1)
	go func() {
		collected <- collect(outcomes, total, opts.OnProgress)
	}()

	var g errgroup.Group
	g.SetLimit(opts.MaxConcurrency)
	for _, company := range companies {
		g.Go(func() error {
			outcomes <- p.process(ctx, company, opts)
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)

	result := <-collected
	result.RunID = runID
	result.Duration = time.Since(start)
	result.Status = model.RunStatusComplete
	if ctx.Err() != nil {
		result.Status = model.RunStatusCancelled
	}

	p.finishRun(runID, result)

	zap.L().Info("pipeline: run complete",
		zap.String("status", string(result.Status)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", len(result.Failures)),
		zap.Duration("duration", result.Duration),
	)

	if len(result.Failures) > 0 && opts.ManifestPath != "" {
		if err := manifest.Write(opts.ManifestPath, result.Failures); err != nil {
			return result, eris.Wrap(err, "pipeline: write manifest")
		}
		result.ManifestPath = opts.ManifestPath
		zap.L().Info("pipeline: failure manifest written",
			zap.String("path", opts.ManifestPath),
			zap.Int("companies", len(manifest.Names(result.Failures))),
		)
	}
	return result, nil
}

// collect drains outcomes in completion order.
func collect(outcomes <-chan model.Outcome, total int, onProgress func(Progress)) *Result {
	r := &Result{Outcomes: make([]model.Outcome, 0, total)}
	for o := range outcomes {
		r.Outcomes = append(r.Outcomes, o)
		if o.Artifact != nil {
			r.Artifacts = append(r.Artifacts, *o.Artifact)
		}
		if o.Failed() {
			r.Failures = append(r.Failures, *o.Failure)
		} else {
			r.Succeeded++
		}

		if onProgress != nil {
			pr := Progress{
				Completed: len(r.Outcomes),
				Total:     total,
				Company:   o.Company.Name,
				Failed:    o.Failed(),
			}
			if o.Artifact != nil {
				pr.Kind = o.Artifact.SourceKind
			}
			onProgress(pr)
		}
	}
	return r
}

// process handles one input item. Concurrent items with the same name
// share the first one's work; the others only check the backup store.
func (p *Pipeline) process(ctx context.Context, company model.Company, opts Options) model.Outcome {
	start := time.Now()
	if ctx.Err() != nil {
		return cancelled(company, start)
	}

	var leader bool
	v, _, _ := p.inflight.Do(company.Name, func() (any, error) {
		leader = true
		return p.processOne(ctx, company, opts), nil
	})
	out := v.(model.Outcome)
	if leader {
		return out
	}
	return p.follow(ctx, company, opts, out, start)
}

// follow builds the outcome for a duplicate that waited on an in-flight
// item with the same name.
func (p *Pipeline) follow(ctx context.Context, company model.Company, opts Options, shared model.Outcome, start time.Time) model.Outcome {
	if ctx.Err() != nil {
		return cancelled(company, start)
	}
	out := model.Outcome{Company: company}
	if shared.Failed() {
		out.Artifact = shared.Artifact
		out.Failure = &model.FailureRecord{CompanyName: company.Name, Reason: shared.Failure.Reason}
		out.Duration = time.Since(start)
		return out
	}

	art, ok, err := p.cache.TryReuse(ctx, company.Name, opts.BackupDir, opts.SessionDir)
	if err != nil || !ok {
		zap.L().Debug("pipeline: duplicate reusing in-flight artifact",
			zap.String("company", company.Name), zap.Error(err))
		reused := *shared.Artifact
		reused.SourceKind = model.SourceCached
		art = &reused
	}
	out.Artifact = art
	out.Duration = time.Since(start)
	return out
}

// processOne runs cache check, resolve, fetch and placeholder fallback
// for one company. It never panics and never returns without an outcome.
func (p *Pipeline) processOne(ctx context.Context, company model.Company, opts Options) (out model.Outcome) {
	start := time.Now()
	log := zap.L().With(zap.String("company", company.Name))

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: worker panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			out = p.fail(ctx, company, opts, fmt.Sprintf("panic: %v", r), start)
		}
	}()

	art, ok, err := p.cache.TryReuse(ctx, company.Name, opts.BackupDir, opts.SessionDir)
	switch {
	case ctx.Err() != nil:
		return cancelled(company, start)
	case err != nil:
		log.Warn("pipeline: cache check failed, fetching", zap.Error(err))
	case ok:
		log.Debug("pipeline: reused backup logo", zap.String("path", art.FilePath))
		p.indexCached(ctx, art)
		return model.Outcome{Company: company, Artifact: art, Duration: time.Since(start)}
	}

	resolved, err := p.resolver.Resolve(ctx, company.Name)
	if ctx.Err() != nil {
		return cancelled(company, start)
	}
	if err != nil {
		log.Warn("pipeline: no domain", zap.Error(err))
		return p.fail(ctx, company, opts, err.Error(), start)
	}

	art, err = p.fetcher.Fetch(ctx, resolved.Domain, company.Name, opts.BackupDir, opts.SessionDir)
	if err != nil {
		// A logo already on disk is kept even if the run was cancelled meanwhile.
		if ctx.Err() != nil {
			return cancelled(company, start)
		}
		log.Warn("pipeline: fetch failed", zap.String("domain", resolved.Domain), zap.Error(err))
		return p.fail(ctx, company, opts, err.Error(), start)
	}

	p.index(ctx, art)
	return model.Outcome{Company: company, Artifact: art, Duration: time.Since(start)}
}

// fail records a failure and writes a placeholder in the company's place.
func (p *Pipeline) fail(ctx context.Context, company model.Company, opts Options, reason string, start time.Time) model.Outcome {
	out := model.Outcome{
		Company: company,
		Failure: &model.FailureRecord{CompanyName: company.Name, Reason: reason},
	}

	art, err := p.placeholder.Synthesize(company.Name, opts.BackupDir, opts.SessionDir)
	if err != nil {
		zap.L().Error("pipeline: placeholder failed", zap.String("company", company.Name), zap.Error(err))
		out.Failure.Reason = reason + "; placeholder: " + err.Error()
	} else {
		out.Artifact = art
		p.index(ctx, art)
	}
	out.Duration = time.Since(start)
	return out
}

func cancelled(company model.Company, start time.Time) model.Outcome {
	return model.Outcome{
		Company:  company,
		Failure:  &model.FailureRecord{CompanyName: company.Name, Reason: ReasonCancelled},
		Duration: time.Since(start),
	}
}

// index records a fetched or placeholder artifact under its normalized key.
func (p *Pipeline) index(ctx context.Context, art *model.LogoArtifact) {
	if p.store == nil {
		return
	}
	entry := model.IndexEntry{
		Key:         model.NormalizeKey(art.CompanyName),
		CompanyName: art.CompanyName,
		FileName:    filepath.Base(art.FilePath),
		SourceKind:  art.SourceKind,
		Domain:      art.Domain,
	}
	if err := p.store.UpsertEntry(context.WithoutCancel(ctx), entry); err != nil {
		zap.L().Warn("pipeline: index update failed", zap.String("company", art.CompanyName), zap.Error(err))
	}
}

// indexCached records a backup hit only when the index has no entry yet,
// so the original source kind survives.
func (p *Pipeline) indexCached(ctx context.Context, art *model.LogoArtifact) {
	if p.store == nil {
		return
	}
	existing, err := p.store.GetEntry(ctx, model.NormalizeKey(art.CompanyName))
	if err != nil {
		zap.L().Warn("pipeline: index lookup failed", zap.String("company", art.CompanyName), zap.Error(err))
		return
	}
	if existing == nil {
		p.index(ctx, art)
	}
}

func (p *Pipeline) startRun(ctx context.Context, sessionID string, total int) string {
	if p.store == nil {
		return ""
	}
	run, err := p.store.CreateRun(ctx, sessionID, total)
	if err != nil {
		zap.L().Warn("pipeline: failed to record run", zap.Error(err))
		return ""
	}
	return run.ID
}

func (p *Pipeline) finishRun(runID string, r *Result) {
	if p.store == nil || runID == "" {
		return
	}
	err := p.store.CompleteRun(context.Background(), runID, model.RunSummary{
		Status:    r.Status,
		Succeeded: r.Succeeded,
		Failed:    len(r.Failures),
	})
	if err != nil {
		zap.L().Warn("pipeline: failed to complete run", zap.String("run_id", runID), zap.Error(err))
	}
}

package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/logo-cli/internal/cache"
	"github.com/sells-group/logo-cli/internal/logo"
	"github.com/sells-group/logo-cli/internal/model"
	"github.com/sells-group/logo-cli/internal/resilience"
	"github.com/sells-group/logo-cli/internal/resolve"
	"github.com/sells-group/logo-cli/internal/search"
	"github.com/sells-group/logo-cli/internal/store"
	"github.com/sells-group/logo-cli/pkg/brandfetch"
)

// --- stubs ---

type missReuser struct{}

func (missReuser) TryReuse(context.Context, string, string, string) (*model.LogoArtifact, bool, error) {
	return nil, false, nil
}

type resolverFunc func(ctx context.Context, name string) (model.ResolvedDomain, error)

func (f resolverFunc) Resolve(ctx context.Context, name string) (model.ResolvedDomain, error) {
	return f(ctx, name)
}

type fetcherFunc func(ctx context.Context, domain, name, backupDir, sessionDir string) (*model.LogoArtifact, error)

func (f fetcherFunc) Fetch(ctx context.Context, domain, name, backupDir, sessionDir string) (*model.LogoArtifact, error) {
	return f(ctx, domain, name, backupDir, sessionDir)
}

type recordingSynth struct {
	mu    sync.Mutex
	names []string
}

func (s *recordingSynth) Synthesize(name, _, sessionDir string) (*model.LogoArtifact, error) {
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	return &model.LogoArtifact{
		CompanyName: name,
		FilePath:    filepath.Join(sessionDir, name+".png"),
		Extension:   "png",
		SourceKind:  model.SourcePlaceholder,
	}, nil
}

func okResolver() resolverFunc {
	return func(_ context.Context, name string) (model.ResolvedDomain, error) {
		return model.ResolvedDomain{CompanyName: name, Domain: strings.ToLower(name) + ".com"}, nil
	}
}

func okFetcher() fetcherFunc {
	return func(_ context.Context, domain, name, _, sessionDir string) (*model.LogoArtifact, error) {
		return &model.LogoArtifact{
			CompanyName: name,
			FilePath:    filepath.Join(sessionDir, name+".png"),
			Extension:   "png",
			SourceKind:  model.SourceFetched,
			Domain:      domain,
		}, nil
	}
}

func testOptions(t *testing.T) Options {
	t.Helper()
	root := t.TempDir()
	return Options{
		BackupDir:    filepath.Join(root, "backup"),
		SessionDir:   filepath.Join(root, "session"),
		ManifestPath: filepath.Join(root, "failed_companies.csv"),
	}
}

func names(ns ...string) []model.Company {
	return model.CompaniesFromNames(ns)
}

// --- end to end with real components ---

type cdn struct {
	srv  *httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newCDN(t *testing.T) *cdn {
	t.Helper()
	c := &cdn{hits: map[string]int{}}
	c.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		domain := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")[0]
		c.mu.Lock()
		c.hits[domain]++
		c.mu.Unlock()
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("logo:" + domain))
	}))
	t.Cleanup(c.srv.Close)
	return c
}

func (c *cdn) count(domain string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[domain]
}

func newRealPipeline(t *testing.T, c *cdn, st store.Store) *Pipeline {
	t.Helper()
	searcher := search.Static(map[string][]string{
		"Acme Corp official site": {
			"https://en.wikipedia.org/wiki/Acme_Corporation",
			"https://www.acme.com/about",
		},
		"Wikipedia Inc official site": {
			"https://en.wikipedia.org/wiki/Wikipedia",
			"https://www.linkedin.com/company/wikipedia",
		},
	})
	fetcher := logo.NewFetcher(
		brandfetch.NewClient("test-id", brandfetch.WithBaseURL(c.srv.URL)),
		logo.WithRetryPolicy(resilience.Fixed(logo.DefaultMaxAttempts, time.Millisecond, nil)),
	)
	ph, err := logo.NewPlaceholder()
	require.NoError(t, err)

	var opts []cache.Option
	if st != nil {
		opts = append(opts, cache.WithIndex(st))
	}
	return New(cache.NewCoordinator(opts...), resolve.New(searcher), fetcher, ph, st)
}

func sessionFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	for _, width := range []int{1, 8} {
		t.Run(fmt.Sprintf("concurrency=%d", width), func(t *testing.T) {
			c := newCDN(t)
			p := newRealPipeline(t, c, nil)
			opts := testOptions(t)
			opts.MaxConcurrency = width

			res, err := p.Run(context.Background(), names("Acme Corp", "Acme Corp", "Wikipedia Inc"), opts)
			require.NoError(t, err)

			assert.Equal(t, 1, c.count("acme.com"), "duplicate must not trigger a second download")
			assert.Len(t, res.Outcomes, 3)
			assert.Equal(t, 2, res.Succeeded)
			assert.Equal(t, model.RunStatusComplete, res.Status)

			require.Len(t, res.Failures, 1)
			assert.Equal(t, "Wikipedia Inc", res.Failures[0].CompanyName)
			assert.Contains(t, res.Failures[0].Reason, "no qualifying domain")

			kinds := map[model.SourceKind]int{}
			for _, a := range res.Artifacts {
				kinds[a.SourceKind]++
			}
			assert.Equal(t, map[model.SourceKind]int{
				model.SourceFetched:     1,
				model.SourceCached:      1,
				model.SourcePlaceholder: 1,
			}, kinds)

			assert.Equal(t, []string{"Acme Corp.png", "Wikipedia Inc.png"}, sessionFiles(t, opts.SessionDir))
			assert.Equal(t, []string{"Acme Corp.png", "Wikipedia Inc.png"}, sessionFiles(t, opts.BackupDir))

			data, err := os.ReadFile(filepath.Join(opts.SessionDir, "Acme Corp.png"))
			require.NoError(t, err)
			assert.Equal(t, "logo:acme.com", string(data))

			require.Equal(t, opts.ManifestPath, res.ManifestPath)
			f, err := os.Open(res.ManifestPath)
			require.NoError(t, err)
			defer f.Close() //nolint:errcheck
			rows, err := csv.NewReader(f).ReadAll()
			require.NoError(t, err)
			assert.Equal(t, [][]string{{"Company"}, {"Wikipedia Inc"}}, rows)
		})
	}
}

func TestRun_SecondRunReusesBackup(t *testing.T) {
	c := newCDN(t)
	p := newRealPipeline(t, c, nil)
	opts := testOptions(t)

	_, err := p.Run(context.Background(), names("Acme Corp", "Wikipedia Inc"), opts)
	require.NoError(t, err)
	require.NoError(t, cache.ClearDir(opts.SessionDir))

	res, err := p.Run(context.Background(), names("Acme Corp", "Wikipedia Inc"), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, c.count("acme.com"))
	assert.Equal(t, 2, res.Succeeded, "placeholder from the first run is reused as a cache hit")
	assert.Empty(t, res.Failures)
	assert.Empty(t, res.ManifestPath)
	assert.Equal(t, []string{"Acme Corp.png", "Wikipedia Inc.png"}, sessionFiles(t, opts.SessionDir))
}

func TestRun_IndexesArtifactsAndRecordsRun(t *testing.T) {
	st, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	c := newCDN(t)
	p := newRealPipeline(t, c, st)
	opts := testOptions(t)
	opts.SessionID = "session-42"

	res, err := p.Run(context.Background(), names("Acme Corp", "Wikipedia Inc"), opts)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	acme, err := st.GetEntry(context.Background(), "acme corp")
	require.NoError(t, err)
	require.NotNil(t, acme)
	assert.Equal(t, model.SourceFetched, acme.SourceKind)
	assert.Equal(t, "acme.com", acme.Domain)
	assert.Equal(t, "Acme Corp.png", acme.FileName)

	wiki, err := st.GetEntry(context.Background(), "wikipedia inc")
	require.NoError(t, err)
	require.NotNil(t, wiki)
	assert.Equal(t, model.SourcePlaceholder, wiki.SourceKind)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "session-42", run.SessionID)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 2, run.Total)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 1, run.Failed)

	// A later cache hit must not overwrite the placeholder kind.
	require.NoError(t, cache.ClearDir(opts.SessionDir))
	_, err = p.Run(context.Background(), names("Wikipedia Inc"), opts)
	require.NoError(t, err)
	wiki, err = st.GetEntry(context.Background(), "wikipedia inc")
	require.NoError(t, err)
	assert.Equal(t, model.SourcePlaceholder, wiki.SourceKind)
}

func TestRun_RetryPlaceholdersFetchesAgain(t *testing.T) {
	st, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	opts := testOptions(t)
	synth := &recordingSynth{}
	var attempts atomic.Int32
	resolver := resolverFunc(func(_ context.Context, name string) (model.ResolvedDomain, error) {
		if attempts.Add(1) == 1 {
			return model.ResolvedDomain{}, resolve.ErrNoDomain
		}
		return model.ResolvedDomain{CompanyName: name, Domain: "late.com"}, nil
	})
	fetcher := fetcherFunc(func(_ context.Context, domain, name, backupDir, sessionDir string) (*model.LogoArtifact, error) {
		if err := os.WriteFile(filepath.Join(backupDir, name+".png"), []byte("real"), 0o644); err != nil {
			return nil, err
		}
		return okFetcher()(context.Background(), domain, name, backupDir, sessionDir)
	})

	// The stub synthesizer writes nothing, so the placeholder file is added by hand.
	p := New(cache.NewCoordinator(cache.WithIndex(st), cache.WithRetryPlaceholders(true)), resolver, fetcher, synth, st)
	res, err := p.Run(context.Background(), names("Late Co"), opts)
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	require.NoError(t, os.WriteFile(filepath.Join(opts.BackupDir, "Late Co.png"), []byte("placeholder"), 0o644))

	res, err = p.Run(context.Background(), names("Late Co"), opts)
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, model.SourceFetched, res.Artifacts[0].SourceKind)

	entry, err := st.GetEntry(context.Background(), "late co")
	require.NoError(t, err)
	assert.Equal(t, model.SourceFetched, entry.SourceKind)
}

// --- driver behavior with stubs ---

func TestRun_ConcurrencyBound(t *testing.T) {
	const limit = 3
	var current, peak atomic.Int32

	resolver := resolverFunc(func(_ context.Context, name string) (model.ResolvedDomain, error) {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return model.ResolvedDomain{CompanyName: name, Domain: "x.com"}, nil
	})

	var companies []string
	for i := range 30 {
		companies = append(companies, fmt.Sprintf("Company %02d", i))
	}

	p := New(missReuser{}, resolver, okFetcher(), &recordingSynth{}, nil)
	opts := testOptions(t)
	opts.MaxConcurrency = limit

	res, err := p.Run(context.Background(), names(companies...), opts)
	require.NoError(t, err)
	assert.Equal(t, 30, res.Succeeded)
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Positive(t, peak.Load())
}

func TestRun_DefaultConcurrency(t *testing.T) {
	var current, peak atomic.Int32
	release := make(chan struct{})

	resolver := resolverFunc(func(_ context.Context, name string) (model.ResolvedDomain, error) {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		current.Add(-1)
		return model.ResolvedDomain{CompanyName: name, Domain: "x.com"}, nil
	})

	var companies []string
	for i := range 20 {
		companies = append(companies, fmt.Sprintf("C%d", i))
	}

	go func() {
		for peak.Load() < DefaultMaxConcurrency {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()

	p := New(missReuser{}, resolver, okFetcher(), &recordingSynth{}, nil)
	_, err := p.Run(context.Background(), names(companies...), testOptions(t))
	require.NoError(t, err)
	assert.Equal(t, int32(DefaultMaxConcurrency), peak.Load())
}

func TestRun_ProgressIsMonotonic(t *testing.T) {
	p := New(missReuser{}, okResolver(), okFetcher(), &recordingSynth{}, nil)
	opts := testOptions(t)

	var seen []Progress
	opts.OnProgress = func(pr Progress) { seen = append(seen, pr) }

	_, err := p.Run(context.Background(), names("A", "B", "C", "D"), opts)
	require.NoError(t, err)

	require.Len(t, seen, 4)
	for i, pr := range seen {
		assert.Equal(t, i+1, pr.Completed)
		assert.Equal(t, 4, pr.Total)
		assert.Equal(t, model.SourceFetched, pr.Kind)
	}
	assert.InDelta(t, 1.0, seen[3].Fraction(), 0.0001)
}

func TestRun_AllFailStillCompletes(t *testing.T) {
	synth := &recordingSynth{}
	resolver := resolverFunc(func(context.Context, string) (model.ResolvedDomain, error) {
		return model.ResolvedDomain{}, resolve.ErrNoDomain
	})

	p := New(missReuser{}, resolver, okFetcher(), synth, nil)
	opts := testOptions(t)

	res, err := p.Run(context.Background(), names("A", "B", "C"), opts)
	require.NoError(t, err)
	assert.Zero(t, res.Succeeded)
	assert.Len(t, res.Failures, 3)
	assert.Len(t, res.Artifacts, 3)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, synth.names)
	assert.Equal(t, model.RunStatusComplete, res.Status)
	assert.FileExists(t, opts.ManifestPath)
}

func TestRun_FetchErrorFallsBackToPlaceholder(t *testing.T) {
	synth := &recordingSynth{}
	fetcher := fetcherFunc(func(_ context.Context, domain, _, _, _ string) (*model.LogoArtifact, error) {
		return nil, &logo.FetchError{Domain: domain, Attempts: 5, Err: errors.New("status 503")}
	})

	p := New(missReuser{}, okResolver(), fetcher, synth, nil)
	res, err := p.Run(context.Background(), names("Down"), testOptions(t))
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Reason, "logo download failed")
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, model.SourcePlaceholder, res.Artifacts[0].SourceKind)
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	synth := &recordingSynth{}
	fetcher := fetcherFunc(func(context.Context, string, string, string, string) (*model.LogoArtifact, error) {
		panic("boom")
	})

	p := New(missReuser{}, okResolver(), fetcher, synth, nil)
	res, err := p.Run(context.Background(), names("Fragile", "Sturdy"), testOptions(t))
	require.NoError(t, err)

	require.Len(t, res.Failures, 2)
	for _, f := range res.Failures {
		assert.Equal(t, "panic: boom", f.Reason)
	}
	assert.Len(t, synth.names, 2)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	synth := &recordingSynth{}
	p := New(missReuser{}, okResolver(), okFetcher(), synth, nil)
	opts := testOptions(t)

	res, err := p.Run(ctx, names("A", "B"), opts)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCancelled, res.Status)
	require.Len(t, res.Failures, 2)
	for _, f := range res.Failures {
		assert.Equal(t, ReasonCancelled, f.Reason)
	}
	assert.Empty(t, res.Artifacts)
	assert.Empty(t, synth.names, "cancelled companies get no placeholder")
}

func TestRun_CancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := resolverFunc(func(_ context.Context, name string) (model.ResolvedDomain, error) {
		if name == "Stop" {
			cancel()
		}
		return model.ResolvedDomain{CompanyName: name, Domain: "x.com"}, nil
	})

	synth := &recordingSynth{}
	p := New(missReuser{}, resolver, okFetcher(), synth, nil)
	opts := testOptions(t)
	opts.MaxConcurrency = 1

	res, err := p.Run(ctx, names("First", "Stop", "Later", "Last"), opts)
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCancelled, res.Status)
	assert.Equal(t, 1, res.Succeeded)
	require.Len(t, res.Failures, 3)
	for _, f := range res.Failures {
		assert.Equal(t, ReasonCancelled, f.Reason)
	}
	assert.Empty(t, synth.names)
}

func TestRun_CancelAfterFetchKeepsLogo(t *testing.T) {
	st, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetch := okFetcher()
	fetcher := fetcherFunc(func(ctx context.Context, domain, name, backupDir, sessionDir string) (*model.LogoArtifact, error) {
		art, err := fetch(ctx, domain, name, backupDir, sessionDir)
		cancel()
		return art, err
	})

	synth := &recordingSynth{}
	p := New(missReuser{}, okResolver(), fetcher, synth, st)
	opts := testOptions(t)
	opts.MaxConcurrency = 1

	res, err := p.Run(ctx, names("Acme"), opts)
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCancelled, res.Status)
	assert.Equal(t, 1, res.Succeeded)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, model.SourceFetched, res.Artifacts[0].SourceKind)
	assert.Empty(t, synth.names)

	entry, err := st.GetEntry(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "acme.com", entry.Domain)
}

func TestRun_CacheErrorFallsThroughToFetch(t *testing.T) {
	reuser := reuserFunc(func(context.Context, string, string, string) (*model.LogoArtifact, bool, error) {
		return nil, false, &cache.FilesystemError{Op: "scan", Path: "backup", Err: os.ErrPermission}
	})

	p := New(reuser, okResolver(), okFetcher(), &recordingSynth{}, nil)
	res, err := p.Run(context.Background(), names("Acme"), testOptions(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, model.SourceFetched, res.Artifacts[0].SourceKind)
}

type reuserFunc func(ctx context.Context, name, backupDir, sessionDir string) (*model.LogoArtifact, bool, error)

func (f reuserFunc) TryReuse(ctx context.Context, name, backupDir, sessionDir string) (*model.LogoArtifact, bool, error) {
	return f(ctx, name, backupDir, sessionDir)
}

func TestRun_DuplicateOfFailureIsFailure(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	resolver := resolverFunc(func(context.Context, string) (model.ResolvedDomain, error) {
		calls.Add(1)
		<-release
		return model.ResolvedDomain{}, resolve.ErrNoDomain
	})

	synth := &recordingSynth{}
	p := New(missReuser{}, resolver, okFetcher(), synth, nil)
	opts := testOptions(t)
	opts.MaxConcurrency = 2

	go func() {
		for calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	res, err := p.Run(context.Background(), names("Ghost", "Ghost"), opts)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, res.Failures, 2)
	assert.Len(t, synth.names, 1)
}

func TestRun_InvalidOptions(t *testing.T) {
	p := New(missReuser{}, okResolver(), okFetcher(), &recordingSynth{}, nil)
	_, err := p.Run(context.Background(), names("A"), Options{})
	require.Error(t, err)
}

func TestRun_EmptyInput(t *testing.T) {
	p := New(missReuser{}, okResolver(), okFetcher(), &recordingSynth{}, nil)
	res, err := p.Run(context.Background(), nil, testOptions(t))
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
	assert.Equal(t, model.RunStatusComplete, res.Status)
}

func TestProgress_FractionEmpty(t *testing.T) {
	assert.InDelta(t, 1.0, Progress{}.Fraction(), 0.0001)
	assert.InDelta(t, 0.25, Progress{Completed: 1, Total: 4}.Fraction(), 0.0001)
}

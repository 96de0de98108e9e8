package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/logo-cli/internal/cache"
	"github.com/sells-group/logo-cli/internal/config"
	"github.com/sells-group/logo-cli/internal/logo"
	"github.com/sells-group/logo-cli/internal/model"
	"github.com/sells-group/logo-cli/internal/pipeline"
	"github.com/sells-group/logo-cli/internal/resolve"
	"github.com/sells-group/logo-cli/internal/search"
	"github.com/sells-group/logo-cli/internal/source"
	"github.com/sells-group/logo-cli/internal/store"
	"github.com/sells-group/logo-cli/pkg/brandfetch"
	"github.com/sells-group/logo-cli/pkg/google"
	"github.com/sells-group/logo-cli/pkg/jina"
	"github.com/sells-group/logo-cli/pkg/notion"
)

var pullCmd = &cobra.Command{
	Use:   "pull [company...]",
	Short: "Download logos for a list of companies",
	Long: `Looks up each company in the backup store, otherwise resolves its domain and
downloads the logo, falling back to a placeholder. Companies come from
--file, --notion, the arguments, or one name per line on stdin.`,
	RunE: runPull,
}

func init() {
	addPullFlags(pullCmd)
	rootCmd.AddCommand(pullCmd)
}

func addPullFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "read companies from a .txt, .csv or .xlsx file")
	cmd.Flags().Bool("notion", false, "read companies from the configured Notion database")
	cmd.Flags().String("notion-status", "", "only take Notion rows with this status")
	cmd.Flags().Bool("dedupe", false, "drop repeated company names before the run")
	cmd.Flags().String("session", "", "session id (default: a new uuid)")
	cmd.Flags().Int("concurrency", 0, "max companies in flight (default: pipeline.max_concurrency)")
	cmd.Flags().String("manifest", "", "failure manifest path (default: pipeline.manifest_path)")
	cmd.Flags().Bool("quiet", false, "disable the progress spinner")
}

func runPull(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate("pull"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	companies, err := loadCompanies(ctx, cmd, args)
	if err != nil {
		return err
	}
	if dedupe, _ := cmd.Flags().GetBool("dedupe"); dedupe {
		companies = model.Dedupe(companies)
	}
	if len(companies) == 0 {
		return eris.New("pull: no companies given")
	}

	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = cache.NewSessionID()
	}
	sessionDir := cache.SessionDir(cfg.Cache.SessionRoot, sessionID)
	if err := cache.ClearDir(sessionDir); err != nil {
		zap.L().Warn("pull: session cache not cleared", zap.Error(err))
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	p, err := buildPipeline(cfg, st)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		BackupDir:      cfg.Cache.BackupDir,
		SessionDir:     sessionDir,
		SessionID:      sessionID,
		MaxConcurrency: cfg.Pipeline.MaxConcurrency,
		ManifestPath:   cfg.Pipeline.ManifestPath,
	}
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		opts.MaxConcurrency = n
	}
	if m, _ := cmd.Flags().GetString("manifest"); m != "" {
		opts.ManifestPath = m
	}

	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" 0/%d", len(companies))
		s.Start()
		defer s.Stop()
		opts.OnProgress = func(pr pipeline.Progress) {
			s.Lock()
			s.Suffix = progressLine(pr)
			s.Unlock()
		}
	}

	res, err := p.Run(ctx, companies, opts)
	if res != nil {
		printSummary(cmd.OutOrStdout(), res, sessionDir)
	}
	return err
}

// loadCompanies picks the company source from flags, args or stdin.
func loadCompanies(ctx context.Context, cmd *cobra.Command, args []string) ([]model.Company, error) {
	file, _ := cmd.Flags().GetString("file")
	useNotion, _ := cmd.Flags().GetBool("notion")

	switch {
	case file != "":
		return source.Read(file)
	case useNotion:
		if cfg.Notion.Token == "" || cfg.Notion.CompanyDB == "" {
			return nil, eris.New("pull: notion.token and notion.company_db are required for --notion")
		}
		status, _ := cmd.Flags().GetString("notion-status")
		client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RatePerSec))
		return source.FromNotion(ctx, client, cfg.Notion.CompanyDB, cfg.Notion.NameProperty, status)
	case len(args) > 0:
		return model.CompaniesFromNames(args), nil
	default:
		return source.ReadText(cmd.InOrStdin())
	}
}

// buildPipeline wires the search backend, resolver, CDN fetcher,
// placeholder generator and cache coordinator from configuration.
func buildPipeline(c *config.Config, st store.Store) (*pipeline.Pipeline, error) {
	searcher, err := newSearcher(c)
	if err != nil {
		return nil, err
	}
	resolver := resolve.New(searcher, resolve.WithBlockedHosts(c.Search.BlockedHosts))

	bf := brandfetch.NewClient(c.Brandfetch.ClientID,
		brandfetch.WithBaseURL(c.Brandfetch.BaseURL),
		brandfetch.WithSize(c.Brandfetch.Width, c.Brandfetch.Height),
		brandfetch.WithHTTPClient(&http.Client{Timeout: seconds(c.Brandfetch.TimeoutSecs)}),
	)
	fetcher := logo.NewFetcher(bf,
		logo.WithRetry(c.Brandfetch.MaxAttempts, time.Duration(c.Brandfetch.RetryDelayMS)*time.Millisecond),
		logo.WithLimiter(newLimiter(c.Brandfetch.RatePerSec)),
		logo.WithWebPTranscode(c.Brandfetch.TranscodeWebP),
	)

	placeholder, err := logo.NewPlaceholder()
	if err != nil {
		return nil, err
	}

	lookup, err := cache.ParseLookup(c.Cache.Lookup)
	if err != nil {
		return nil, err
	}
	coord := cache.NewCoordinator(
		cache.WithIndex(st),
		cache.WithLookup(lookup),
		cache.WithRetryPlaceholders(c.Cache.RetryPlaceholders),
	)

	return pipeline.New(coord, resolver, fetcher, placeholder, st), nil
}

func newSearcher(c *config.Config) (search.Searcher, error) {
	hc := &http.Client{Timeout: seconds(c.Search.TimeoutSecs)}
	limiter := search.WithLimiter(newLimiter(c.Search.RatePerSec))

	switch c.Search.Provider {
	case "google":
		client := google.NewClient(c.Google.Key, c.Google.CX,
			google.WithBaseURL(c.Google.BaseURL),
			google.WithHTTPClient(hc),
		)
		return search.NewGoogle(client, limiter, search.WithMaxPages(c.Search.MaxPages)), nil
	case "jina":
		client := jina.NewClient(c.Jina.Key,
			jina.WithSearchBaseURL(c.Jina.SearchBaseURL),
			jina.WithHTTPClient(hc),
		)
		return search.NewJina(client, limiter), nil
	default:
		return nil, eris.Errorf("unknown search provider %q", c.Search.Provider)
	}
}

// newLimiter returns an unbounded limiter for non-positive rates.
func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSec), 1)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func progressLine(p pipeline.Progress) string {
	status := string(p.Kind)
	if p.Failed {
		status = "failed"
	}
	return fmt.Sprintf(" %d/%d (%.0f%%) %s: %s", p.Completed, p.Total, p.Fraction()*100, p.Company, status)
}

// printSummary writes the end-of-run report.
func printSummary(w io.Writer, res *pipeline.Result, sessionDir string) {
	counts := map[model.SourceKind]int{}
	for _, a := range res.Artifacts {
		counts[a.SourceKind]++
	}
	_, _ = fmt.Fprintf(w, "Run %s: %s in %s\n", truncateID(res.RunID), res.Status, res.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "Logos: %d (fetched %d, cached %d, placeholders %d)\n",
		len(res.Artifacts), counts[model.SourceFetched], counts[model.SourceCached], counts[model.SourcePlaceholder])
	_, _ = fmt.Fprintf(w, "Succeeded: %d  Failed: %d\n", res.Succeeded, len(res.Failures))
	_, _ = fmt.Fprintf(w, "Session cache: %s\n", sessionDir)
	if res.ManifestPath != "" {
		_, _ = fmt.Fprintf(w, "Failures written to %s\n", res.ManifestPath)
	}
}

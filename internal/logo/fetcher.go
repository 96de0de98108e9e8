// Package logo downloads company logos from the CDN and synthesizes
// placeholders when no logo can be obtained.
package logo

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"mime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/image/webp"
	"golang.org/x/time/rate"

	"github.com/sells-group/logo-cli/internal/model"
	"github.com/sells-group/logo-cli/internal/resilience"
	"github.com/sells-group/logo-cli/pkg/brandfetch"
)

const (
	// DefaultMaxAttempts is the total number of CDN tries per company.
	DefaultMaxAttempts = 5
	// DefaultRetryDelay is the fixed pause between CDN tries.
	DefaultRetryDelay = 2 * time.Second
)

// DefaultUserAgents is the rotation pool for CDN requests.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.212 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.107 Safari/537.36",
}

// FetchError is returned once the retry budget is spent. StatusCode is the
// CDN status of the last attempt, or 0 for transport errors.
type FetchError struct {
	Domain     string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("logo download failed: %s after %d attempts: %v", e.Domain, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher downloads logos and stores them in the backup and session dirs.
type Fetcher struct {
	client        brandfetch.Client
	policy        resilience.RetryConfig
	userAgents    []string
	limiter       *rate.Limiter
	transcodeWebP bool
	rotation      atomic.Uint64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithRetryPolicy replaces the default 5 × 2s fixed policy.
func WithRetryPolicy(p resilience.RetryConfig) FetcherOption {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithRetry sets a fixed policy of maxAttempts tries, delay apart.
// Non-positive values leave the default in place.
func WithRetry(maxAttempts int, delay time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if maxAttempts <= 0 || delay <= 0 {
			return
		}
		f.policy = resilience.Fixed(maxAttempts, delay, resilience.Always)
	}
}

// WithUserAgents replaces the User-Agent rotation pool.
func WithUserAgents(agents []string) FetcherOption {
	return func(f *Fetcher) {
		if len(agents) > 0 {
			f.userAgents = agents
		}
	}
}

// WithLimiter throttles CDN requests. The limiter may be shared.
func WithLimiter(l *rate.Limiter) FetcherOption {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithWebPTranscode controls whether webp bodies are re-encoded as PNG.
// When off, or when decoding fails, webp bytes are stored under .png as-is.
func WithWebPTranscode(on bool) FetcherOption {
	return func(f *Fetcher) {
		f.transcodeWebP = on
	}
}

// NewFetcher creates a Fetcher around a CDN client.
func NewFetcher(client brandfetch.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:        client,
		userAgents:    DefaultUserAgents,
		transcodeWebP: true,
	}
	f.policy = resilience.Fixed(DefaultMaxAttempts, DefaultRetryDelay, resilience.Always)
	for _, o := range opts {
		o(f)
	}
	if f.policy.OnRetry == nil {
		f.policy.OnRetry = resilience.RetryLogger("brandfetch", "fetch_logo")
	}
	return f
}

// Fetch downloads domain's logo and writes it under companyName in both
// directories.
func (f *Fetcher) Fetch(ctx context.Context, domain, companyName, backupDir, sessionDir string) (*model.LogoArtifact, error) {
	log := zap.L().With(zap.String("company", companyName), zap.String("domain", domain))

	var attempts int
	logo, err := resilience.DoVal(ctx, f.policy, func(ctx context.Context) (*brandfetch.Logo, error) {
		attempts++
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "logo: rate limit")
			}
		}
		ua := f.userAgents[int(f.rotation.Add(1)-1)%len(f.userAgents)]
		return f.client.Logo(ctx, domain, brandfetch.WithUserAgent(ua))
	})
	if err != nil {
		return nil, &FetchError{Domain: domain, Attempts: attempts, StatusCode: resilience.StatusCode(err), Err: err}
	}

	ext := Extension(logo.ContentType)
	data := logo.Data
	if isWebP(logo.ContentType) && f.transcodeWebP {
		if converted, convErr := webpToPNG(data); convErr == nil {
			data = converted
		} else {
			log.Warn("webp transcode failed, storing original bytes", zap.Error(convErr))
		}
	}

	backupPath, sessionPath, err := writeBoth(companyName, ext, data, backupDir, sessionDir)
	if err != nil {
		return nil, err
	}

	log.Info("logo saved", zap.String("path", sessionPath), zap.Int("attempts", attempts))
	return &model.LogoArtifact{
		CompanyName: companyName,
		FilePath:    sessionPath,
		BackupPath:  backupPath,
		Extension:   ext,
		SourceKind:  model.SourceFetched,
		Domain:      domain,
	}, nil
}

// Extension derives a file extension from a content type. webp maps to
// png and svg+xml to svg.
func Extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	ext := strings.ToLower(mediaType[strings.LastIndex(mediaType, "/")+1:])
	switch ext {
	case "webp":
		return "png"
	case "svg+xml":
		return "svg"
	case "x-icon", "vnd.microsoft.icon":
		return "ico"
	case "":
		return "img"
	}
	return ext
}

func isWebP(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "image/webp")
}

func webpToPNG(data []byte) ([]byte, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "logo: decode webp")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, eris.Wrap(err, "logo: encode png")
	}
	return buf.Bytes(), nil
}

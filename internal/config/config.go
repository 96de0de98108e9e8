package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Brandfetch BrandfetchConfig `yaml:"brandfetch" mapstructure:"brandfetch"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Layout     LayoutConfig     `yaml:"layout" mapstructure:"layout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the index and run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SearchConfig selects and throttles the web search backend.
type SearchConfig struct {
	Provider     string   `yaml:"provider" mapstructure:"provider"`
	RatePerSec   float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs  int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxPages     int      `yaml:"max_pages" mapstructure:"max_pages"`
	BlockedHosts []string `yaml:"blocked_hosts" mapstructure:"blocked_hosts"`
}

// GoogleConfig holds Google Custom Search credentials.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	CX      string `yaml:"cx" mapstructure:"cx"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// BrandfetchConfig configures the logo CDN client and its retry budget.
type BrandfetchConfig struct {
	ClientID      string  `yaml:"client_id" mapstructure:"client_id"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Width         int     `yaml:"width" mapstructure:"width"`
	Height        int     `yaml:"height" mapstructure:"height"`
	MaxAttempts   int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryDelayMS  int     `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	TranscodeWebP bool    `yaml:"transcode_webp" mapstructure:"transcode_webp"`
}

// CacheConfig locates the backup store and session caches.
type CacheConfig struct {
	BackupDir         string `yaml:"backup_dir" mapstructure:"backup_dir"`
	SessionRoot       string `yaml:"session_root" mapstructure:"session_root"`
	Lookup            string `yaml:"lookup" mapstructure:"lookup"`
	RetryPlaceholders bool   `yaml:"retry_placeholders" mapstructure:"retry_placeholders"`
}

// PipelineConfig configures the parallel driver.
type PipelineConfig struct {
	MaxConcurrency int    `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	ManifestPath   string `yaml:"manifest_path" mapstructure:"manifest_path"`
}

// NotionConfig holds Notion API credentials and the company database.
type NotionConfig struct {
	Token        string  `yaml:"token" mapstructure:"token"`
	CompanyDB    string  `yaml:"company_db" mapstructure:"company_db"`
	NameProperty string  `yaml:"name_property" mapstructure:"name_property"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// LayoutConfig configures logo processing and slide placement.
type LayoutConfig struct {
	Columns        int     `yaml:"columns" mapstructure:"columns"`
	Rows           int     `yaml:"rows" mapstructure:"rows"`
	WidthIn        float64 `yaml:"width_in" mapstructure:"width_in"`
	HeightIn       float64 `yaml:"height_in" mapstructure:"height_in"`
	DPI            float64 `yaml:"dpi" mapstructure:"dpi"`
	WhiteThreshold int     `yaml:"white_threshold" mapstructure:"white_threshold"`
	OutputDir      string  `yaml:"output_dir" mapstructure:"output_dir"`
	PlanPath       string  `yaml:"plan_path" mapstructure:"plan_path"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without defaults are invisible to Unmarshal unless bound.
	for _, key := range []string{
		"store.database_url", "google.key", "google.cx", "jina.key",
		"brandfetch.client_id", "notion.token", "notion.company_db",
	} {
		_ = v.BindEnv(key)
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "logo_index.db")
	v.SetDefault("search.provider", "google")
	v.SetDefault("search.rate_per_sec", 2.0)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.max_pages", 3)
	v.SetDefault("search.blocked_hosts", []string{"wikipedia", "linkedin"})
	v.SetDefault("google.base_url", "https://customsearch.googleapis.com")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("brandfetch.base_url", "https://cdn.brandfetch.io")
	v.SetDefault("brandfetch.width", 512)
	v.SetDefault("brandfetch.height", 94)
	v.SetDefault("brandfetch.max_attempts", 5)
	v.SetDefault("brandfetch.retry_delay_ms", 2000)
	v.SetDefault("brandfetch.rate_per_sec", 1.0)
	v.SetDefault("brandfetch.timeout_secs", 30)
	v.SetDefault("brandfetch.transcode_webp", true)
	v.SetDefault("cache.backup_dir", "logo_backup")
	v.SetDefault("cache.session_root", "logo_cache")
	v.SetDefault("cache.lookup", "prefix")
	v.SetDefault("cache.retry_placeholders", false)
	v.SetDefault("pipeline.max_concurrency", 8)
	v.SetDefault("pipeline.manifest_path", "failed_companies.csv")
	v.SetDefault("notion.name_property", "Name")
	v.SetDefault("notion.rate_per_sec", 3.0)
	v.SetDefault("layout.columns", 5)
	v.SetDefault("layout.rows", 5)
	v.SetDefault("layout.width_in", 5.0)
	v.SetDefault("layout.height_in", 5.0)
	v.SetDefault("layout.dpi", 96.0)
	v.SetDefault("layout.white_threshold", 230)
	v.SetDefault("layout.output_dir", "processed_logos")
	v.SetDefault("layout.plan_path", "layout_plan.yaml")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs. Modes are "pull",
// "layout" and "index".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Cache.BackupDir == "" {
		errs = append(errs, "cache.backup_dir is required")
	}

	switch mode {
	case "pull":
		switch c.Search.Provider {
		case "google":
			if c.Google.Key == "" || c.Google.CX == "" {
				errs = append(errs, "google.key and google.cx are required")
			}
		case "jina":
		default:
			errs = append(errs, fmt.Sprintf("search.provider %q must be google or jina", c.Search.Provider))
		}
		switch c.Cache.Lookup {
		case "prefix", "index":
		default:
			errs = append(errs, fmt.Sprintf("cache.lookup %q must be prefix or index", c.Cache.Lookup))
		}
		if c.Cache.SessionRoot == "" {
			errs = append(errs, "cache.session_root is required")
		}
		if c.Brandfetch.ClientID == "" {
			errs = append(errs, "brandfetch.client_id is required")
		}
		if c.Brandfetch.MaxAttempts < 1 {
			errs = append(errs, "brandfetch.max_attempts must be >= 1")
		}
		if c.Brandfetch.RetryDelayMS < 1 {
			errs = append(errs, "brandfetch.retry_delay_ms must be >= 1")
		}
		if c.Pipeline.MaxConcurrency < 1 || c.Pipeline.MaxConcurrency > 64 {
			errs = append(errs, "pipeline.max_concurrency must be between 1 and 64")
		}
	case "layout":
		if c.Layout.Columns < 1 || c.Layout.Rows < 1 {
			errs = append(errs, "layout.columns and layout.rows must be >= 1")
		}
		if c.Layout.WidthIn <= 0 || c.Layout.HeightIn <= 0 {
			errs = append(errs, "layout.width_in and layout.height_in must be > 0")
		}
		if c.Layout.WhiteThreshold < 0 || c.Layout.WhiteThreshold > 255 {
			errs = append(errs, "layout.white_threshold must be between 0 and 255")
		}
	case "index":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

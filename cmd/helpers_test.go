//go:build !integration

package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/logo-cli/internal/config"
)

// useConfig installs c as the command configuration for the test.
func useConfig(t *testing.T, c *config.Config) {
	t.Helper()
	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
}

// testConfig returns a valid configuration rooted at dir.
func testConfig(dir string) *config.Config {
	c := &config.Config{}
	c.Log = config.LogConfig{Level: "info", Format: "json"}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(dir, "index.db")
	c.Search.Provider = "google"
	c.Search.MaxPages = 1
	c.Search.BlockedHosts = []string{"wikipedia", "linkedin"}
	c.Google.Key = "key"
	c.Google.CX = "cx"
	c.Brandfetch.ClientID = "client"
	c.Brandfetch.Width = 512
	c.Brandfetch.Height = 94
	c.Brandfetch.MaxAttempts = 2
	c.Brandfetch.RetryDelayMS = 1
	c.Brandfetch.TranscodeWebP = true
	c.Cache.BackupDir = filepath.Join(dir, "backup")
	c.Cache.SessionRoot = filepath.Join(dir, "sessions")
	c.Cache.Lookup = "prefix"
	c.Pipeline.MaxConcurrency = 4
	c.Pipeline.ManifestPath = filepath.Join(dir, "failed_companies.csv")
	c.Layout = config.LayoutConfig{
		Columns: 5, Rows: 5, WidthIn: 5, HeightIn: 5, DPI: 96,
		WhiteThreshold: 230,
		OutputDir:      filepath.Join(dir, "processed"),
		PlanPath:       filepath.Join(dir, "plan.yaml"),
	}
	return c
}

// newTestCmd builds a detached command with captured output.
func newTestCmd(addFlags func(*cobra.Command)) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	if addFlags != nil {
		addFlags(cmd)
	}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	for y := h / 4; y < 3*h/4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// Package layout computes the logo grid for a slide and prepares logo
// images to fit it.
package layout

import (
	"github.com/rotisserie/eris"
)

// EMUPerInch is the number of English Metric Units in one inch, the unit
// slide documents position shapes in.
const EMUPerInch = 914400

// GridConfig describes the slide and its grid.
type GridConfig struct {
	Columns  int     `yaml:"columns" json:"columns" mapstructure:"columns"`
	Rows     int     `yaml:"rows" json:"rows" mapstructure:"rows"`
	WidthIn  float64 `yaml:"width_in" json:"width_in" mapstructure:"width_in"`
	HeightIn float64 `yaml:"height_in" json:"height_in" mapstructure:"height_in"`
	DPI      float64 `yaml:"dpi" json:"dpi" mapstructure:"dpi"`
}

// DefaultGridConfig is a 5×5 grid on a 5in square slide at 96 DPI.
func DefaultGridConfig() GridConfig {
	return GridConfig{Columns: 5, Rows: 5, WidthIn: 5, HeightIn: 5, DPI: 96}
}

// Grid is a validated GridConfig.
type Grid struct {
	cfg GridConfig
}

// NewGrid validates cfg. A zero DPI defaults to 96.
func NewGrid(cfg GridConfig) (Grid, error) {
	if cfg.DPI == 0 {
		cfg.DPI = 96
	}
	switch {
	case cfg.Columns <= 0 || cfg.Rows <= 0:
		return Grid{}, eris.Errorf("layout: grid needs at least one column and row, got %dx%d", cfg.Columns, cfg.Rows)
	case cfg.WidthIn <= 0 || cfg.HeightIn <= 0:
		return Grid{}, eris.Errorf("layout: slide size must be positive, got %gx%g in", cfg.WidthIn, cfg.HeightIn)
	case cfg.DPI < 0:
		return Grid{}, eris.Errorf("layout: dpi must be positive, got %g", cfg.DPI)
	}
	return Grid{cfg: cfg}, nil
}

// Config returns the grid's configuration.
func (g Grid) Config() GridConfig {
	return g.cfg
}

// Capacity is the number of logos the grid holds.
func (g Grid) Capacity() int {
	return g.cfg.Columns * g.cfg.Rows
}

// ColumnCenters returns the horizontal center of each column in inches.
// Columns split the slide width evenly.
func (g Grid) ColumnCenters() []float64 {
	return centers(g.cfg.Columns, g.cfg.WidthIn)
}

// RowCenters returns the vertical center of each row in inches.
func (g Grid) RowCenters() []float64 {
	return centers(g.cfg.Rows, g.cfg.HeightIn)
}

func centers(n int, span float64) []float64 {
	cell := span / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = (float64(i) + 0.5) * cell
	}
	return out
}

// MaxLogoSize is the pixel box a logo is scaled into: half a row tall
// and one column wide.
func (g Grid) MaxLogoSize() (width, height int) {
	height = int(g.cfg.HeightIn * g.cfg.DPI / float64(g.cfg.Rows) / 2)
	width = int(g.cfg.WidthIn * g.cfg.DPI / float64(g.cfg.Columns))
	return width, height
}

// FitSize scales srcW×srcH to the logo height, keeping the aspect ratio,
// then shrinks to the column width if it is still too wide.
func (g Grid) FitSize(srcW, srcH int) (width, height int) {
	maxW, maxH := g.MaxLogoSize()
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	aspect := float64(srcW) / float64(srcH)

	width, height = int(float64(maxH)*aspect), maxH
	if width > maxW {
		width = maxW
		height = int(float64(width) / aspect)
	}
	return max(width, 1), max(height, 1)
}

// Item is a processed logo ready to be placed.
type Item struct {
	Name   string `yaml:"name" json:"name"`
	Path   string `yaml:"path" json:"path"`
	Width  int    `yaml:"width_px" json:"width_px"`
	Height int    `yaml:"height_px" json:"height_px"`
}

// Placement positions one logo on the slide. Offsets are the top-left
// corner.
type Placement struct {
	Item      `yaml:",inline"`
	Column    int   `yaml:"column" json:"column"`
	Row       int   `yaml:"row" json:"row"`
	XEMU      int64 `yaml:"x_emu" json:"x_emu"`
	YEMU      int64 `yaml:"y_emu" json:"y_emu"`
	WidthEMU  int64 `yaml:"width_emu" json:"width_emu"`
	HeightEMU int64 `yaml:"height_emu" json:"height_emu"`
}

// Place fills the grid row by row and centers each logo in its cell.
// Items beyond the grid's capacity are returned as overflow.
func (g Grid) Place(items []Item) (placed []Placement, overflow []Item) {
	cols, rows := g.ColumnCenters(), g.RowCenters()
	for i, it := range items {
		if i >= g.Capacity() {
			return placed, items[i:]
		}
		c, r := i%g.cfg.Columns, i/g.cfg.Columns

		wIn := float64(it.Width) / g.cfg.DPI
		hIn := float64(it.Height) / g.cfg.DPI
		placed = append(placed, Placement{
			Item:      it,
			Column:    c,
			Row:       r,
			XEMU:      emu(cols[c] - wIn/2),
			YEMU:      emu(rows[r] - hIn/2),
			WidthEMU:  emu(wIn),
			HeightEMU: emu(hIn),
		})
	}
	return placed, nil
}

func emu(inches float64) int64 {
	v := inches * EMUPerInch
	if v < 0 {
		return int64(v - 0.5)
	}
	return int64(v + 0.5)
}

package layout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Plan is the placement handed to the slide writer.
type Plan struct {
	Slide      Slide       `yaml:"slide" json:"slide"`
	Grid       GridConfig  `yaml:"grid" json:"grid"`
	Placements []Placement `yaml:"placements" json:"placements"`
	Overflow   []string    `yaml:"overflow,omitempty" json:"overflow,omitempty"`
	Skipped    []string    `yaml:"skipped,omitempty" json:"skipped,omitempty"`
}

// Slide is the slide size in EMU.
type Slide struct {
	WidthEMU  int64 `yaml:"width_emu" json:"width_emu"`
	HeightEMU int64 `yaml:"height_emu" json:"height_emu"`
}

// BuildPlan places items on the grid.
func (g Grid) BuildPlan(items []Item, skipped []string) Plan {
	placed, overflow := g.Place(items)
	p := Plan{
		Slide:      Slide{WidthEMU: emu(g.cfg.WidthIn), HeightEMU: emu(g.cfg.HeightIn)},
		Grid:       g.cfg,
		Placements: placed,
		Skipped:    skipped,
	}
	for _, it := range overflow {
		p.Overflow = append(p.Overflow, it.Name)
	}
	return p
}

// WritePlan stores p at path as JSON when the extension is .json and as
// YAML otherwise.
func WritePlan(path string, p Plan) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(p, "", "  ")
	} else {
		data, err = yaml.Marshal(p)
	}
	if err != nil {
		return eris.Wrap(err, "layout: encode plan")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "layout: create %s", dir)
		}
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "layout: write plan %s", path)
}

// LoadPlan reads a plan written by WritePlan.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layout: read plan %s", path)
	}
	var p Plan
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &p)
	} else {
		err = yaml.Unmarshal(data, &p)
	}
	if err != nil {
		return nil, eris.Wrap(err, "layout: parse plan")
	}
	return &p, nil
}

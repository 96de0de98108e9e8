package logo

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/sells-group/logo-cli/internal/model"
)

const (
	// PlaceholderWidth and PlaceholderHeight match the CDN logo box.
	PlaceholderWidth  = 512
	PlaceholderHeight = 94

	maxFontSize = 40.0
	minFontSize = 8.0
	textPadding = 16
)

var (
	placeholderBackground = color.NRGBA{R: 0xEE, G: 0xEE, B: 0xEE, A: 0xFF}
	placeholderText       = color.NRGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xFF}
)

// Placeholder renders a neutral image with the company name on it. A
// placeholder is written under the same file name a fetched logo would
// use, so later runs reuse it like any cached logo.
type Placeholder struct {
	font   *opentype.Font
	width  int
	height int
}

// NewPlaceholder parses the bundled Go Regular font.
func NewPlaceholder() (*Placeholder, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, eris.Wrap(err, "placeholder: parse font")
	}
	return &Placeholder{font: f, width: PlaceholderWidth, height: PlaceholderHeight}, nil
}

// Render draws the placeholder image for companyName. The font shrinks
// until the name fits inside the padded box.
func (p *Placeholder) Render(companyName string) (image.Image, error) {
	img := image.NewNRGBA(image.Rect(0, 0, p.width, p.height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: placeholderBackground}, image.Point{}, draw.Src)

	face, advance, err := p.fit(companyName)
	if err != nil {
		return nil, err
	}
	defer face.Close() //nolint:errcheck

	m := face.Metrics()
	x := (fixed.I(p.width) - advance) / 2
	y := (fixed.I(p.height) + m.Ascent - m.Descent) / 2

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(placeholderText),
		Face: face,
		Dot:  fixed.Point26_6{X: x, Y: y},
	}
	d.DrawString(companyName)
	return img, nil
}

func (p *Placeholder) fit(text string) (font.Face, fixed.Int26_6, error) {
	limit := fixed.I(p.width - 2*textPadding)
	for size := maxFontSize; ; size -= 2 {
		face, err := opentype.NewFace(p.font, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, 0, eris.Wrap(err, "placeholder: new face")
		}
		advance := font.MeasureString(face, text)
		if advance <= limit || size-2 < minFontSize {
			return face, advance, nil
		}
		_ = face.Close()
	}
}

// Synthesize renders a placeholder and saves it as <companyName>.png in
// both directories.
func (p *Placeholder) Synthesize(companyName, backupDir, sessionDir string) (*model.LogoArtifact, error) {
	img, err := p.Render(companyName)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, eris.Wrap(err, "placeholder: encode png")
	}

	backupPath, sessionPath, err := writeBoth(companyName, "png", buf.Bytes(), backupDir, sessionDir)
	if err != nil {
		return nil, err
	}

	zap.L().Info("placeholder saved", zap.String("company", companyName), zap.String("path", sessionPath))
	return &model.LogoArtifact{
		CompanyName: companyName,
		FilePath:    sessionPath,
		BackupPath:  backupPath,
		Extension:   "png",
		SourceKind:  model.SourcePlaceholder,
	}, nil
}

package layout

import (
	"context"
	"image"
	_ "image/gif"  // decoder
	_ "image/jpeg" // decoder
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // decoder
	"golang.org/x/sync/errgroup"
)

// imageExts are the logo files the processor understands.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// ProcessFile cleans and scales one logo and writes it as PNG into outDir
// under the same stem.
func (g Grid) ProcessFile(path, outDir string, threshold uint8) (Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return Item{}, eris.Wrapf(err, "layout: open %s", path)
	}
	img, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return Item{}, eris.Wrapf(err, "layout: decode %s", path)
	}

	fitted := g.Fit(img, threshold)

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outPath := filepath.Join(outDir, stem+".png")
	out, err := os.Create(outPath)
	if err != nil {
		return Item{}, eris.Wrapf(err, "layout: create %s", outPath)
	}
	if err := png.Encode(out, fitted); err != nil {
		_ = out.Close()
		return Item{}, eris.Wrapf(err, "layout: encode %s", outPath)
	}
	if err := out.Close(); err != nil {
		return Item{}, eris.Wrapf(err, "layout: close %s", outPath)
	}

	b := fitted.Bounds()
	return Item{Name: stem, Path: outPath, Width: b.Dx(), Height: b.Dy()}, nil
}

// ProcessDir processes every image in inDir, in file name order, into
// outDir. Files that cannot be decoded are logged and skipped; their
// names are returned as skipped.
func (g Grid) ProcessDir(ctx context.Context, inDir, outDir string, threshold uint8) (items []Item, skipped []string, err error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "layout: read %s", inDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, nil, eris.Wrapf(err, "layout: create %s", outDir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			skipped = append(skipped, e.Name())
			continue
		}
		paths = append(paths, filepath.Join(inDir, e.Name()))
	}
	sort.Strings(paths)

	results := make([]*Item, len(paths))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			it, err := g.ProcessFile(p, outDir, threshold)
			if err != nil {
				zap.L().Warn("layout: skipping logo", zap.String("path", p), zap.Error(err))
				return nil
			}
			results[i] = &it
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "layout: process dir")
	}

	for i, r := range results {
		if r == nil {
			skipped = append(skipped, filepath.Base(paths[i]))
			continue
		}
		items = append(items, *r)
	}
	return items, skipped, nil
}

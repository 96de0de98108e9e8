// Package manifest writes the list of companies whose logo could not be
// obtained. The file has a single "Company" column and can be fed back
// to the pull command as a company source.
package manifest

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/logo-cli/internal/model"
)

// Header is the manifest's only column.
const Header = "Company"

// SheetName is the worksheet used for XLSX manifests.
const SheetName = "Failed"

// Names returns the distinct company names in failures, first occurrence first.
func Names(failures []model.FailureRecord) []string {
	seen := make(map[string]bool, len(failures))
	names := make([]string, 0, len(failures))
	for _, f := range failures {
		if seen[f.CompanyName] {
			continue
		}
		seen[f.CompanyName] = true
		names = append(names, f.CompanyName)
	}
	return names
}

// Write stores failures at path. A .xlsx extension produces a workbook,
// anything else CSV.
func Write(path string, failures []model.FailureRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "manifest: create dir %s", dir)
		}
	}

	names := Names(failures)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return writeXLSX(path, names)
	}
	return writeCSV(path, names)
}

func writeCSV(path string, names []string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "manifest: create %s", path)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{Header}); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "manifest: write header")
	}
	for _, n := range names {
		if err := w.Write([]string{n}); err != nil {
			_ = f.Close()
			return eris.Wrapf(err, "manifest: write %s", n)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "manifest: flush")
	}
	return eris.Wrap(f.Close(), "manifest: close")
}

func writeXLSX(path string, names []string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "manifest: add sheet")
	}
	sheet.AddRow().AddCell().SetString(Header)
	for _, n := range names {
		sheet.AddRow().AddCell().SetString(n)
	}
	return eris.Wrapf(f.Save(path), "manifest: save %s", path)
}

// Package source reads company name lists from text, CSV, XLSX files and
// Notion databases.
package source

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/logo-cli/internal/model"
	"github.com/sells-group/logo-cli/pkg/notion"
)

// CompanyColumn is the header that marks the name column in tabular files.
const CompanyColumn = "Company"

// Read loads company names from path, choosing the format by extension:
// .csv, .xlsx, anything else is one name per line.
func Read(path string) ([]model.Company, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := ReadXLSX(path)
		if err != nil {
			return nil, err
		}
		return fromRows(rows), nil
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "source: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "source: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadText(f)
	}
}

// ReadText reads one company name per line. Blank lines are dropped.
func ReadText(r io.Reader) ([]model.Company, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		names = append(names, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "source: read lines")
	}
	return model.CompaniesFromNames(names), nil
}

// FromNotion reads company names from a Notion database.
func FromNotion(ctx context.Context, c notion.Client, dbID, nameProperty, status string) ([]model.Company, error) {
	names, err := notion.CompanyNames(ctx, c, dbID, nameProperty, status)
	if err != nil {
		return nil, eris.Wrap(err, "source: notion")
	}
	return model.CompaniesFromNames(names), nil
}

// fromRows picks the Company column when the first row names one
// (case-insensitive), otherwise every row's first cell is a name.
func fromRows(rows [][]string) []model.Company {
	if len(rows) == 0 {
		return nil
	}

	col, start := 0, 0
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(h), CompanyColumn) {
			col, start = i, 1
			break
		}
	}

	names := make([]string, 0, len(rows)-start)
	for _, row := range rows[start:] {
		if col < len(row) {
			names = append(names, row[col])
		}
	}
	return model.CompaniesFromNames(names)
}

package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// DefaultNameProperty is the title column holding company names.
const DefaultNameProperty = "Name"

// QueryAll fetches all pages from a Notion database, handling pagination.
// Rate limiting is enforced by the Client (3 req/s by default).
// The next page is requested in a goroutine while the current one is
// being appended.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "notion: query all")
	}

	var all []notionapi.Page

	newReq := func(cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if filter != nil {
			req.Filter = filter.Filter
			req.Sorts = filter.Sorts
			req.PageSize = filter.PageSize
		}
		return req
	}

	type prefetchResult struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}
	var prefetchCh <-chan prefetchResult

	for {
		var resp *notionapi.DatabaseQueryResponse
		var err error

		if prefetchCh != nil {
			result := <-prefetchCh
			resp, err = result.resp, result.err
		} else {
			resp, err = c.QueryDatabase(ctx, dbID, newReq(""))
		}

		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}

		nextReq := newReq(resp.NextCursor)
		ch := make(chan prefetchResult, 1)
		prefetchCh = ch
		go func() {
			r, e := c.QueryDatabase(ctx, dbID, nextReq)
			ch <- prefetchResult{resp: r, err: e}
		}()
	}

	return all, nil
}

// CompanyNames reads company names from a database. nameProperty names
// the title or rich-text column; empty means DefaultNameProperty. When
// status is set, only pages whose Status equals it are read. Pages with
// an empty name are skipped.
func CompanyNames(ctx context.Context, c Client, dbID, nameProperty, status string) ([]string, error) {
	if nameProperty == "" {
		nameProperty = DefaultNameProperty
	}

	var filter *notionapi.DatabaseQueryRequest
	if status != "" {
		filter = &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: "Status",
				Status: &notionapi.StatusFilterCondition{
					Equals: status,
				},
			},
		}
	}

	pages, err := QueryAll(ctx, c, dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "notion: query companies")
	}

	names := make([]string, 0, len(pages))
	for _, p := range pages {
		if n := PlainText(p, nameProperty); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

// PlainText returns the trimmed text of a title or rich-text property.
func PlainText(page notionapi.Page, property string) string {
	prop, ok := page.Properties[property]
	if !ok {
		return ""
	}

	var rich []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		rich = p.Title
	case *notionapi.RichTextProperty:
		rich = p.RichText
	default:
		return ""
	}

	var b strings.Builder
	for _, rt := range rich {
		b.WriteString(rt.PlainText)
	}
	return strings.TrimSpace(b.String())
}

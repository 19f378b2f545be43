package resttransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
)

// PageStyle selects which query-parameter convention a collection endpoint
// expects.
type PageStyle int

const (
	PageStylePlain  PageStyle = iota // page, pageSize
	PageStyleDollar                  // $page, $pageSize
)

// PaginateOptions configures a single Paginate call.
type PaginateOptions struct {
	Kind      ratelimit.Kind
	Path      string
	Query     url.Values // extra, static query params merged in on every page
	Style     PageStyle
	PageSize  int    // 0 uses defaultPageSize
	ItemsPath string // gjson path to the page's item array; "" means "items"
}

// Paginate walks a REST collection endpoint page by page, invoking onPage
// for every page of raw JSON items. It stops on a short or empty page, or
// after the page ceiling (default 10,000) is reached.
func (t *Transport) Paginate(ctx context.Context, opts PaginateOptions, onPage func(items []json.RawMessage) error) error {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	ceiling := t.PageCeiling
	if ceiling <= 0 {
		ceiling = defaultPageCeiling
	}

	pageKey, sizeKey := "page", "pageSize"
	if opts.Style == PageStyleDollar {
		pageKey, sizeKey = "$page", "$pageSize"
	}

	for page := 1; page <= ceiling; page++ {
		q := url.Values{}
		for k, vs := range opts.Query {
			q[k] = vs
		}
		q.Set(pageKey, strconv.Itoa(page))
		q.Set(sizeKey, strconv.Itoa(pageSize))

		res, err := t.Do(ctx, opts.Kind, "GET", opts.Path, q, nil)
		if err != nil {
			return err
		}
		if !res.OK {
			return res.Err
		}

		// Collection envelopes vary across API families (top-level items,
		// nested entry arrays); gjson navigates them without a schema per
		// endpoint.
		itemsPath := opts.ItemsPath
		if itemsPath == "" {
			itemsPath = "items"
		}
		arr := gjson.GetBytes(res.Data, itemsPath)
		if !arr.Exists() && !gjson.ValidBytes(res.Data) {
			return fmt.Errorf("decode page %d: invalid JSON body", page)
		}
		var items []json.RawMessage
		for _, item := range arr.Array() {
			items = append(items, json.RawMessage(item.Raw))
		}

		if len(items) > 0 {
			if err := onPage(items); err != nil {
				return err
			}
		}

		if len(items) < pageSize {
			return nil
		}
	}
	return fmt.Errorf("pagination ceiling of %d pages reached for %s", ceiling, opts.Path)
}

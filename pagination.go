package volt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strconv"
)

// pageInfo is the pagination object list endpoints attach to their
// envelope. Either NextCursor or Page/TotalPages drive traversal; a response
// without it is a single page.
type pageInfo struct {
	Page       int    `json:"page"`
	PerPage    int    `json:"perPage"`
	TotalPages int    `json:"totalPages"`
	NextCursor string `json:"nextCursor"`
}

// paginate returns a lazy sequence over every item of a list endpoint.
// Items are yielded in server order. The sequence stops at the first error,
// which is yielded with a zero item. Ranging over it again restarts from the
// first page.
func paginate[T any](c *Client, ctx context.Context, path string, query url.Values, key string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		q := url.Values{}
		for k, v := range query {
			q[k] = append([]string(nil), v...)
		}
		q.Set("perPage", strconv.Itoa(c.pageSize))

		page := 1
		cursorMode := false
		for n := 0; n < c.maxPages; n++ {
			if q.Get("cursor") == "" {
				q.Set("page", strconv.Itoa(page))
			}

			items, info, err := fetchPage[T](c, ctx, path, q, key)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}

			switch {
			case info == nil:
				return
			case info.NextCursor != "":
				cursorMode = true
				q.Del("page")
				q.Set("cursor", info.NextCursor)
			case cursorMode:
				// An empty cursor ends a cursor traversal even when the
				// server also reports page numbers.
				return
			case info.TotalPages > page:
				page++
			default:
				return
			}
		}
		yield(zero, decodeError(fmt.Sprintf("%s: pagination did not end after %d pages", path, c.maxPages), nil))
	}
}

func fetchPage[T any](c *Client, ctx context.Context, path string, query url.Values, key string) ([]T, *pageInfo, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "GET", path, query, nil, &raw); err != nil {
		return nil, nil, err
	}

	// Some endpoints return a bare array.
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, nil, decodeError(fmt.Sprintf("cannot decode %s items", path), err)
		}
		return items, nil, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, nil, decodeError(fmt.Sprintf("cannot decode %s envelope", path), err)
	}
	itemsRaw, ok := envelope[key]
	if !ok {
		return nil, nil, decodeError(fmt.Sprintf("%s response has no %q field", path, key), nil)
	}
	var items []T
	if err := json.Unmarshal(itemsRaw, &items); err != nil {
		return nil, nil, decodeError(fmt.Sprintf("cannot decode %s items", path), err)
	}

	pagRaw, ok := envelope["pagination"]
	if !ok || bytes.Equal(bytes.TrimSpace(pagRaw), []byte("null")) {
		return items, nil, nil
	}
	var info pageInfo
	if err := json.Unmarshal(pagRaw, &info); err != nil {
		return nil, nil, decodeError(fmt.Sprintf("cannot decode %s pagination", path), err)
	}
	return items, &info, nil
}

// collect materialises a sequence.
func collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := make([]T, 0)
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

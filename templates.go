package volt

import (
	"context"
	"iter"
	"net/http"
	"net/url"
)

// ListTemplates returns the available templates. A non-empty category
// filters the list server-side.
func (c *Client) ListTemplates(ctx context.Context, category string) ([]Template, error) {
	return collect(c.IterTemplates(ctx, category))
}

// IterTemplates lazily iterates over the available templates.
func (c *Client) IterTemplates(ctx context.Context, category string) iter.Seq2[Template, error] {
	var q url.Values
	if category != "" {
		q = url.Values{"category": {category}}
	}
	return paginate[Template](c, ctx, "/volt/templates", q, "templates")
}

// GetTemplate fetches one template.
func (c *Client) GetTemplate(ctx context.Context, id string) (*Template, error) {
	if err := requireID("templateId", id); err != nil {
		return nil, err
	}
	var t Template
	if err := c.do(ctx, http.MethodGet, "/volt/templates/"+url.PathEscape(id), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

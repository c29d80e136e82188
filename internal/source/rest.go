package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// REST fetches records from a PostgREST-compatible API, such as the one a
// hosted backend-as-a-service exposes under /rest/v1
type REST struct {
	http    *http.Client
	baseURL *url.URL
	apiKey  string
}

type RESTOption func(*REST)

func WithHTTPClient(h *http.Client) RESTOption {
	return func(c *REST) { c.http = h }
}

// NewREST creates a REST source. baseURL points at the API root, e.g.
// https://<project>.supabase.co/rest/v1
func NewREST(baseURL, apiKey string, opts ...RESTOption) (*REST, error) {
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	if apiKey == "" {
		return nil, errors.New("apiKey required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse baseURL: %w", err)
	}
	c := &REST{
		http:    &http.Client{Timeout: 20 * time.Second},
		baseURL: u,
		apiKey:  apiKey,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// encodeQuery renders q using PostgREST query parameters
func encodeQuery(q Query) url.Values {
	v := url.Values{}

	sel := []string{"*"}
	for _, e := range q.Embed {
		sel = append(sel, e+"(*)")
	}
	v.Set("select", strings.Join(sel, ","))

	for _, f := range q.Filters {
		v.Add(f.Column, "eq."+f.Value)
	}

	if q.Order != nil {
		dir := "asc"
		if q.Order.Desc {
			dir = "desc"
		}
		v.Set("order", q.Order.Column+"."+dir)
	}

	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

func (c *REST) newReq(ctx context.Context, q Query) (*http.Request, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, q.Table)
	u.RawQuery = encodeQuery(q).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Fetch implements Source
func (c *REST) Fetch(ctx context.Context, q Query) ([]Record, error) {
	if _, err := validate(q); err != nil {
		return nil, err
	}

	req, err := c.newReq(ctx, q)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", q.Table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("GET %s: %s: %s", q.Table, resp.Status, string(body))
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", q.Table, err)
	}
	return records, nil
}

var _ Source = (*REST)(nil)

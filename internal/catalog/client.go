package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// MaxFilterIDs is the upstream limit on id clauses in one batch filter.
const MaxFilterIDs = 150

// MaxPageSize is the upstream limit on page_size.
const MaxPageSize = 200

// ErrNotFound signals an authoritative upstream deletion (404). It is a
// state transition for the caller, not a failure.
var ErrNotFound = errors.New("catalog: item not found")

// Client talks to the catalog API. Transient failures (timeouts, 429, 5xx)
// are retried with constant backoff; anything else surfaces immediately.
type Client struct {
	BaseURL    string
	HTTP       *http.Client
	MaxRetries uint64
	RetryWait  time.Duration
}

// NewClient returns a client with sane timeouts and retry defaults.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		MaxRetries: 3,
		RetryWait:  2 * time.Second,
	}
}

// Search returns one page of the catalog query endpoint.
// Page numbering starts at 0 so page maps directly onto the offset cursor.
func (c *Client) Search(ctx context.Context, query string, page, pageSize int) ([]Item, error) {
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var resp searchResponse
	if err := c.getJSON(ctx, "/items?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("searching page %d: %w", page, err)
	}
	return resp.Results, nil
}

// Item fetches full detail for one id. Returns ErrNotFound on 404.
func (c *Client) Item(ctx context.Context, id int64) (*Item, error) {
	var resp searchResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/items/%d", id), &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Results[0], nil
}

// Similar fetches up to limit items the catalog considers similar to id.
func (c *Client) Similar(ctx context.Context, id int64, limit int) ([]Item, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	var resp searchResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/items/%d/similar?", id)+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetching similar for %d: %w", id, err)
	}
	return resp.Results, nil
}

// Lookup fetches existence + fresh metadata for up to MaxFilterIDs ids in
// one request, via the id:(a OR b OR ...) filter. Ids missing from the
// response no longer exist upstream.
func (c *Client) Lookup(ctx context.Context, ids []int64) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxFilterIDs {
		return nil, fmt.Errorf("lookup batch of %d exceeds filter limit %d", len(ids), MaxFilterIDs)
	}

	clauses := make([]string, len(ids))
	for i, id := range ids {
		clauses[i] = strconv.FormatInt(id, 10)
	}
	q := url.Values{}
	q.Set("filter", "id:("+strings.Join(clauses, " OR ")+")")
	q.Set("page_size", strconv.Itoa(MaxFilterIDs))

	var resp searchResponse
	if err := c.getJSON(ctx, "/items?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("batch lookup of %d ids: %w", len(ids), err)
	}
	return resp.Results, nil
}

// getJSON performs a GET with retry on transient failures and decodes the
// response body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err // network errors retry
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("upstream status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.RetryWait), c.MaxRetries)
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

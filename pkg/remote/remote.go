// Package remote talks to the shared Firebase-style JSON store that the
// ordering site writes into. Every value lives under a path addressed
// as {base}/{path}.json; reading an absent path yields JSON null.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// Store is the remote collection surface consumed by the reconciliation
// loop and the archival migrator. Client implements it; tests swap in
// an in-memory fake.
type Store interface {
	FetchAll(ctx context.Context) (map[string]gjson.Result, error)
	Patch(ctx context.Context, id string, fields map[string]interface{}) error
	Put(ctx context.Context, path string, value interface{}) error
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

type Client struct {
	baseURL     string
	collection  string
	archiveRoot string
	authToken   string
	http        *retryablehttp.Client
}

type Option func(*Client)

// WithCollection overrides the live collection name (default "orders").
func WithCollection(name string) Option {
	return func(c *Client) { c.collection = name }
}

// WithArchiveRoot overrides the archive root path (default "archive").
func WithArchiveRoot(root string) Option {
	return func(c *Client) { c.archiveRoot = root }
}

// WithAuthToken appends a database secret or ID token to every request.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

// WithHTTPClient replaces the default retrying HTTP client.
func WithHTTPClient(hc *retryablehttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		collection:  "orders",
		archiveRoot: "archive",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		rc := retryablehttp.NewClient()
		rc.Logger = log.New(io.Discard, "", 0)
		rc.RetryMax = 3
		c.http = rc
	}
	return c
}

// Collection returns the live collection path, e.g. "orders".
func (c *Client) Collection() string { return c.collection }

// ArchiveRoot returns the archive root path, e.g. "archive".
func (c *Client) ArchiveRoot() string { return c.archiveRoot }

func (c *Client) url(path string) string {
	u := c.baseURL + "/" + strings.Trim(path, "/") + ".json"
	if c.authToken != "" {
		u += "?auth=" + c.authToken
	}
	return u
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (string, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("encoding %s body for %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return "", err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return string(bodyBytes), nil
}

// FetchAll returns the current snapshot of the live collection as a map
// from entry ID to raw record. An absent collection is an empty map.
func (c *Client) FetchAll(ctx context.Context) (map[string]gjson.Result, error) {
	body, err := c.do(ctx, http.MethodGet, c.collection, nil)
	if err != nil {
		return nil, err
	}

	records := make(map[string]gjson.Result)
	parsed := gjson.Parse(body)
	if !parsed.IsObject() {
		// "null" when the collection does not exist yet.
		return records, nil
	}
	parsed.ForEach(func(key, value gjson.Result) bool {
		records[key.String()] = value
		return true
	})
	return records, nil
}

// Patch merges fields into the live record with the given ID.
func (c *Client) Patch(ctx context.Context, id string, fields map[string]interface{}) error {
	_, err := c.do(ctx, http.MethodPatch, c.collection+"/"+id, fields)
	return err
}

// Put writes value at path, replacing whatever was there.
func (c *Client) Put(ctx context.Context, path string, value interface{}) error {
	_, err := c.do(ctx, http.MethodPut, path, value)
	return err
}

// Delete removes the value at path. Deleting an absent path is not an
// error; the store treats it as a write of null.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

// Exists reports whether a non-null value is stored at path.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	trimmed := strings.TrimSpace(body)
	return trimmed != "" && trimmed != "null", nil
}

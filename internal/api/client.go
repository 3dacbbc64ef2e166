package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon listening at bind (host:port or
// full URL). An empty token disables the Authorization header.
func NewClient(bind, token string) *Client {
	base := strings.TrimSpace(bind)
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon: %s (%d)", payload.Error, resp.StatusCode)
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}

// Upload stores a new document and enqueues it for processing.
func (c *Client) Upload(ctx context.Context, filename string, document io.Reader, tags []string) (Bundle, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("document", filename)
	if err != nil {
		return Bundle{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, document); err != nil {
		return Bundle{}, fmt.Errorf("read document: %w", err)
	}
	for _, tag := range tags {
		if err := form.WriteField("tag", tag); err != nil {
			return Bundle{}, fmt.Errorf("build upload form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return Bundle{}, fmt.Errorf("build upload form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/bundles", &buf)
	if err != nil {
		return Bundle{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var out BundleResponse
	if err := c.do(req, &out); err != nil {
		return Bundle{}, err
	}
	return out.Bundle, nil
}

// List returns every stored bundle.
func (c *Client) List(ctx context.Context) ([]Bundle, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/bundles", nil)
	if err != nil {
		return nil, err
	}
	var out BundleListResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Bundles, nil
}

// Get fetches one bundle with its fragment list.
func (c *Client) Get(ctx context.Context, id string) (Bundle, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/bundles/"+url.PathEscape(id), nil)
	if err != nil {
		return Bundle{}, err
	}
	var out BundleResponse
	if err := c.do(req, &out); err != nil {
		return Bundle{}, err
	}
	return out.Bundle, nil
}

// PatchManifest applies a partial manifest update and returns the new state.
func (c *Client) PatchManifest(ctx context.Context, id string, patch ManifestPatch) (Bundle, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return Bundle{}, fmt.Errorf("marshal patch: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPatch, "/api/bundles/"+url.PathEscape(id)+"/manifest", bytes.NewReader(body))
	if err != nil {
		return Bundle{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out BundleResponse
	if err := c.do(req, &out); err != nil {
		return Bundle{}, err
	}
	return out.Bundle, nil
}

// Fragment streams one fragment's content. The caller must close the reader.
func (c *Client) Fragment(ctx context.Context, id, name string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet,
		"/api/bundles/"+url.PathEscape(id)+"/fragments/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp.Body, nil
}

// Delete removes a bundle everywhere: storage, queues, and the catalog.
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/bundles/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Requeue revives a bundle's dead-lettered stage references.
func (c *Client) Requeue(ctx context.Context, id string) (int, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/bundles/"+url.PathEscape(id)+"/requeue", nil)
	if err != nil {
		return 0, err
	}
	var out RequeueResponse
	if err := c.do(req, &out); err != nil {
		return 0, err
	}
	return out.Revived, nil
}

// Search queries the catalog.
func (c *Client) Search(ctx context.Context, text string, tags []string, limit int) ([]Bundle, error) {
	values := url.Values{}
	if strings.TrimSpace(text) != "" {
		values.Set("q", text)
	}
	for _, tag := range tags {
		values.Add("tag", tag)
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/search"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out SearchResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Inbox lists unreviewed documents, oldest first.
func (c *Client) Inbox(ctx context.Context) ([]Bundle, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/inbox", nil)
	if err != nil {
		return nil, err
	}
	var out SearchResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/status", nil)
	if err != nil {
		return DaemonStatus{}, err
	}
	var out DaemonStatus
	if err := c.do(req, &out); err != nil {
		return DaemonStatus{}, err
	}
	return out, nil
}

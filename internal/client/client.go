// Package client talks to the fitlog HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"example.com/fitlog/internal/api"
	"example.com/fitlog/internal/domain"
)

// Client is a domain gateway backed by the REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New constructs a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListEntries fetches every entry.
func (c *Client) ListEntries(ctx context.Context) ([]domain.Entry, error) {
	var views []api.EntryView
	if err := c.do(ctx, http.MethodGet, "/api/entries", nil, &views); err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(views))
	for _, v := range views {
		entry, err := v.Entry()
		if err != nil {
			return nil, fmt.Errorf("%w: decode entry %s: %w", domain.ErrStorage, v.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CreateEntry posts a new entry and returns it as stored by the server.
func (c *Client) CreateEntry(ctx context.Context, input domain.NewEntry) (*domain.Entry, error) {
	req, err := newCreateRequest(input)
	if err != nil {
		return nil, err
	}

	var view api.EntryView
	if err := c.do(ctx, http.MethodPost, "/api/entries", req, &view); err != nil {
		return nil, err
	}
	entry, err := view.Entry()
	if err != nil {
		return nil, fmt.Errorf("%w: decode created entry: %w", domain.ErrStorage, err)
	}
	return &entry, nil
}

// Dashboard fetches the server-side aggregates. Empty month and tz select
// the current month in the server's zone.
func (c *Client) Dashboard(ctx context.Context, month, tz string) (*api.DashboardView, error) {
	var view api.DashboardView
	if err := c.do(ctx, http.MethodGet, "/api/dashboard"+query(month, tz), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Months fetches the month selector options.
func (c *Client) Months(ctx context.Context, tz string) ([]api.MonthOptionView, error) {
	var options []api.MonthOptionView
	if err := c.do(ctx, http.MethodGet, "/api/months"+query("", tz), nil, &options); err != nil {
		return nil, err
	}
	return options, nil
}

func newCreateRequest(input domain.NewEntry) (api.CreateEntryRequest, error) {
	var value interface{}
	switch v := input.Value.(type) {
	case domain.Activity:
		value = v.Text
	case domain.Weight:
		value = v.Amount
	default:
		return api.CreateEntryRequest{}, domain.ErrInvalidKind
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return api.CreateEntryRequest{}, fmt.Errorf("%w: %w", domain.ErrInvalidNumber, err)
	}
	return api.CreateEntryRequest{Type: string(input.Value.Kind()), Value: raw}, nil
}

func query(month, tz string) string {
	values := url.Values{}
	if month != "" {
		values.Set("month", month)
	}
	if tz != "" {
		values.Set("tz", tz)
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// apiError is the error body returned by the server.
type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", domain.ErrStorage, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		message := apiErr.Message
		if message == "" {
			message = resp.Status
		}
		if resp.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %s", domain.ErrValidation, message)
		}
		return fmt.Errorf("%w: %s %s: %s", domain.ErrStorage, method, path, message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrStorage, err)
	}
	return nil
}

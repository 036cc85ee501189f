// Package alldebrid implements the subset of the AllDebrid v4.1 API that
// linksweep needs: listing magnets and deleting one. Each configured instance
// owns its own client and credential; clients are never shared across
// instances.
package alldebrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.alldebrid.com/v4.1"

const requestTimeout = 30 * time.Second

// Magnet is one torrent known to the debrid account.
type Magnet struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Status   string `json:"status"`
}

// APIError is a failed API interaction. Transient errors (rate limits,
// server errors, network faults) are safe to retry; permanent ones
// (bad credential, unknown magnet) are not.
type APIError struct {
	Op        string
	Status    int
	Code      string
	Message   string
	Transient bool
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("alldebrid %s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("alldebrid %s: HTTP %d", e.Op, e.Status)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// permanentCodes are API error codes that no amount of retrying will fix.
var permanentCodes = map[string]struct{}{
	"AUTH_MISSING_APIKEY": {},
	"AUTH_BAD_APIKEY":     {},
	"AUTH_BLOCKED":        {},
	"AUTH_USER_BANNED":    {},
	"MAGNET_INVALID_ID":   {},
	"MAGNET_UNKNOWN":      {},
}

// Client talks to the AllDebrid API with one account's credential.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for one API key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common AllDebrid response wrapper.
type envelope struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) request(ctx context.Context, op, method, endpoint string, form url.Values) (json.RawMessage, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to envelope decoding
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &APIError{Op: op, Status: resp.StatusCode, Transient: true}
	default:
		return nil, &APIError{Op: op, Status: resp.StatusCode, Transient: false}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &APIError{Op: op, Message: "malformed response: " + err.Error(), Transient: true}
	}

	if env.Status != "success" {
		apiErr := &APIError{Op: op, Transient: true}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			if _, permanent := permanentCodes[env.Error.Code]; permanent {
				apiErr.Transient = false
			}
		} else {
			apiErr.Message = "unknown API error"
		}
		return nil, apiErr
	}

	return env.Data, nil
}

// Magnets returns every magnet on the account.
func (c *Client) Magnets(ctx context.Context) ([]Magnet, error) {
	data, err := c.request(ctx, "magnet/status", http.MethodGet, "/magnet/status", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Magnets []Magnet `json:"magnets"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &APIError{Op: "magnet/status", Message: "decoding magnets: " + err.Error(), Transient: true}
	}
	return payload.Magnets, nil
}

// DeleteMagnet removes one magnet from the account. Irreversible.
func (c *Client) DeleteMagnet(ctx context.Context, id int64) error {
	form := url.Values{}
	form.Set("id", fmt.Sprintf("%d", id))

	_, err := c.request(ctx, "magnet/delete", http.MethodPost, "/magnet/delete", form)
	return err
}

// FindMagnetID resolves a torrent directory name to a magnet ID, first by
// exact filename/name match, then by prefix. The prefix fallback covers
// movies whose on-disk directory omits the container extension the magnet
// filename carries.
func FindMagnetID(name string, magnets []Magnet) (int64, bool) {
	for _, m := range magnets {
		if m.Filename == name || m.Name == name {
			return m.ID, true
		}
	}
	for _, m := range magnets {
		if m.Filename != "" && strings.HasPrefix(m.Filename, name) {
			return m.ID, true
		}
	}
	return 0, false
}

// Package apiclient is the register agent's HTTP client for the POS API.
package apiclient

import (
	"bytes"
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

	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

const (
	defaultRequestTimeout       = 10 * time.Second
	errorBodyReadLimit    int64 = 64 * 1024

	headerIdempotencyKey = "Idempotency-Key"
	headerDeviceID       = "X-Device-ID"
)

var (
	errBaseURLRequired = errors.New("api base url is required")
	errTokenRequired   = errors.New("api token is required")
)

// Client calls the POS API with a terminal bearer token.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	deviceID       string
	requestTimeout time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithDeviceID tags every request with the terminal id.
func WithDeviceID(id string) Option {
	return func(c *Client) {
		c.deviceID = strings.TrimSpace(id)
	}
}

// WithRequestTimeout bounds each call. Display long-polls add their wait on top.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errTokenRequired
	}
	client := &Client{
		httpClient:     &http.Client{},
		baseURL:        baseURL,
		token:          token,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SubmitSale commits a sale. The idempotency key travels as a header too so
// the API can answer a retried submission without re-reading the body.
func (c *Client) SubmitSale(ctx context.Context, req types.SaleRequest) (*types.TransactionView, error) {
	var out types.TransactionView
	if err := c.do(ctx, http.MethodPost, "/api/v1/sales", nil, req, req.IdempotencyKey, 0, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitRefund commits a refund.
func (c *Client) SubmitRefund(ctx context.Context, req types.RefundRequest) (*types.TransactionView, error) {
	var out types.TransactionView
	if err := c.do(ctx, http.MethodPost, "/api/v1/refunds", nil, req, req.IdempotencyKey, 0, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ready calls the API readiness endpoint.
func (c *Client) Ready(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health/ready", nil, nil, "", 0, nil)
}

// OfflineCapability reads the tenant offline card gate.
func (c *Client) OfflineCapability(ctx context.Context) (types.OfflineCapabilityView, error) {
	var out types.OfflineCapabilityView
	err := c.do(ctx, http.MethodGet, "/api/v1/offline/capability", nil, nil, "", 0, &out)
	return out, err
}

// SearchProducts runs a catalog search.
func (c *Client) SearchProducts(ctx context.Context, query string, limit int) ([]types.ProductSummary, error) {
	params := url.Values{"q": []string{query}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out []types.ProductSummary
	if err := c.do(ctx, http.MethodGet, "/api/v1/products/search", params, nil, "", 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DisplayQuery addresses one display channel. Exactly one of StationID or
// LocationID is set.
type DisplayQuery struct {
	StationID  string
	LocationID string
	Since      int64
	Wait       time.Duration
}

func (q DisplayQuery) values() url.Values {
	params := url.Values{}
	if q.StationID != "" {
		params.Set("stationId", q.StationID)
	}
	if q.LocationID != "" {
		params.Set("locationId", q.LocationID)
	}
	if q.Since > 0 {
		params.Set("since", strconv.FormatInt(q.Since, 10))
	}
	if q.Wait > 0 {
		params.Set("waitMs", strconv.FormatInt(q.Wait.Milliseconds(), 10))
	}
	return params
}

// FetchDisplay reads a display channel, waiting up to q.Wait for a version
// newer than q.Since.
func (c *Client) FetchDisplay(ctx context.Context, q DisplayQuery) (types.DisplaySnapshot, error) {
	var out types.DisplaySnapshot
	err := c.do(ctx, http.MethodGet, "/api/v1/display-sync", q.values(), nil, "", q.Wait, &out)
	return out, err
}

// WriteDisplay overwrites a display channel.
func (c *Client) WriteDisplay(ctx context.Context, req types.DisplayWriteRequest) (types.DisplaySnapshot, error) {
	var out types.DisplaySnapshot
	err := c.do(ctx, http.MethodPost, "/api/v1/display-sync", nil, req, "", 0, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, idempotencyKey string, extra time.Duration, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "api client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout+extra)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(headerIdempotencyKey, idempotencyKey)
	}
	if c.deviceID != "" {
		req.Header.Set(headerDeviceID, c.deviceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s", method, path))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	var envelope types.Envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		// The server may have committed; a retry with the same key is safe.
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response data")
	}
	return nil
}

// decodeError turns an API error envelope back into a typed error.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return pkgerrors.New(pkgerrors.CodeForStatus(resp.StatusCode), msg)
	}
	typed := pkgerrors.New(pkgerrors.Code(envelope.Error.Code), envelope.Error.Message)
	if envelope.Error.Details != nil {
		typed = typed.WithDetails(envelope.Error.Details)
	}
	return typed
}

// DisplayChannel binds the client to one display address for the viewer.
type DisplayChannel struct {
	client     *Client
	stationID  string
	locationID string
	wait       time.Duration
}

func (c *Client) DisplayChannel(stationID, locationID string, wait time.Duration) *DisplayChannel {
	return &DisplayChannel{client: c, stationID: stationID, locationID: locationID, wait: wait}
}

func (d *DisplayChannel) Fetch(ctx context.Context, since int64) (types.DisplaySnapshot, error) {
	return d.client.FetchDisplay(ctx, DisplayQuery{
		StationID:  d.stationID,
		LocationID: d.locationID,
		Since:      since,
		Wait:       d.wait,
	})
}

func (d *DisplayChannel) Write(ctx context.Context, state types.DisplayState) error {
	_, err := d.client.WriteDisplay(ctx, types.DisplayWriteRequest{
		StationID:  d.stationID,
		LocationID: d.locationID,
		Cart:       state,
	})
	return err
}

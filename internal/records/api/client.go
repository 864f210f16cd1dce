// Package api is the HTTP client for the purchase REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"carbontracker/internal/auth"
	"carbontracker/internal/core"
	"carbontracker/internal/records"
)

const maxBodyBytes = 4 << 20

type Client struct {
	base *url.URL
	http *http.Client
	now  func() time.Time
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithClock overrides the clock used to date new purchases locally.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse records api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("records api url must be absolute: %q", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 15 * time.Second},
		now:  time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

var _ records.Store = (*Client)(nil)

// List returns the user's purchases. A body that is not a JSON array yields
// an empty list.
func (c *Client) List(ctx context.Context, s auth.Session) ([]core.Purchase, error) {
	q := url.Values{"UserId": {s.UserID}}
	body, err := c.do(ctx, s, "list", http.MethodGet, []string{"purchase"}, q, nil)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		slog.WarnContext(ctx, "Purchase list body is not an array", "user_id", s.UserID)
		return []core.Purchase{}, nil
	}
	out := make([]core.Purchase, 0, len(raw))
	for _, item := range raw {
		var p core.Purchase
		if err := json.Unmarshal(item, &p); err != nil {
			slog.WarnContext(ctx, "Skipping undecodable purchase", "user_id", s.UserID, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type createRequest struct {
	UserID           string            `json:"UserId"`
	ProductName      string            `json:"ProductName"`
	Weight           float64           `json:"Weight"`
	ShippingDistance float64           `json:"ShippingDistance"`
	DeliveryMode     core.DeliveryMode `json:"DeliveryMode"`
	Category         core.Category     `json:"Category"`
}

type createResponse struct {
	Message             string        `json:"message"`
	PurchaseID          string        `json:"PurchaseId"`
	CarbonEmissionValue core.Quantity `json:"CarbonEmissionValue"`
}

// Create logs a purchase. The API answers with the new id and the computed
// emission; the rest of the record is filled in from the input.
func (c *Client) Create(ctx context.Context, s auth.Session, in core.PurchaseInput) (core.Purchase, error) {
	if err := in.Validate(); err != nil {
		return core.Purchase{}, err
	}
	in = in.Normalized()
	payload, err := json.Marshal(createRequest{
		UserID:           s.UserID,
		ProductName:      in.ProductName,
		Weight:           in.Weight,
		ShippingDistance: in.ShippingDistance,
		DeliveryMode:     in.DeliveryMode,
		Category:         in.Category,
	})
	if err != nil {
		return core.Purchase{}, fmt.Errorf("encode purchase: %w", err)
	}

	body, err := c.do(ctx, s, "create", http.MethodPost, []string{"purchase"}, nil, payload)
	if err != nil {
		return core.Purchase{}, err
	}
	var resp createResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Purchase{}, fmt.Errorf("decode create response: %w", err)
	}

	emission := resp.CarbonEmissionValue
	if !emission.Valid() {
		emission = core.EstimateEmission(in.Weight, in.ShippingDistance)
	}
	p := core.Purchase{
		ID:                  resp.PurchaseID,
		UserID:              s.UserID,
		ProductName:         in.ProductName,
		PurchaseDate:        core.FormatPurchaseDate(c.now()),
		Weight:              core.NewQuantity(in.Weight),
		ShippingDistance:    core.NewQuantity(in.ShippingDistance),
		DeliveryMode:        in.DeliveryMode,
		Category:            in.Category,
		CarbonEmissionValue: emission,
	}
	slog.InfoContext(ctx, "Purchase logged", "purchase_id", p.ID, "user_id", s.UserID, "emission", emission.String())
	return p, nil
}

// Update replaces a purchase. If the API echoes the record it wins, otherwise
// the submitted record is returned.
func (c *Client) Update(ctx context.Context, s auth.Session, p core.Purchase) (core.Purchase, error) {
	if p.ID == "" {
		return core.Purchase{}, records.ErrNotFound
	}
	p.UserID = s.UserID
	payload, err := json.Marshal(p)
	if err != nil {
		return core.Purchase{}, fmt.Errorf("encode purchase: %w", err)
	}
	body, err := c.do(ctx, s, "update", http.MethodPut, []string{"purchase", url.PathEscape(p.ID)}, nil, payload)
	if err != nil {
		return core.Purchase{}, err
	}

	var echoed core.Purchase
	if err := json.Unmarshal(body, &echoed); err == nil && echoed.ID != "" {
		return echoed, nil
	}
	return p, nil
}

func (c *Client) Delete(ctx context.Context, s auth.Session, id string) error {
	if id == "" {
		return records.ErrNotFound
	}
	q := url.Values{"UserId": {s.UserID}}
	_, err := c.do(ctx, s, "delete", http.MethodDelete, []string{"purchase", url.PathEscape(id)}, q, nil)
	return err
}

// do sends one request to base/elem... where every elem is already escaped.
func (c *Client) do(ctx context.Context, s auth.Session, op, method string, elem []string, q url.Values, payload []byte) ([]byte, error) {
	if !s.Valid() {
		return nil, auth.ErrUnauthorized
	}

	u := c.base.JoinPath(elem...)
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "Purchase API unreachable", "operation", op, "error", err)
		return nil, &records.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	slog.DebugContext(ctx, "Purchase API call",
		"operation", op,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, auth.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, records.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &records.HTTPError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if readErr != nil {
		return nil, &records.TransportError{Op: op, Err: readErr}
	}
	return data, nil
}

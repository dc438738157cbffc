// Package remote is the HTTP client for the laundry order service, the source
// of truth for orders and tracking records.
//
// Every call is bounded by a client timeout (30s by default), paced by a
// token-bucket limiter, traced with OpenTelemetry (with W3C trace context
// propagated to the server), and classified into the error taxonomy in
// errors.go. The client never retries on its own; callers decide.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/status"
)

const (
	// DefaultTimeout bounds a single request end to end.
	DefaultTimeout = 30 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 4 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration // <= 0 means DefaultTimeout
	RPS       float64       // <= 0 disables pacing
	Burst     int
	UserAgent string

	// HTTPClient overrides the transport (tests). Its Timeout is replaced by Timeout.
	HTTPClient *http.Client
}

// Client talks to the remote order service. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	ua      string
	log     zerolog.Logger
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("remote: invalid base url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := &http.Client{}
	if cfg.HTTPClient != nil {
		cp := *cfg.HTTPClient
		hc = &cp
	}
	hc.Timeout = timeout

	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "laundry-sync"
	}

	return &Client{
		base:    base,
		http:    hc,
		limiter: lim,
		ua:      ua,
		log:     log.With().Str("component", "remote").Logger(),
	}, nil
}

// Timeout returns the effective per-request timeout.
func (c *Client) Timeout() time.Duration { return c.http.Timeout }

// ordersEnvelope is the paged listing shape; FetchByOwner also accepts it.
type ordersEnvelope struct {
	Orders     []domain.Order `json:"orders"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int64          `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// FetchByOwner returns every order submitted by owner.
func (c *Client) FetchByOwner(ctx context.Context, owner string) ([]domain.Order, error) {
	q := url.Values{"user_id": {owner}}
	var raw json.RawMessage
	if err := c.do(ctx, "FetchByOwner", http.MethodGet, "/orders", q, nil, &raw); err != nil {
		return nil, err
	}
	return decodeOrderList(raw)
}

// FetchAll returns one page of the staff queue.
func (c *Client) FetchAll(ctx context.Context, f domain.OrderFilter) (domain.OrderPage, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if !f.From.IsZero() {
		q.Set("from", f.From.UTC().Format(time.RFC3339))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.UTC().Format(time.RFC3339))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}

	var env ordersEnvelope
	if err := c.do(ctx, "FetchAll", http.MethodGet, "/orders/all", q, nil, &env); err != nil {
		return domain.OrderPage{}, err
	}
	page := domain.OrderPage{
		Orders:     env.Orders,
		Page:       env.Page,
		PageSize:   env.PageSize,
		Total:      env.Total,
		TotalPages: env.TotalPages,
	}
	if page.Orders == nil {
		page.Orders = []domain.Order{}
	}
	if page.Page == 0 {
		page.Page = max(f.Page, 1)
	}
	if page.Total == 0 {
		page.Total = int64(len(page.Orders))
	}
	if page.TotalPages == 0 && page.Total > 0 {
		page.TotalPages = 1
		if page.PageSize > 0 {
			page.TotalPages = int((page.Total + int64(page.PageSize) - 1) / int64(page.PageSize))
		}
	}
	return page, nil
}

// FetchByNumber looks an order up by its human-facing number.
func (c *Client) FetchByNumber(ctx context.Context, number string) (*domain.Order, error) {
	var o domain.Order
	if err := c.do(ctx, "FetchByNumber", http.MethodGet, "/orders/by-number/"+pathSegment(number), nil, nil, &o); err != nil {
		return nil, err
	}
	if o.ID == "" {
		return nil, fmt.Errorf("%w: order without id", ErrMalformed)
	}
	return &o, nil
}

// FetchTracking returns the tracking record of an order.
func (c *Client) FetchTracking(ctx context.Context, number string) (*domain.TrackingRecord, error) {
	var rec domain.TrackingRecord
	if err := c.do(ctx, "FetchTracking", http.MethodGet, "/tracking/"+pathSegment(number), nil, nil, &rec); err != nil {
		return nil, err
	}
	if rec.OrderNumber == "" {
		rec.OrderNumber = number
	}
	return &rec, nil
}

// UpdateStatus sets the status of an order and returns the updated order.
func (c *Client) UpdateStatus(ctx context.Context, orderID string, s status.Status) (*domain.Order, error) {
	body := map[string]string{"status": string(s)}
	var o domain.Order
	if err := c.do(ctx, "UpdateStatus", http.MethodPatch, "/orders/"+pathSegment(orderID)+"/status", nil, body, &o); err != nil {
		return nil, err
	}
	if o.ID == "" {
		o.ID = orderID
	}
	return &o, nil
}

// Create submits a new order.
func (c *Client) Create(ctx context.Context, req domain.NewOrder) (*domain.Order, error) {
	var o domain.Order
	if err := c.do(ctx, "Create", http.MethodPost, "/orders", nil, req, &o); err != nil {
		return nil, err
	}
	if o.ID == "" {
		return nil, fmt.Errorf("%w: created order without id", ErrMalformed)
	}
	return &o, nil
}

// ToggleNotify flips the notify-when-ready flag of an order.
func (c *Client) ToggleNotify(ctx context.Context, number string) (*domain.TrackingRecord, error) {
	var rec domain.TrackingRecord
	if err := c.do(ctx, "ToggleNotify", http.MethodPost, "/tracking/"+pathSegment(number)+"/notify", nil, nil, &rec); err != nil {
		return nil, err
	}
	if rec.OrderNumber == "" {
		rec.OrderNumber = number
	}
	return &rec, nil
}

// SubmitRating records a 1..5 rating and optional feedback for a delivered order.
func (c *Client) SubmitRating(ctx context.Context, orderID string, rating int, feedback string) (*domain.Order, error) {
	body := map[string]any{"rating": rating, "feedback": feedback}
	var o domain.Order
	if err := c.do(ctx, "SubmitRating", http.MethodPost, "/orders/"+pathSegment(orderID)+"/rating", nil, body, &o); err != nil {
		return nil, err
	}
	if o.ID == "" {
		o.ID = orderID
	}
	return &o, nil
}

// do performs one JSON request. out may be nil for empty responses.
// pathSegment escapes v as a single path element. Dot segments are
// percent-encoded so they cannot walk up the base path.
func pathSegment(v string) string {
	if v == "." || v == ".." {
		return strings.ReplaceAll(v, ".", "%2E")
	}
	return url.PathEscape(v)
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, in, out any) (err error) {
	tr := otel.Tracer("remote/Client")
	ctx, span := tr.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	// path arrives escaped; keep RawPath so %2F survives serialization.
	u := *c.base
	u.RawPath = c.base.EscapedPath() + path
	p, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return fmt.Errorf("remote: %s path: %w", op, err)
	}
	u.Path = p
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: encode %s: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("remote: build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.ua)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("op", op).Dur("latency", time.Since(start)).Msg("remote call failed")
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("latency", time.Since(start)).Msg("remote call")

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, errorMessage(data))
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return fmt.Errorf("%w: empty body", ErrMalformed)
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

// decodeOrderList accepts either a bare JSON array or an {"orders": [...]} envelope.
func decodeOrderList(raw json.RawMessage) ([]domain.Order, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []domain.Order{}, nil
	}
	if trimmed[0] == '[' {
		var list []domain.Order
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return list, nil
	}
	var env ordersEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if env.Orders == nil {
		return nil, fmt.Errorf("%w: missing orders field", ErrMalformed)
	}
	return env.Orders, nil
}

// errorMessage extracts a "message" (or "error") field from an error body.
func errorMessage(data []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

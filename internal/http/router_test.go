package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-laundry-sync/internal/config"
	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/http/handlers"
	"github.com/tbourn/go-laundry-sync/internal/http/middleware"
	"github.com/tbourn/go-laundry-sync/internal/notify"
	"github.com/tbourn/go-laundry-sync/internal/remote"
	"github.com/tbourn/go-laundry-sync/internal/repo"
	"github.com/tbourn/go-laundry-sync/internal/services"
	"github.com/tbourn/go-laundry-sync/internal/status"
)

// fakeOrderService stands in for the remote order API.
type fakeOrderService struct {
	creates atomic.Int32
}

func (f *fakeOrderService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/orders":
		_ = json.NewEncoder(w).Encode([]domain.Order{
			{ID: "o1", Number: "LB-1", OwnerID: r.URL.Query().Get("user_id"), Status: status.Washing,
				Items: []domain.LineItem{{Name: "Towel", Quantity: 2}}, TotalItems: 2, CreatedAt: now, UpdatedAt: now},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/orders":
		var req domain.NewOrder
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.creates.Add(1)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Order{
			ID: "o-new", Number: "LB-9", OwnerID: req.OwnerID, Status: status.Pending,
			Items: req.Items, TotalItems: req.TotalItems, CreatedAt: now, UpdatedAt: now,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not found"}`)
	}
}

type stack struct {
	r      *gin.Engine
	remote *fakeOrderService
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   50,
		OTEL:        config.OTELConfig{ServiceName: "laundry-sync-test"},
	}
}

// newStack wires the real engine over a temp SQLite cache and a fake remote.
func newStack(t *testing.T, cfg config.Config) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := &fakeOrderService{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := remote.New(remote.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}

	db, err := repo.Open("sqlite", filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("repo.Open: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := repo.NewOrderStore(db)
	cache := services.NewOrderCacheRepository(client, store)
	orders := services.NewOrderService(client, cache, store)
	orders.Submissions = repo.NewSubmissionStore(db)
	outbox := notify.NewOutbox(8)
	poller := services.NewStatusPoller(client, outbox)
	poller.Local = store
	session := services.NewSessionMonitor(time.Minute, time.Minute)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = poller.Close(ctx)
		_ = cache.Close(ctx)
		session.Close()
	})

	r := gin.New()
	RegisterRoutes(r, handlers.Deps{
		Cache:   cache,
		Stats:   store,
		Orders:  orders,
		Bulk:    services.NewBulkStatusCoordinator(client),
		Poller:  poller,
		Session: session,
		Inbox:   outbox,
	}, SubmissionLookup(db), cfg)
	return &stack{r: r, remote: fake}
}

func (s *stack) do(method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsFallbacks(t *testing.T) {
	s := newStack(t, baseConfig())

	if w := s.do(http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/metrics", ""); w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics code=%d len=%d", w.Code, w.Body.Len())
	}

	w := s.do(http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope = %d", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["code"] != handlers.ErrCodeNotFound {
		t.Fatalf("404 envelope: %v", body)
	}
	if w := s.do(http.MethodPost, "/health", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d", w.Code)
	}
}

func TestRegisterRoutes_RefreshThenListFromCache(t *testing.T) {
	s := newStack(t, baseConfig())

	w := s.do(http.MethodPost, "/api/v1/owners/u1/orders/refresh", "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d body=%s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodGet, "/api/v1/owners/u1/orders", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var list handlers.ListOrdersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("json: %v", err)
	}
	if list.Count != 1 {
		t.Fatalf("count = %d; want 1", list.Count)
	}
	if etag := w.Header().Get("ETag"); etag == "" {
		t.Fatalf("expected ETag on cached list")
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing request id or security headers: %v", w.Header())
	}
}

func TestRegisterRoutes_KeyedSubmissionReplays(t *testing.T) {
	s := newStack(t, baseConfig())
	body := `{"items":[{"name":"Shirt","quantity":3}]}`

	w := s.do(http.MethodPost, "/api/v1/owners/u1/orders", body, middleware.HeaderIdempotencyKey, "k-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("first submit = %d body=%s", w.Code, w.Body.String())
	}
	w = s.do(http.MethodPost, "/api/v1/owners/u1/orders", body, middleware.HeaderIdempotencyKey, "k-1")
	if w.Code != http.StatusOK || w.Header().Get(middleware.HeaderReplayed) != "true" {
		t.Fatalf("replay = %d replayed=%q", w.Code, w.Header().Get(middleware.HeaderReplayed))
	}
	if n := s.remote.creates.Load(); n != 1 {
		t.Fatalf("remote creates = %d; want 1", n)
	}

	// Same key, other owner: a new order.
	if w := s.do(http.MethodPost, "/api/v1/owners/u2/orders", body, middleware.HeaderIdempotencyKey, "k-1"); w.Code != http.StatusCreated {
		t.Fatalf("other owner = %d", w.Code)
	}
}

func TestRegisterRoutes_RateLimited(t *testing.T) {
	cfg := baseConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	s := newStack(t, cfg)

	if w := s.do(http.MethodGet, "/api/v1/polling", ""); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	w := s.do(http.MethodGet, "/api/v1/polling", "")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("second = %d retry-after=%q", w.Code, w.Header().Get("Retry-After"))
	}
}

func TestRegisterRoutes_CORS(t *testing.T) {
	s := newStack(t, baseConfig())
	w := s.do(http.MethodGet, "/health", "", "Origin", "http://kiosk.local")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-all ACAO = %q", got)
	}

	cfg := baseConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://front.example"}}
	s = newStack(t, cfg)
	w = s.do(http.MethodGet, "/health", "", "Origin", "http://front.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://front.example" {
		t.Fatalf("allowlist ACAO = %q", got)
	}
	w = s.do(http.MethodGet, "/health", "", "Origin", "http://evil.example")
	if w.Code != http.StatusForbidden {
		t.Fatalf("disallowed origin = %d; want 403", w.Code)
	}
}

func TestRegisterRoutes_Gzip(t *testing.T) {
	s := newStack(t, baseConfig())
	w := s.do(http.MethodGet, "/api/v1/session", "", "Accept-Encoding", "gzip")
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("code=%d encoding=%q", w.Code, w.Header().Get("Content-Encoding"))
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	s := newStack(t, baseConfig())
	if w := s.do(http.MethodGet, "/swagger/doc.json", ""); w.Code != http.StatusNotFound {
		t.Fatalf("swagger disabled = %d", w.Code)
	}

	cfg := baseConfig()
	cfg.SwaggerEnabled = true
	s = newStack(t, cfg)
	w := s.do(http.MethodGet, "/swagger/doc.json", "")
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("/owners/{owner}/orders")) {
		t.Fatalf("doc.json code=%d body=%.120s", w.Code, w.Body.String())
	}
}

func TestSubmissionLookup(t *testing.T) {
	db, err := repo.Open("sqlite", filepath.Join(t.TempDir(), "lookup.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	lookup := SubmissionLookup(db)
	if hit, err := lookup(ctx, "u1", "k", now); hit || err != nil {
		t.Fatalf("miss: hit=%v err=%v", hit, err)
	}
	if _, err := repo.CreateSubmission(ctx, db, "u1", "k", domain.Order{ID: "o1", Number: "LB-1"}, 201, time.Hour, now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if hit, err := lookup(ctx, "u1", "k", now); !hit || err != nil {
		t.Fatalf("hit: hit=%v err=%v", hit, err)
	}
	if hit, _ := lookup(ctx, "u1", "k", now.Add(2*time.Hour)); hit {
		t.Fatalf("expired key must miss")
	}

	sqlDB, _ := db.DB()
	_ = sqlDB.Close()
	if _, err := lookup(ctx, "u1", "k", now); err == nil {
		t.Fatalf("expected error on closed db")
	}
}

func Test_limitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}

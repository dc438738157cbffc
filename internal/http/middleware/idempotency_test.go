package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestHelpers_GetIdempotencyKey_IsReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false by default")
	}

	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key must read as absent")
	}
	c.Set(ctxKeyIdemReplay, true)
	if !IsReplay(c) {
		t.Fatalf("expected IsReplay=true")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false for non-bool")
	}
}

func TestIdempotencyValidator_SkipsSafeMethodsAndMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	calls := 0
	lookup := func(context.Context, string, string, time.Time) (bool, error) {
		calls++
		return false, nil
	}
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.GET("/owners/:owner/orders", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("GET must not stash a key")
		}
		c.Status(http.StatusNoContent)
	})
	r.POST("/owners/:owner/orders", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodGet, "/owners/u1/orders", nil)
	req.Header.Set(HeaderIdempotencyKey, "not valid!")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("GET with odd header: expected 204, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/owners/u1/orders", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("POST without header: expected 201, got %d", w.Code)
	}
	if calls != 0 {
		t.Fatalf("lookup called %d times", calls)
	}
}

func TestIdempotencyValidator_RejectsInvalidKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name string
		opts IdempotencyOptions
		key  string
	}{
		{"too long", IdempotencyOptions{MaxLen: 5}, "abcdef"},
		{"custom pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123"},
		{"default pattern", IdempotencyOptions{}, "has space"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(IdempotencyValidator(tc.opts, nil))
			r.POST("/x", func(c *gin.Context) { t.Fatalf("handler must not run") })

			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			req.Header.Set(HeaderIdempotencyKey, tc.key)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["code"] != "bad_idempotency_key" {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestIdempotencyValidator_StashesTrimmedKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, nil))
	r.POST("/z", func(c *gin.Context) {
		key, ok := GetIdempotencyKey(c)
		if !ok || key != "abc-123" {
			t.Fatalf("expected stashed key abc-123, got %q ok=%v", key, ok)
		}
		if IsReplay(c) || IsRateBypass(c) {
			t.Fatalf("no lookup means no replay")
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/z", nil)
	req.Header.Set(HeaderIdempotencyKey, "  abc-123 ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestIdempotencyValidator_LookupByOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)

	known := map[string]bool{"student-42|k-9": true}
	var seen []string
	lookup := func(_ context.Context, owner, key string, now time.Time) (bool, error) {
		if now.IsZero() {
			t.Fatalf("lookup time not populated")
		}
		seen = append(seen, owner+"|"+key)
		if owner == "broken" {
			return false, errors.New("db down")
		}
		return known[owner+"|"+key], nil
	}

	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/owners/:owner/orders", func(c *gin.Context) {
		if IsReplay(c) != IsRateBypass(c) {
			t.Fatalf("replay and bypass must agree")
		}
		if IsReplay(c) {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusCreated)
	})
	r.POST("/queue/status", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	post := func(path, key string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := post("/owners/student-42/orders", "k-9"); got != http.StatusOK {
		t.Fatalf("hit: expected 200, got %d", got)
	}
	if got := post("/owners/student-7/orders", "k-9"); got != http.StatusCreated {
		t.Fatalf("same key, other owner: expected 201, got %d", got)
	}
	if got := post("/owners/broken/orders", "k-1"); got != http.StatusCreated {
		t.Fatalf("lookup error must not block: got %d", got)
	}
	if got := post("/queue/status", "k-9"); got != http.StatusAccepted {
		t.Fatalf("ownerless route: got %d", got)
	}
	if len(seen) != 3 {
		t.Fatalf("lookups = %v", seen)
	}
}

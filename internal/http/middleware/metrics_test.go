package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndFallsBackToRawPath(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/owners/:owner/orders", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	r.DELETE("/tracking/:number/poll", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	route := "/owners/:owner/orders"
	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", route, "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))
	base204 := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/tracking/:number/poll", "204"))

	for _, p := range []string{"/owners/a/orders", "/owners/b/orders"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/tracking/LB-1/poll", nil))

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", route, "200")) - baseOK; got != 2 {
		t.Fatalf("owner route delta = %v; want 2 (one series for all owners)", got)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404")) - base404; got != 1 {
		t.Fatalf("404 fallback delta = %v", got)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/tracking/:number/poll", "204")) - base204; got != 1 {
		t.Fatalf("204 delta = %v", got)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}

func TestMetrics_CountsReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyIdemReplay, true)
		}
		c.Next()
	})
	r.POST("/owners/:owner/orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpReplays)
	req := httptest.NewRequest(http.MethodPost, "/owners/u1/orders", nil)
	req.Header.Set("X-Replay", "1")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/owners/u1/orders", nil))

	if d := testutil.ToFloat64(httpReplays) - before; d != 1 {
		t.Fatalf("replay delta = %v; want 1", d)
	}
}

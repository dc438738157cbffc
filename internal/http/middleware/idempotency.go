// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header of order submissions. A
// valid key is stashed in the context for the handler; when a SubmissionLookup
// finds a live submission for (owner, key) the request is flagged as a replay
// and skips rate limiting, since serving it creates nothing new.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's
// submission key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderReplayed is set on responses that returned a previously created order.
const HeaderReplayed = "Idempotency-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a live submission already exists for the
// request's owner and key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures key validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts the allowed characters. Nil uses ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// SubmissionLookup reports whether owner already has an unexpired submission
// recorded under key. Expiry is the lookup's concern. Errors are ignored by
// the middleware; the handler path performs its own lookup.
type SubmissionLookup func(ctx context.Context, owner, key string, now time.Time) (bool, error)

// IdempotencyValidator validates the Idempotency-Key header on unsafe
// methods. Safe methods and requests without the header pass through
// untouched. An invalid key aborts with 400 bad_idempotency_key.
//
// The owner is read from the :owner route parameter, so the middleware must
// run on the router (or group) that declares it for lookups to match.
func IdempotencyValidator(opts IdempotencyOptions, lookup SubmissionLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			if owner := ownerFromCtx(c); owner != "" {
				exists, err := lookup(c.Request.Context(), owner, key, time.Now().UTC())
				if err != nil {
					LoggerFrom(c).Debug().Err(err).Msg("submission lookup failed")
				}
				if exists {
					c.Set(ctxKeyIdemReplay, true)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}
		c.Next()
	}
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// ownerFromCtx returns the :owner route parameter, or "" on routes without one.
func ownerFromCtx(c *gin.Context) string {
	return strings.TrimSpace(c.Param("owner"))
}

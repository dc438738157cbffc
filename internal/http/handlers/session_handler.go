// Session HTTP handlers.
//
// The UI forwards its lifecycle events here so the inactivity monitor can
// force a logout. Every mutating endpoint answers with the resulting state.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-laundry-sync/internal/services"
)

// ScreenRequest names the screen an event happened on.
type ScreenRequest struct {
	Screen string `json:"screen,omitempty" example:"orders"`
}

// SessionResponse wraps the session state.
type SessionResponse struct {
	// Expired is true when this event forced a logout.
	Expired bool                  `json:"expired"`
	State   services.SessionState `json:"session"`
}

// bindScreen reads an optional ScreenRequest body.
func bindScreen(c *gin.Context) (string, bool) {
	var req ScreenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return "", false
		}
	}
	return req.Screen, true
}

func (h *Handlers) sessionState(c *gin.Context, expired bool) {
	ok(c, http.StatusOK, SessionResponse{Expired: expired, State: h.session.State()})
}

// GetSession godoc
// @ID       getSession
// @Summary  Current session state
// @Tags     Session
// @Produce  json
// @Success  200  {object}  handlers.SessionResponse
// @Router   /session [get]
func (h *Handlers) GetSession(c *gin.Context) { h.sessionState(c, false) }

// Login godoc
// @ID       sessionLogin
// @Summary  Start an authenticated session
// @Tags     Session
// @Produce  json
// @Success  200  {object}  handlers.SessionResponse
// @Router   /session/login [post]
func (h *Handlers) Login(c *gin.Context) {
	h.session.Login()
	h.sessionState(c, false)
}

// Logout godoc
// @ID       sessionLogout
// @Summary  End the session without an expiry notice
// @Tags     Session
// @Produce  json
// @Success  200  {object}  handlers.SessionResponse
// @Router   /session/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	h.session.Logout()
	h.sessionState(c, false)
}

// Activity godoc
// @ID       sessionActivity
// @Summary  Record user activity, optionally with a navigation
// @Tags     Session
// @Accept   json
// @Produce  json
// @Param    body  body  handlers.ScreenRequest  false  "Screen navigated to"
// @Success  200  {object}  handlers.SessionResponse
// @Router   /session/activity [post]
func (h *Handlers) Activity(c *gin.Context) {
	screen, good := bindScreen(c)
	if !good {
		return
	}
	if screen != "" {
		h.session.Navigate(screen)
	} else {
		h.session.RecordActivity()
	}
	h.sessionState(c, false)
}

// Foreground godoc
// @ID          sessionForeground
// @Summary     App returned to the foreground
// @Description Forces a logout when the inactivity timeout elapsed, unless the screen is
// @Description exempt (login, signup, password reset, legal pages).
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ScreenRequest  false  "Screen shown on resume"
// @Success     200  {object}  handlers.SessionResponse
// @Router      /session/foreground [post]
func (h *Handlers) Foreground(c *gin.Context) {
	screen, good := bindScreen(c)
	if !good {
		return
	}
	expired := h.session.OnForeground(screen)
	h.sessionState(c, expired)
}

// Background godoc
// @ID       sessionBackground
// @Summary  App moved to the background
// @Tags     Session
// @Produce  json
// @Success  200  {object}  handlers.SessionResponse
// @Router   /session/background [post]
func (h *Handlers) Background(c *gin.Context) {
	h.session.OnBackground()
	h.sessionState(c, false)
}

// Package services – SessionMonitor
//
// SessionMonitor enforces the inactivity timeout of an authenticated session.
// The host reports navigation, activity and foreground/background lifecycle
// events; the monitor forces a logout when the time since the last activity
// reaches the timeout, either on resume or from a periodic check that only
// runs while the app is in the foreground.
//
// Authentication-flow screens are exempt: resuming on one of them records
// activity instead of checking, even if the session would otherwise expire.
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Session timing defaults.
const (
	DefaultSessionTimeout = 15 * time.Minute
	DefaultCheckInterval  = time.Minute
)

// DefaultExemptScreens are the authentication-flow and legal screens.
var DefaultExemptScreens = []string{"login", "signup", "password-reset", "terms", "privacy"}

// SessionState is a point-in-time view of the session clock.
type SessionState struct {
	Authenticated bool      `json:"authenticated"`
	Foreground    bool      `json:"foreground"`
	Screen        string    `json:"screen,omitempty"`
	LastActivity  time.Time `json:"last_activity_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Exempt        bool      `json:"exempt"`
}

// SessionMonitor tracks user activity against the inactivity timeout.
// Construct it with NewSessionMonitor; configure exported fields before use.
type SessionMonitor struct {
	// Timeout is the inactivity window.
	Timeout time.Duration
	// CheckInterval is the period of the foreground check loop.
	CheckInterval time.Duration
	// Now is the clock.
	Now func() time.Time
	// OnExpire runs once per forced logout, outside the monitor lock.
	OnExpire func(at time.Time)
	// Log receives lifecycle events.
	Log zerolog.Logger

	exempt map[string]struct{}

	mu            sync.Mutex
	lastActivity  time.Time
	foreground    bool
	authenticated bool
	screen        string
	stopLoop      context.CancelFunc
	wg            sync.WaitGroup
	closed        bool
}

// NewSessionMonitor returns a monitor in the foreground, not authenticated.
// Non-positive durations fall back to the defaults. exempt replaces
// DefaultExemptScreens when non-empty.
func NewSessionMonitor(timeout, checkInterval time.Duration, exempt ...string) *SessionMonitor {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}
	if len(exempt) == 0 {
		exempt = DefaultExemptScreens
	}
	m := &SessionMonitor{
		Timeout:       timeout,
		CheckInterval: checkInterval,
		Now:           time.Now,
		Log:           log.With().Str("component", "session").Logger(),
		exempt:        make(map[string]struct{}, len(exempt)),
		foreground:    true,
	}
	for _, s := range exempt {
		m.exempt[normalizeScreen(s)] = struct{}{}
	}
	m.lastActivity = m.now()
	return m
}

func normalizeScreen(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// IsExempt reports whether screen skips the inactivity check.
func (m *SessionMonitor) IsExempt(screen string) bool {
	_, ok := m.exempt[normalizeScreen(screen)]
	return ok
}

// Login starts an authenticated session and resets the activity clock.
func (m *SessionMonitor) Login() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authenticated = true
	m.lastActivity = m.now()
	if m.foreground {
		m.startLoopLocked()
	}
	m.Log.Info().Msg("session started")
}

// Logout ends the session without raising the expiry event.
func (m *SessionMonitor) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authenticated = false
	m.stopLoopLocked()
	m.Log.Info().Msg("session ended")
}

// RecordActivity marks the current instant as the last user activity.
func (m *SessionMonitor) RecordActivity() {
	m.mu.Lock()
	m.lastActivity = m.now()
	m.mu.Unlock()
}

// Navigate records a move to screen as activity.
func (m *SessionMonitor) Navigate(screen string) {
	m.mu.Lock()
	m.screen = normalizeScreen(screen)
	m.lastActivity = m.now()
	m.mu.Unlock()
}

// OnForeground handles the app coming to the foreground on screen (empty
// keeps the last known screen). It reports whether a logout was forced.
func (m *SessionMonitor) OnForeground(screen string) bool {
	m.mu.Lock()
	m.foreground = true
	if s := normalizeScreen(screen); s != "" {
		m.screen = s
	}

	if m.IsExempt(m.screen) || !m.authenticated {
		m.lastActivity = m.now()
		if m.authenticated {
			m.startLoopLocked()
		}
		m.mu.Unlock()
		return false
	}

	now := m.now()
	if now.Sub(m.lastActivity) >= m.Timeout {
		fire := m.expireLocked(now, "resume")
		m.mu.Unlock()
		fire()
		return true
	}
	m.lastActivity = now
	m.startLoopLocked()
	m.mu.Unlock()
	return false
}

// OnBackground stops the check loop and snapshots the activity clock so the
// next OnForeground measures inactivity from this moment.
func (m *SessionMonitor) OnBackground() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.foreground = false
	m.lastActivity = m.now()
	m.stopLoopLocked()
}

// Check compares the elapsed inactivity with the timeout and forces a
// logout on expiry. It reports whether a logout was forced. Exempt screens,
// background state and unauthenticated sessions never expire here.
func (m *SessionMonitor) Check() bool {
	m.mu.Lock()
	if !m.authenticated || !m.foreground || m.IsExempt(m.screen) {
		m.mu.Unlock()
		return false
	}
	now := m.now()
	if now.Sub(m.lastActivity) < m.Timeout {
		m.mu.Unlock()
		return false
	}
	fire := m.expireLocked(now, "timer")
	m.mu.Unlock()
	fire()
	return true
}

// expireLocked clears the session and returns the expiry callback to run
// after the lock is released. The authenticated guard keeps it single-shot.
func (m *SessionMonitor) expireLocked(now time.Time, trigger string) func() {
	if !m.authenticated {
		return func() {}
	}
	m.authenticated = false
	m.stopLoopLocked()
	sessionExpirations.WithLabelValues(trigger).Inc()
	m.Log.Warn().Str("trigger", trigger).Time("last_activity", m.lastActivity).Msg("session expired after inactivity")

	cb := m.OnExpire
	return func() {
		if cb != nil {
			cb(now)
		}
	}
}

// State returns a snapshot of the session clock.
func (m *SessionMonitor) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SessionState{
		Authenticated: m.authenticated,
		Foreground:    m.foreground,
		Screen:        m.screen,
		LastActivity:  m.lastActivity,
		ExpiresAt:     m.lastActivity.Add(m.Timeout),
		Exempt:        m.IsExempt(m.screen),
	}
}

// Close stops the check loop and waits for it to return.
func (m *SessionMonitor) Close() {
	m.mu.Lock()
	m.closed = true
	m.stopLoopLocked()
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *SessionMonitor) startLoopLocked() {
	m.stopLoopLocked()
	if m.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopLoop = cancel
	m.wg.Add(1)
	go m.loop(ctx, m.CheckInterval)
}

func (m *SessionMonitor) stopLoopLocked() {
	if m.stopLoop != nil {
		m.stopLoop()
		m.stopLoop = nil
	}
}

func (m *SessionMonitor) loop(ctx context.Context, every time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil || m.safeCheck() {
			return
		}
	}
}

// safeCheck runs Check, turning a panic in the expiry handler into a log line.
func (m *SessionMonitor) safeCheck() (expired bool) {
	defer func() {
		if rec := recover(); rec != nil {
			m.Log.Error().Interface("panic", rec).Msg("session check panicked")
			expired = false
		}
	}()
	return m.Check()
}

func (m *SessionMonitor) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

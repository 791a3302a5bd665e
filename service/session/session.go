package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ResetFunc clears one component's per-user state on logout.
type ResetFunc func(ctx context.Context)

type resetter struct {
	name string
	fn   ResetFunc
}

// Session holds the signed-in user's bearer token and the components that
// must be reset when the user logs out.
type Session struct {
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	userID    string
	expiresAt time.Time
	resetters []resetter
}

// New creates a signed-out session.
func New(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Session{
		logger: logger.With("component", "session"),
		now:    time.Now,
	}
}

// SignIn stores token as the current credential. The token must be a JWT;
// its exp claim, when present, bounds how long Token reports it.
func (s *Session) SignIn(token string) error {
	claims, err := parseUnverified(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.userID = claims.Subject
	s.expiresAt = time.Time{}
	if claims.ExpiresAt != nil {
		s.expiresAt = claims.ExpiresAt.Time
	}

	s.logger.Info("signed in", "user_id", s.userID, "expires_at", s.expiresAt)
	return nil
}

// SignOut drops the credential without resetting any component.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.userID = ""
	s.expiresAt = time.Time{}
}

// Token returns the bearer credential. An expired token counts as absent.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", false
	}
	if !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt) {
		return "", false
	}
	return s.token, true
}

// UserID returns the subject of the current token, or "".
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Register adds a component to reset on logout. Resetters run in
// registration order.
func (s *Session) Register(name string, fn ResetFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetters = append(s.resetters, resetter{name: name, fn: fn})
}

// Logout signs out and resets every registered component.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	userID := s.userID
	s.token = ""
	s.userID = ""
	s.expiresAt = time.Time{}
	resetters := make([]resetter, len(s.resetters))
	copy(resetters, s.resetters)
	s.mu.Unlock()

	for _, r := range resetters {
		s.logger.DebugContext(ctx, "resetting component", "name", r.name)
		r.fn(ctx)
	}
	s.logger.InfoContext(ctx, "logged out", "user_id", userID, "components_reset", len(resetters))
}

// String implements fmt.Stringer without leaking the token.
func (s *Session) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("session(user=%q, expires=%s)", s.userID, s.expiresAt.Format(time.RFC3339))
}

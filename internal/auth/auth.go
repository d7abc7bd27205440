// Package auth resolves session tokens to actor identities. The service
// layer never sees tokens; callers verify first and pass the resulting
// identity in the request context.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pumpcore/internal/observability"
	"pumpcore/pkg/domain"
)

var (
	// ErrInvalidCredentials is returned when a sign-in attempt fails.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrSessionNotFound is returned for unknown or signed-out tokens.
	ErrSessionNotFound = errors.New("auth: session not found")
	// ErrSessionExpired is returned for tokens past their lifetime.
	ErrSessionExpired = errors.New("auth: session expired")
)

// Session is an authenticated principal's live token.
type Session struct {
	Token     string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenVerifier issues and resolves session tokens.
type TokenVerifier interface {
	// SignIn authenticates the credentials and issues a session.
	SignIn(ctx context.Context, email, password string) (Session, error)
	// Verify resolves a token to the identity it was issued for.
	Verify(ctx context.Context, token string) (domain.Identity, error)
	// SignOut invalidates a token. Unknown tokens are not an error.
	SignOut(ctx context.Context, token string) error
}

// DefaultSessionTTL is how long an issued session stays valid.
const DefaultSessionTTL = 12 * time.Hour

// MemoryVerifier keeps credentials and sessions in process memory. It backs
// single-node deployments and tests.
type MemoryVerifier struct {
	mu          sync.Mutex
	credentials map[string]string
	sessions    map[string]Session
	ttl         time.Duration
	clock       observability.Clock
}

var _ TokenVerifier = (*MemoryVerifier)(nil)

// MemoryVerifierOption customises verifier construction.
type MemoryVerifierOption func(*MemoryVerifier)

// WithSessionTTL overrides the session lifetime.
func WithSessionTTL(ttl time.Duration) MemoryVerifierOption {
	return func(v *MemoryVerifier) {
		if ttl > 0 {
			v.ttl = ttl
		}
	}
}

// WithClock substitutes the time source.
func WithClock(clock observability.Clock) MemoryVerifierOption {
	return func(v *MemoryVerifier) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// NewMemoryVerifier constructs a verifier over a static credential map of
// email to password.
func NewMemoryVerifier(credentials map[string]string, opts ...MemoryVerifierOption) *MemoryVerifier {
	v := &MemoryVerifier{
		credentials: make(map[string]string, len(credentials)),
		sessions:    make(map[string]Session),
		ttl:         DefaultSessionTTL,
		clock:       observability.SystemClock(),
	}
	for email, password := range credentials {
		v.credentials[normalizeEmail(email)] = password
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SignIn authenticates the credentials and issues a session token.
func (v *MemoryVerifier) SignIn(_ context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	stored, ok := v.credentials[email]
	if !ok || stored != password {
		return Session{}, ErrInvalidCredentials
	}

	now := v.clock.Now()
	session := Session{
		Token:     uuid.NewString(),
		Email:     email,
		IssuedAt:  now,
		ExpiresAt: now.Add(v.ttl),
	}
	v.sessions[session.Token] = session
	return session, nil
}

// Verify resolves a token to an identity, expiring stale sessions.
func (v *MemoryVerifier) Verify(_ context.Context, token string) (domain.Identity, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	session, ok := v.sessions[token]
	if !ok {
		return domain.Anonymous(), ErrSessionNotFound
	}
	if !v.clock.Now().Before(session.ExpiresAt) {
		delete(v.sessions, token)
		return domain.Anonymous(), ErrSessionExpired
	}
	return domain.Authenticated(session.Email), nil
}

// SignOut invalidates a token.
func (v *MemoryVerifier) SignOut(_ context.Context, token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.sessions, token)
	return nil
}

// Resolve turns an optional token into an identity. Empty or unresolvable
// tokens degrade to the anonymous identity rather than failing; mutations
// still proceed, attributed to the anonymous actor.
func Resolve(ctx context.Context, verifier TokenVerifier, token string) domain.Identity {
	if verifier == nil || token == "" {
		return domain.Anonymous()
	}
	identity, err := verifier.Verify(ctx, token)
	if err != nil {
		return domain.Anonymous()
	}
	return identity
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

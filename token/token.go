// Package token implements the Token Manager: a process-wide,
// mutex-guarded bearer credential cache for the downstream indexer API.
package token

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v4"
)

// DefaultRefreshInterval is the lifetime given to a freshly minted token.
const DefaultRefreshInterval = time.Hour

// DefaultSafetyMargin is how far ahead of expiry a cached token is treated
// as already expired.
const DefaultSafetyMargin = time.Minute

// Token is a minted bearer credential.
type Token struct {
	Raw       string
	ExpiresAt time.Time
}

// Manager mints and caches an HS512-signed bearer token, refreshing it on
// expiry under concurrent access. The mutex holds across the sign
// operation: minting is cheap and contention on it is negligible next to
// the HTTP I/O it gates.
type Manager struct {
	secret          []byte
	refreshInterval time.Duration
	safetyMargin    time.Duration

	now func() time.Time

	mu      sync.Mutex
	cached  *Token
}

// Option configures a Manager.
type Option func(*Manager)

// WithRefreshInterval overrides DefaultRefreshInterval.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) { m.refreshInterval = d }
}

// WithSafetyMargin overrides DefaultSafetyMargin.
func WithSafetyMargin(d time.Duration) Option {
	return func(m *Manager) { m.safetyMargin = d }
}

// withClock overrides the time source; used by tests to deterministically
// straddle the expiry boundary.
func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager constructs a Manager that signs tokens with secret.
func NewManager(secret []byte, opts ...Option) *Manager {
	m := &Manager{
		secret:          secret,
		refreshInterval: DefaultRefreshInterval,
		safetyMargin:    DefaultSafetyMargin,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetToken returns a valid bearer token, minting a new one if none is
// cached or the cached one is within safetyMargin of expiry.
func (m *Manager) GetToken() (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.cached != nil && m.cached.ExpiresAt.Sub(now) > m.safetyMargin {
		return *m.cached, nil
	}

	expiresAt := now.Add(m.refreshInterval)
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, errors.Wrap(err, "token: sign token")
	}

	tok := Token{Raw: signed, ExpiresAt: expiresAt}
	m.cached = &tok
	return tok, nil
}

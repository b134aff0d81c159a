// Package auth guards the admin API with a shared password and a signed
// session cookie.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const adminSubject = "admin"

var (
	ErrBadPassword    = errors.New("auth: invalid password")
	ErrNoSession      = errors.New("auth: no session cookie")
	ErrInvalidSession = errors.New("auth: invalid session")
)

// Options configures a Sessions instance.
type Options struct {
	Password   string
	Secret     string
	TTL        time.Duration
	CookieName string
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

// Sessions issues and verifies admin session cookies. Sessions are stateless:
// the cookie carries an HS256 token that expires after TTL.
type Sessions struct {
	password []byte
	secret   []byte
	ttl      time.Duration
	cookie   string
	secure   bool
	now      func() time.Time
}

// NewSessions creates a Sessions instance.
func NewSessions(opts Options) *Sessions {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.CookieName == "" {
		opts.CookieName = "admin_session"
	}
	return &Sessions{
		password: []byte(opts.Password),
		secret:   []byte(opts.Secret),
		ttl:      opts.TTL,
		cookie:   opts.CookieName,
		secure:   opts.Secure,
		now:      time.Now,
	}
}

// CheckPassword compares password with the configured one in constant time.
func (s *Sessions) CheckPassword(password string) bool {
	return len(s.password) > 0 && subtle.ConstantTimeCompare([]byte(password), s.password) == 1
}

// Issue returns a signed session token.
func (s *Sessions) Issue() (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign session: %w", err)
	}
	return token, expires, nil
}

// Verify checks a session token's signature, expiry and subject.
func (s *Sessions) Verify(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithSubject(adminSubject), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return claims, nil
}

// Login checks password and, on success, sets the session cookie.
func (s *Sessions) Login(w http.ResponseWriter, password string) error {
	if !s.CheckPassword(password) {
		return ErrBadPassword
	}
	token, expires, err := s.Issue()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Logout expires the session cookie.
func (s *Sessions) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Authenticate verifies the session cookie on r.
func (s *Sessions) Authenticate(r *http.Request) (*jwt.RegisteredClaims, error) {
	c, err := r.Cookie(s.cookie)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}
	return s.Verify(c.Value)
}

// Middleware rejects requests without a valid admin session with 401.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.Authenticate(r)
		if err != nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("admin request rejected")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		l := zerolog.Ctx(r.Context()).With().Str("session_id", claims.ID).Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}

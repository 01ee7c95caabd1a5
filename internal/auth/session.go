package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Sessions issues and verifies practice-session tokens. A session is what a
// browser tab holds; results and rounds are keyed by its id.
type Sessions struct {
	hmac []byte
	ttl  time.Duration
	now  func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Sessions{hmac: []byte(secret), ttl: ttl, now: time.Now}
}

type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Session is the reply to a session request.
type Session struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Sessions) Issue() (Session, error) {
	now := s.now()
	sid := uuid.NewString()
	exp := now.Add(s.ttl)
	claims := &Claims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "detprep",
			Subject:   sid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.hmac)
	if err != nil {
		return Session{}, err
	}
	return Session{SessionID: sid, Token: tok, ExpiresAt: exp}, nil
}

var ErrBadToken = errors.New("bad session token")

func (s *Sessions) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrBadToken
	}
	c, _ := token.Claims.(*Claims)
	if c == nil || c.SessionID == "" {
		return nil, ErrBadToken
	}
	return c, nil
}

// SessionHandler handles POST /api/sessions.
func SessionHandler(s *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Issue()
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(sess)
	}
}

// RequireSession rejects requests without a valid bearer token and puts the
// session id in the request context.
func RequireSession(s *Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				writeAuthError(w, "missing bearer")
				return
			}
			c, err := s.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				writeAuthError(w, "bad token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), c.SessionID)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

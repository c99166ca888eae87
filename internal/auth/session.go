package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tnm3allim/marketplace/internal/domain/user"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrRevoked        = errors.New("session revoked")
)

// Claims are the session token claims. Subject holds the user id.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Identity is what the rest of the server knows about the caller.
type Identity struct {
	UserID    int64
	Name      string
	Role      user.Role
	SessionID string
	ExpiresAt time.Time
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a new HS256 session token for u.
func (m *Manager) Issue(u user.User) (string, Identity, error) {
	now := m.now().UTC()
	exp := now.Add(m.ttl)
	jti := uuid.NewString()

	claims := Claims{
		Name: u.Name,
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)

	if err != nil {
		return "", Identity{}, err
	}

	return token, Identity{UserID: u.ID, Name: u.Name, Role: u.Role, SessionID: jti, ExpiresAt: exp}, nil
}

// Parse validates signature, expiry and claim shape. It does not consult revocations.
func (m *Manager) Parse(token string) (Identity, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)

	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidSession
	}

	id, err := claims.UserID()

	if err != nil || claims.ID == "" || !user.Role(claims.Role).IsValid() {
		return Identity{}, ErrInvalidSession
	}

	return Identity{
		UserID:    id,
		Name:      claims.Name,
		Role:      user.Role(claims.Role),
		SessionID: claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// HashToken is a keyed digest for one-time tokens stored server side (password resets).
func (m *Manager) HashToken(raw string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(raw))

	return hex.EncodeToString(h.Sum(nil))
}

package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles form a closed set; a decoded token carrying anything else is
// rejected as structurally invalid.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the payload carried inside every signed token: a stable
// subject id, a role and the embedded expiry. Once signed it cannot be
// changed; changing role or subject means issuing a new token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// Codec signs and verifies HS256 tokens with a single secret and a fixed
// TTL. Access and refresh tokens each get their own Codec so that the two
// secrets stay independent.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

func NewCodec(secret []byte, ttl time.Duration) *Codec {
	return &Codec{secret: secret, ttl: ttl}
}

// Issue signs a token for subject with the given role, expiring ttl from
// now. It returns the expiry so callers can propagate it to storage and
// cookie attributes without re-parsing the token.
func (c *Codec) Issue(subject, role string) (string, time.Time, error) {
	if subject == "" || !ValidRole(role) {
		return "", time.Time{}, fmt.Errorf("%w: bad claim", ErrInvalidToken)
	}

	now := time.Now()
	exp := now.Add(c.ttl)
	// The uuid JTI makes every issued token unique even when two logins
	// land on the same second; refresh records are keyed by the full
	// token value.
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tkn.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies the signature and the embedded expiry. Expired tokens
// fail with ErrTokenExpired, everything else (wrong secret, malformed
// structure, unexpected algorithm, out-of-shape payload) with
// ErrInvalidToken. Parse never consults persisted state.
func (c *Codec) Parse(tokenStr string) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || !ValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: unexpected payload shape", ErrInvalidToken)
	}
	return &claims, nil
}

package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/perkhub/internal/clock"
	"github.com/smallbiznis/perkhub/internal/config"
	userdomain "github.com/smallbiznis/perkhub/internal/user/domain"
)

const defaultTokenTTL = 24 * time.Hour

var (
	ErrMissingSecret = errors.New("auth_secret_missing")
	ErrInvalidToken  = errors.New("invalid_token")
	ErrTokenExpired  = errors.New("token_expired")
)

// Claims is the bearer token body. Only HS256 tokens are accepted.
type Claims struct {
	UserID string          `json:"userId"`
	Role   userdomain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller extracted from a verified token.
type Principal struct {
	UserID snowflake.ID
	Role   userdomain.Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == userdomain.RoleAdmin
}

type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

func NewIssuer(cfg config.Config, clk clock.Clock) (*Issuer, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Issuer{
		secret: []byte(secret),
		issuer: cfg.AppName,
		ttl:    defaultTokenTTL,
		clock:  clk,
	}, nil
}

// Sign mints a token for the user. It is used by seeding tools and tests; login lives elsewhere.
func (i *Issuer) Sign(userID snowflake.ID, role userdomain.Role) (string, error) {
	now := i.clock.Now()
	claims := &Claims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks signature, algorithm and expiry and returns the caller.
func (i *Issuer) Verify(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, ErrInvalidToken
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(claims.UserID))
	if err != nil || userID == 0 {
		return Principal{}, ErrInvalidToken
	}
	role := userdomain.Role(strings.ToLower(strings.TrimSpace(string(claims.Role))))
	if role == "" {
		role = userdomain.RoleUser
	}
	return Principal{UserID: userID, Role: role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

package echoapi

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/atlportal/backend/core"
)

const (
	contextClaimsKey = "claims"
	bearerScheme     = "Bearer"
)

// Claims represents the identity asserted by the identity provider via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

func (c Claims) actor() core.Actor {
	return core.Actor{ID: c.Subject, Email: c.Email, IsAdmin: c.IsAdmin}
}

// NewClaims returns the Claims of actor, valid for ttl.
func NewClaims(actor core.Actor, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:   actor.Email,
		IsAdmin: actor.IsAdmin,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(secret string, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// jwtConfig returns the JWT auth middleware config: HS256 bearer tokens whose Claims are stored in the context.
func jwtConfig(secret string) middleware.JWTConfig {
	key := []byte(secret)
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.Errorf("unexpected signing method %s", token.Method.Alg())
		}
		return key, nil
	}

	return middleware.JWTConfig{
		ContextKey:  contextClaimsKey,
		TokenLookup: "header:" + echo.HeaderAuthorization,
		AuthScheme:  bearerScheme,
		ParseTokenFunc: func(auth string, _ echo.Context) (interface{}, error) {
			claims := new(Claims)
			token, err := jwt.ParseWithClaims(auth, claims, keyFunc)
			if err != nil {
				return nil, err
			}
			if !token.Valid {
				return nil, errors.New("invalid token")
			}
			return claims, nil
		},
		ErrorHandler: func(err error) error {
			if err == middleware.ErrJWTMissing {
				return errJWTMissing
			}
			return echo.NewHTTPError(http.StatusUnauthorized, msgJWTInvalid).SetInternal(err)
		},
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
}

package jwtmiddleware

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const TokenTTL = 7 * 24 * time.Hour

// RequireAuth validates a bearer token from the Authorization header and
// stores the parsed token under the "user" context key.
func RequireAuth(secret []byte) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    secret,
		SigningMethod: "HS256",
		ContextKey:    "user",
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized - Please log in")
		},
	})
}

// IssueToken signs a 7-day HS256 access token for the given user.
func IssueToken(secret []byte, userID uint, email string) (string, error) {
	claims := jwt.MapClaims{
		"sub":   float64(userID),
		"email": email,
		"exp":   time.Now().Add(TokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// UserID extracts the authenticated user id from the echo context. Handlers
// receive identity through this helper instead of any ambient state.
func UserID(c echo.Context) (uint, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized - Please log in")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid subject claim")
	}
	return uint(sub), nil
}

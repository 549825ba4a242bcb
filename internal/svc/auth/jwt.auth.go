package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

func (a *authorizer) SignJWT(secret string, claim jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claim)

	return token.SignedString([]byte(secret))
}

type JWTClaimUser struct {
	UserID string `json:"u"`
	Role   string `json:"role"`

	jwt.RegisteredClaims
}

func (a *authorizer) VerifyJWT(token string, out jwt.Claims) (*jwt.Token, error) {
	result, err := jwt.ParseWithClaims(
		token,
		out,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("bad jwt signing method, expected HMAC but got %v", t.Header["alg"])
			}

			return []byte(a.JWTSecret), nil
		},
	)

	return result, err
}

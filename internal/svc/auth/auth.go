package auth

import (
	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	"github.com/golang-jwt/jwt/v4"
)

// Authorizer validates credential tokens minted by the account service and
// maps them to a realtime identity. This service never issues tokens itself.
type Authorizer interface {
	SignJWT(secret string, claim jwt.Claims) (string, error)
	VerifyJWT(token string, out jwt.Claims) (*jwt.Token, error)
	Identify(token string) (model.Party, errors.APIError)
}

type authorizer struct {
	JWTSecret string
}

func New(opt AuthorizerOptions) Authorizer {
	return &authorizer{
		JWTSecret: opt.JWTSecret,
	}
}

type AuthorizerOptions struct {
	JWTSecret string
}

// Identify verifies the token and resolves its role claim into a party.
// Any failure collapses into a single opaque unauthorized error so the
// caller can't probe which part of the credential was wrong.
func (a *authorizer) Identify(token string) (model.Party, errors.APIError) {
	if token == "" {
		return model.Party{}, errors.ErrUnauthorized().SetDetail("no token provided")
	}

	claim := &JWTClaimUser{}

	t, err := a.VerifyJWT(token, claim)
	if err != nil || !t.Valid {
		return model.Party{}, errors.ErrUnauthorized().SetDetail("invalid token")
	}

	if claim.UserID == "" {
		return model.Party{}, errors.ErrUnauthorized().SetDetail("token has no subject")
	}

	kind, ok := MapRole(claim.Role)
	if !ok {
		return model.Party{}, errors.ErrUnauthorized().SetDetail("unrecognized role")
	}

	return model.Party{UserID: claim.UserID, UserKind: kind}, nil
}

// MapRole collapses the account service's role strings into the two identity
// kinds the realtime core distinguishes. Staff tiers all act as admins here.
func MapRole(role string) (model.UserKind, bool) {
	switch role {
	case "STUDENT":
		return model.UserKindStudent, true
	case "ADMIN", "SUPER_ADMIN", "STAFF":
		return model.UserKindAdmin, true
	}

	return "", false
}

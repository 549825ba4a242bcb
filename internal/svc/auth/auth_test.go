package auth

import (
	"testing"
	"time"

	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/testutil"
	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func mint(t *testing.T, a Authorizer, userID, role string, expiresIn time.Duration) string {
	token, err := a.SignJWT(testSecret, &JWTClaimUser{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: &jwt.NumericDate{Time: time.Now().Add(expiresIn)},
			IssuedAt:  &jwt.NumericDate{Time: time.Now()},
		},
	})
	testutil.IsNil(t, err, "token signs")

	return token
}

func TestIdentify(t *testing.T) {
	t.Parallel()

	a := New(AuthorizerOptions{JWTSecret: testSecret})

	token := mint(t, a, "stu1", "STUDENT", time.Hour)

	actor, apiErr := a.Identify(token)
	testutil.IsNil(t, apiErr, "valid token accepted")
	testutil.Assert(t, "stu1", actor.UserID, "user id")
	testutil.Assert(t, model.UserKindStudent, actor.UserKind, "user kind")
}

func TestIdentifyStaffTiers(t *testing.T) {
	t.Parallel()

	a := New(AuthorizerOptions{JWTSecret: testSecret})

	for _, role := range []string{"ADMIN", "SUPER_ADMIN", "STAFF"} {
		actor, apiErr := a.Identify(mint(t, a, "adm1", role, time.Hour))
		testutil.IsNil(t, apiErr, "staff tier accepted")
		testutil.Assert(t, model.UserKindAdmin, actor.UserKind, "staff tier maps to admin")
	}
}

func TestIdentifyRejections(t *testing.T) {
	t.Parallel()

	a := New(AuthorizerOptions{JWTSecret: testSecret})

	_, apiErr := a.Identify("")
	testutil.IsNotNil(t, apiErr, "empty token rejected")

	_, apiErr = a.Identify("not.a.token")
	testutil.IsNotNil(t, apiErr, "garbage rejected")

	_, apiErr = a.Identify(mint(t, a, "stu1", "STUDENT", -time.Hour))
	testutil.IsNotNil(t, apiErr, "expired token rejected")

	_, apiErr = a.Identify(mint(t, a, "stu1", "JANITOR", time.Hour))
	testutil.IsNotNil(t, apiErr, "unknown role rejected")

	_, apiErr = a.Identify(mint(t, a, "", "STUDENT", time.Hour))
	testutil.IsNotNil(t, apiErr, "missing subject rejected")

	// A token minted under another secret never verifies.
	other := New(AuthorizerOptions{JWTSecret: "another-secret"})
	foreign, err := other.SignJWT("another-secret", &JWTClaimUser{
		UserID: "stu1",
		Role:   "STUDENT",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: &jwt.NumericDate{Time: time.Now().Add(time.Hour)},
		},
	})
	testutil.IsNil(t, err, "foreign token signs")

	_, apiErr = a.Identify(foreign)
	testutil.IsNotNil(t, apiErr, "wrong secret rejected")
}

func TestMapRole(t *testing.T) {
	t.Parallel()

	kind, ok := MapRole("STUDENT")
	testutil.Assert(t, true, ok, "student maps")
	testutil.Assert(t, model.UserKindStudent, kind, "student kind")

	_, ok = MapRole("student")
	testutil.Assert(t, false, ok, "roles are case sensitive")

	_, ok = MapRole("")
	testutil.Assert(t, false, ok, "empty role rejected")
}

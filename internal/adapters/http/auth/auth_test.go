package auth_test

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/okian/quorum/internal/adapters/http/auth"
	"github.com/okian/quorum/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var secret = []byte("test-secret")

func TestHeaderAuthenticator(t *testing.T) {
	Convey("Given a header authenticator", t, func() {
		a := auth.NewHeaderAuthenticator()

		Convey("When the caller header is set", func() {
			r := httptest.NewRequest("GET", "/", nil)
			r.Header.Set(auth.CallerHeader, " client1 ")
			id, err := a.Authenticate(r)

			Convey("Then it is the caller", func() {
				So(err, ShouldBeNil)
				So(id, ShouldEqual, types.ProviderID("client1"))
			})
		})

		Convey("When the header is missing", func() {
			_, err := a.Authenticate(httptest.NewRequest("GET", "/", nil))
			So(errors.Is(err, auth.ErrMissingCredentials), ShouldBeTrue)
		})
	})
}

func TestJWTAuthenticator(t *testing.T) {
	Convey("Given a JWT authenticator requiring an issuer", t, func() {
		a := auth.NewJWTAuthenticator(secret, auth.WithIssuer("quorum"), auth.WithLeeway(time.Second))

		request := func(header string) error {
			r := httptest.NewRequest("POST", "/requests", nil)
			if header != "" {
				r.Header.Set("Authorization", header)
			}
			_, err := a.Authenticate(r)
			return err
		}

		Convey("When a valid token is presented", func() {
			token, err := auth.IssueToken(secret, "client1", "quorum", time.Minute)
			So(err, ShouldBeNil)

			r := httptest.NewRequest("POST", "/requests", nil)
			r.Header.Set("Authorization", "Bearer "+token)
			id, err := a.Authenticate(r)

			Convey("Then the subject is the caller", func() {
				So(err, ShouldBeNil)
				So(id, ShouldEqual, types.ProviderID("client1"))
			})
		})

		Convey("When no token is presented", func() {
			So(errors.Is(request(""), auth.ErrMissingCredentials), ShouldBeTrue)
		})

		Convey("When the scheme is not bearer", func() {
			So(errors.Is(request("Basic Zm9vOmJhcg=="), auth.ErrInvalidCredentials), ShouldBeTrue)
		})

		Convey("When the token is signed with another secret", func() {
			token, err := auth.IssueToken([]byte("other"), "client1", "quorum", time.Minute)
			So(err, ShouldBeNil)
			So(errors.Is(request("Bearer "+token), auth.ErrInvalidCredentials), ShouldBeTrue)
		})

		Convey("When the issuer does not match", func() {
			token, err := auth.IssueToken(secret, "client1", "someone-else", time.Minute)
			So(err, ShouldBeNil)
			So(errors.Is(request("Bearer "+token), auth.ErrInvalidCredentials), ShouldBeTrue)
		})

		Convey("When the token has expired", func() {
			claims := jwt.RegisteredClaims{
				Subject:   "client1",
				Issuer:    "quorum",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			}
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
			So(err, ShouldBeNil)
			So(errors.Is(request("Bearer "+token), auth.ErrInvalidCredentials), ShouldBeTrue)
		})

		Convey("When the token has no subject", func() {
			token, err := auth.IssueToken(secret, "", "quorum", time.Minute)
			So(err, ShouldBeNil)
			So(errors.Is(request("Bearer "+token), auth.ErrInvalidCredentials), ShouldBeTrue)
		})

		Convey("When the token uses another algorithm", func() {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
				Subject: "client1",
				Issuer:  "quorum",
			}).SignedString(secret)
			So(err, ShouldBeNil)
			So(errors.Is(request("Bearer "+token), auth.ErrInvalidCredentials), ShouldBeTrue)
		})
	})
}

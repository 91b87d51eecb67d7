package auth_test

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/glucolab/agp/auth"
	"github.com/glucolab/agp/errors"
)

const secret = "test-secret"

func signToken(subject string, method jwt.SigningMethod, key interface{}) string {
	token := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(key)
	Expect(err).ToNot(HaveOccurred())
	return signed
}

var _ = Describe("Middleware", func() {
	var e *echo.Echo
	var subject string

	newRequest := func(authorization string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authorization != "" {
			req.Header.Set(echo.HeaderAuthorization, authorization)
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		authenticator := auth.NewAuthenticator(&auth.Config{Secret: secret})
		handler := authenticator.Middleware(nil)(func(c echo.Context) error {
			if s, ok := c.Get(auth.SubjectContextKey).(string); ok {
				subject = s
			}
			return c.NoContent(http.StatusOK)
		})
		return handler(c)
	}

	BeforeEach(func() {
		e = echo.New()
		subject = ""
	})

	It("accepts a valid bearer token and exposes the subject", func() {
		token := signToken("user-1", jwt.SigningMethodHS256, []byte(secret))
		Expect(newRequest("Bearer " + token)).To(Succeed())
		Expect(subject).To(Equal("user-1"))
	})

	It("accepts a token without a subject claim", func() {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(secret))
		Expect(err).ToNot(HaveOccurred())

		Expect(newRequest("Bearer " + signed)).To(Succeed())
		Expect(subject).To(BeEmpty())
	})

	It("rejects a missing header", func() {
		Expect(newRequest("")).To(MatchError(errors.Unauthorized))
	})

	It("rejects a malformed header", func() {
		Expect(newRequest("Token abc")).To(MatchError(errors.Unauthorized))
	})

	It("rejects a token signed with the wrong secret", func() {
		token := signToken("user-1", jwt.SigningMethodHS256, []byte("other-secret"))
		Expect(newRequest("Bearer " + token)).To(MatchError(errors.Unauthorized))
	})

	It("rejects an expired token", func() {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(secret))
		Expect(err).ToNot(HaveOccurred())
		Expect(newRequest("Bearer " + signed)).To(MatchError(errors.Unauthorized))
	})

	It("passes requests through when disabled", func() {
		authenticator := auth.NewAuthenticator(&auth.Config{Disabled: true})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		handler := authenticator.Middleware(nil)(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		Expect(handler(c)).To(Succeed())
	})
})

package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testHandoffMiddleware(next http.Handler) http.Handler {
	codec := NewPathCodec("/proxy/")
	return WithHandoffMiddleware(codec, NewCookieRewriter(codec), next)
}

func TestHandoffMiddleware_ServicesIncomingHandoff(t *testing.T) {
	middleware := testHandoffMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Fail(t, "request should not be forwarded upstream")
	}))

	req := httptest.NewRequest(http.MethodGet, "/proxy/https://current.example/page?"+HandoffParam+"=https%3A%2F%2Fexample.com%2F", nil)
	req.Header.Set("Cookie", "one=1; two=2; three=3")
	w := httptest.NewRecorder()

	middleware.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/", w.Header().Get("Location"))
	assert.Equal(t, []string{
		"one=1; Path=/proxy/https://example.com/",
		"two=2; Path=/proxy/https://example.com/",
		"three=3; Path=/proxy/https://example.com/",
	}, w.Header()["Set-Cookie"])
}

func TestHandoffMiddleware_RedirectsWithoutCookiesWhenClientHasNone(t *testing.T) {
	middleware := testHandoffMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Fail(t, "request should not be forwarded upstream")
	}))

	req := httptest.NewRequest(http.MethodGet, "/proxy/https://current.example/?"+HandoffParam+"=https%3A%2F%2Fexample.com%2Flanding", nil)
	w := httptest.NewRecorder()

	middleware.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/landing", w.Header().Get("Location"))
	assert.Empty(t, w.Header()["Set-Cookie"])
}

func TestHandoffMiddleware_RejectsMalformedHandoffValues(t *testing.T) {
	values := []string{"%zz", "not-a-url", ""}

	for _, value := range values {
		t.Run(value, func(t *testing.T) {
			middleware := testHandoffMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Fail(t, "request should not be forwarded upstream")
			}))

			req := httptest.NewRequest(http.MethodGet, "/proxy/https://current.example/?"+HandoffParam+"="+value, nil)
			w := httptest.NewRecorder()

			middleware.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandoffMiddleware_PassesThroughWhenParamIsAbsent(t *testing.T) {
	forwarded := false
	middleware := testHandoffMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded = true
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/proxy/https://current.example/page?q=1", nil)
	w := httptest.NewRecorder()

	middleware.ServeHTTP(w, req)

	assert.True(t, forwarded)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRawQueryParam(t *testing.T) {
	value, present := rawQueryParam("a=1&"+HandoffParam+"=https%3A%2F%2Fx%2F&b=2", HandoffParam)
	assert.True(t, present)
	assert.Equal(t, "https%3A%2F%2Fx%2F", value)

	_, present = rawQueryParam("a=1&b=2", HandoffParam)
	assert.False(t, present)
}

package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/crumbway/crumbway/internal/metrics"
)

// HandoffMiddleware services the cookie handoff protocol. A request carrying
// the reserved query parameter is not forwarded upstream: it is answered
// with a redirect to the destination, with the client's cookies copied onto
// the destination's proxied path so they are in place before the browser
// follows the redirect.
type HandoffMiddleware struct {
	codec   *PathCodec
	cookies *CookieRewriter
	next    http.Handler
}

func WithHandoffMiddleware(codec *PathCodec, cookies *CookieRewriter, next http.Handler) http.Handler {
	return &HandoffMiddleware{
		codec:   codec,
		cookies: cookies,
		next:    next,
	}
}

func (h *HandoffMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	value, present := rawQueryParam(r.URL.RawQuery, HandoffParam)
	if !present {
		h.next.ServeHTTP(w, r)
		return
	}

	target, err := h.codec.DecodeHandoffValue(value)
	if err != nil {
		slog.Warn("Rejecting malformed handoff value", "value", value, "error", err)
		SetErrorResponse(w, r, http.StatusBadRequest, nil)
		return
	}

	setCookies := h.cookies.SetCookiesFromRequest(r.Header.Get("Cookie"), target)
	for _, setCookie := range setCookies {
		w.Header().Add("Set-Cookie", setCookie)
	}

	metrics.Tracker.TrackHandoff()
	slog.Info("Servicing cookie handoff", "target", target.String(), "cookies", len(setCookies))

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// rawQueryParam returns the still-encoded value of a query parameter. The
// handoff value is percent-decoded exactly once, by DecodeHandoffValue, so
// we must not go through url.Values here.
func rawQueryParam(rawQuery, name string) (string, bool) {
	for _, part := range strings.Split(rawQuery, "&") {
		key, value, _ := strings.Cut(part, "=")
		if key == name {
			return value, true
		}
	}
	return "", false
}

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

var ErrMalformedCookie = errors.New("cookie cannot be parsed into a name and value")

// CookieRewriter scopes cookie paths to their upstream's proxied location.
// It rewrites only the Path attribute; every other byte of a Set-Cookie
// value passes through unchanged, so upstream attribute order, casing and
// percent-encoded values survive verbatim. http.ParseSetCookie is not used
// here: re-serializing a parsed cookie normalizes attributes.
type CookieRewriter struct {
	codec *PathCodec
}

func NewCookieRewriter(codec *PathCodec) *CookieRewriter {
	return &CookieRewriter{codec: codec}
}

// ApplyToHeader rewrites every Set-Cookie value in place against the target
// origin, treating the header as an ordered sequence of independent cookie
// records. Unparseable entries are skipped and left untouched. Returns the
// number of cookies rewritten.
func (cr *CookieRewriter) ApplyToHeader(header http.Header, target *url.URL) int {
	rewritten := 0

	cookies := header["Set-Cookie"]
	for i, value := range cookies {
		result, err := cr.rewritePath(value, target)
		if err != nil {
			slog.Warn("Skipping unparseable Set-Cookie header", "cookie", value, "error", err)
			continue
		}
		cookies[i] = result
		rewritten++
	}

	return rewritten
}

// SetCookiesFromRequest synthesizes one Set-Cookie header per request-side
// cookie pair, scoped to the target origin. Browsers strip attributes from
// request cookies, so the synthesized records carry none besides Path.
// Order of appearance in the Cookie header is preserved.
func (cr *CookieRewriter) SetCookiesFromRequest(cookieHeader string, target *url.URL) []string {
	var setCookies []string
	for _, pair := range parseCookiePairs(cookieHeader) {
		setCookies = append(setCookies, pair.raw+"; Path="+cr.ScopedPath(target, "/"))
	}
	return setCookies
}

// ScopedPath returns the proxied path that scopes a cookie to the target
// origin. A path already in proxied form is returned as is, which makes the
// rewrite idempotent.
func (cr *CookieRewriter) ScopedPath(target *url.URL, cookiePath string) string {
	if strings.HasPrefix(cookiePath, cr.codec.Prefix()) {
		return cookiePath
	}

	if cookiePath == "" {
		cookiePath = "/"
	}

	return cr.codec.Encode(&url.URL{Scheme: target.Scheme, Host: target.Host, Path: cookiePath})
}

// rewritePath replaces the Path attribute of a single Set-Cookie value,
// in place when present, appended otherwise.
func (cr *CookieRewriter) rewritePath(setCookie string, target *url.URL) (string, error) {
	segments := strings.Split(setCookie, "; ")

	name, _, found := strings.Cut(segments[0], "=")
	if !found || name == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedCookie, setCookie)
	}

	pathIndex := -1
	originalPath := ""
	for i, segment := range segments[1:] {
		attribute, value, _ := strings.Cut(segment, "=")
		if strings.EqualFold(attribute, "path") {
			pathIndex = i + 1
			originalPath = value
			break
		}
	}

	rewritten := "Path=" + cr.ScopedPath(target, originalPath)
	if pathIndex >= 0 {
		segments[pathIndex] = rewritten
	} else {
		segments = append(segments, rewritten)
	}

	return strings.Join(segments, "; "), nil
}

type cookiePair struct {
	name string
	raw  string // the original name=value bytes, preserved verbatim
}

// parseCookiePairs splits a request-side Cookie header into ordered
// name=value pairs. Pairs that cannot be parsed are skipped.
func parseCookiePairs(cookieHeader string) []cookiePair {
	var pairs []cookiePair
	for _, part := range strings.Split(cookieHeader, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, _, found := strings.Cut(part, "=")
		if !found || name == "" {
			slog.Warn("Skipping unparseable request cookie", "cookie", part, "error", ErrMalformedCookie)
			continue
		}

		pairs = append(pairs, cookiePair{name: name, raw: part})
	}
	return pairs
}

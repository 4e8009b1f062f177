package server

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/crumbway/crumbway/internal/metrics"
)

// ProxyHandler forwards a prefixed request to the upstream encoded in its
// path and runs the response rewrite pipeline: cookie paths are re-scoped
// on every response, redirects are augmented with carried-forward cookies
// when they switch upstream origin, and eligible bodies are streamed
// through the link rewriter.
type ProxyHandler struct {
	config  *Config
	codec   *PathCodec
	cookies *CookieRewriter
	proxy   *httputil.ReverseProxy
}

func NewProxyHandler(config *Config, codec *PathCodec, cookies *CookieRewriter) *ProxyHandler {
	handler := &ProxyHandler{
		config:  config,
		codec:   codec,
		cookies: cookies,
	}

	handler.proxy = &httputil.ReverseProxy{
		Rewrite:        handler.rewrite,
		ModifyResponse: handler.modifyResponse,
		ErrorHandler:   handler.handleProxyError,
	}

	return handler
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upstream, err := h.codec.Decode(r.URL.Path)
	if err != nil {
		slog.Warn("Request path is not a proxied upstream URL", "path", r.URL.Path, "error", err)
		SetErrorResponse(w, r, http.StatusNotFound, nil)
		return
	}
	upstream.RawQuery = r.URL.RawQuery

	setLoggedUpstream(r.Context(), upstream.String())

	exchange := &Exchange{Upstream: upstream, RequestHeader: r.Header}
	h.proxy.ServeHTTP(w, r.WithContext(withExchange(r.Context(), exchange)))
}

func (h *ProxyHandler) rewrite(req *httputil.ProxyRequest) {
	exchange := exchangeFromContext(req.In.Context())

	// Preserve & append X-Forwarded-For
	req.Out.Header["X-Forwarded-For"] = req.In.Header["X-Forwarded-For"]
	req.SetXForwarded()

	req.Out.URL = exchange.Upstream
	req.Out.Host = exchange.Upstream.Host
}

func (h *ProxyHandler) modifyResponse(resp *http.Response) error {
	exchange := exchangeFromContext(resp.Request.Context())
	if exchange == nil {
		return nil
	}

	if isRedirect(resp.StatusCode) {
		h.augmentRedirect(resp, exchange)
	} else {
		rewritten := h.cookies.ApplyToHeader(resp.Header, exchange.Origin())
		metrics.Tracker.TrackCookieRewrites(rewritten)
	}

	if h.config.ShouldRewriteBody(resp.Header.Get("Content-Type")) {
		resp.Body = NewLinkRewriter(resp.Body, h.codec, exchange.Origin())
		resp.Header.Del("Content-Length")
		resp.ContentLength = -1
	}

	return nil
}

// augmentRedirect prepares a 3xx response for the client. The Location
// header is folded back into proxied form so the browser stays under the
// prefix. When the redirect switches upstream origin, the response's own
// cookies are re-scoped to the destination and the client's remaining
// cookies are carried forward so they survive the origin change.
func (h *ProxyHandler) augmentRedirect(resp *http.Response, exchange *Exchange) {
	destination := h.redirectDestination(resp, exchange)
	if destination == nil {
		metrics.Tracker.TrackCookieRewrites(h.cookies.ApplyToHeader(resp.Header, exchange.Origin()))
		return
	}

	resp.Header.Set("Location", h.codec.Encode(destination))

	if h.codec.SameOrigin(destination, exchange.Upstream) {
		metrics.Tracker.TrackCookieRewrites(h.cookies.ApplyToHeader(resp.Header, exchange.Origin()))
		return
	}

	destinationOrigin := &url.URL{Scheme: destination.Scheme, Host: destination.Host, Path: "/"}
	rewritten := h.cookies.ApplyToHeader(resp.Header, destinationOrigin)

	present := map[string]bool{}
	for _, setCookie := range resp.Header["Set-Cookie"] {
		if name, _, found := strings.Cut(setCookie, "="); found {
			present[name] = true
		}
	}

	carried := 0
	for _, pair := range parseCookiePairs(exchange.RequestHeader.Get("Cookie")) {
		if present[pair.name] {
			continue
		}
		resp.Header.Add("Set-Cookie", pair.raw+"; Path="+h.cookies.ScopedPath(destinationOrigin, "/"))
		carried++
	}

	metrics.Tracker.TrackCookieRewrites(rewritten + carried)
	slog.Debug("Augmented cross-origin redirect",
		"from", exchange.Upstream.String(), "to", destination.String(), "carried_cookies", carried)
}

// redirectDestination resolves the Location header against the request's
// upstream. Returns nil when there is no usable destination.
func (h *ProxyHandler) redirectDestination(resp *http.Response, exchange *Exchange) *url.URL {
	location := resp.Header.Get("Location")
	if location == "" {
		return nil
	}

	destination, err := url.Parse(location)
	if err != nil {
		slog.Warn("Redirect location is not a valid URL; leaving it untouched", "location", location)
		return nil
	}

	return exchange.Upstream.ResolveReference(destination)
}

func (h *ProxyHandler) handleProxyError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("Error while proxying", "path", r.URL.Path, "error", err)
	SetErrorResponse(w, r, http.StatusBadGateway, nil)
}

func isRedirect(statusCode int) bool {
	return statusCode >= 300 && statusCode < 400
}

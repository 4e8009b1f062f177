package server

import (
	"context"
	"net/http"
	"net/url"
)

type contextKey string

var contextKeyExchange = contextKey("exchange")

// Exchange aggregates the state of one proxied request/response cycle: the
// decoded upstream, and the request headers the response pipeline may need
// to consult. It is allocated per request and never outlives it.
type Exchange struct {
	Upstream      *url.URL
	RequestHeader http.Header
}

// Origin returns the upstream's origin with a root path, the form cookie
// paths and handoff links are scoped to.
func (e *Exchange) Origin() *url.URL {
	return &url.URL{Scheme: e.Upstream.Scheme, Host: e.Upstream.Host, Path: "/"}
}

func withExchange(ctx context.Context, exchange *Exchange) context.Context {
	return context.WithValue(ctx, contextKeyExchange, exchange)
}

func exchangeFromContext(ctx context.Context) *Exchange {
	exchange, _ := ctx.Value(contextKeyExchange).(*Exchange)
	return exchange
}

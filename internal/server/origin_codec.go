package server

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// HandoffParam is the reserved query parameter that carries the destination
// of a pending cross-origin cookie transfer.
const HandoffParam = "__proxy_cookies_to"

var (
	ErrMalformedPath         = errors.New("proxied path does not contain an absolute upstream URL")
	ErrMalformedHandoffValue = errors.New("handoff value is not a valid upstream URL")
)

// RegistrableDomainFunc reduces a hostname to its registrable domain.
type RegistrableDomainFunc func(host string) string

// HeuristicRegistrableDomain keeps the rightmost two labels of a host. This
// is an approximation of eTLD+1: hosts under multi-label public suffixes
// (co.uk and friends) collapse to the suffix itself. Use
// PublicSuffixRegistrableDomain where exactness matters.
func HeuristicRegistrableDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// PublicSuffixRegistrableDomain resolves eTLD+1 against the embedded public
// suffix list.
func PublicSuffixRegistrableDomain(host string) string {
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// PathCodec converts between upstream URLs and their proxied local form:
// the configured prefix followed by the upstream URL verbatim.
type PathCodec struct {
	prefix            string
	registrableDomain RegistrableDomainFunc
}

func NewPathCodec(prefix string) *PathCodec {
	return &PathCodec{
		prefix:            prefix,
		registrableDomain: HeuristicRegistrableDomain,
	}
}

// WithRegistrableDomainFunc replaces the strategy used for same-site
// comparisons.
func (c *PathCodec) WithRegistrableDomainFunc(fn RegistrableDomainFunc) *PathCodec {
	c.registrableDomain = fn
	return c
}

func (c *PathCodec) Prefix() string {
	return c.prefix
}

// Encode appends the upstream URL after the prefix without escaping it.
// Decode and the link rewriter rely on finding the scheme:// boundary
// inside the resulting path.
func (c *PathCodec) Encode(upstream *url.URL) string {
	return c.prefix + upstream.String()
}

func (c *PathCodec) Decode(proxiedPath string) (*url.URL, error) {
	remainder, found := strings.CutPrefix(proxiedPath, c.prefix)
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrMalformedPath, proxiedPath)
	}

	upstream, err := url.Parse(remainder)
	if err != nil || !upstream.IsAbs() || upstream.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedPath, proxiedPath)
	}

	return upstream, nil
}

// EncodeHandoffValue renders the upstream URL as a single query parameter
// value, with all reserved characters percent-escaped.
func (c *PathCodec) EncodeHandoffValue(upstream *url.URL) string {
	return url.QueryEscape(upstream.String())
}

func (c *PathCodec) DecodeHandoffValue(value string) (*url.URL, error) {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedHandoffValue, value)
	}

	upstream, err := url.Parse(decoded)
	if err != nil || !upstream.IsAbs() || upstream.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedHandoffValue, value)
	}

	return upstream, nil
}

// SameOrigin reports whether two upstream URLs share scheme and host,
// including any subdomain and port.
func (c *PathCodec) SameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host
}

// SameRegistrableDomain reports whether two upstream URLs belong to the
// same site, using the configured registrable-domain strategy.
func (c *PathCodec) SameRegistrableDomain(a, b *url.URL) bool {
	return c.registrableDomain(a.Hostname()) == c.registrableDomain(b.Hostname())
}

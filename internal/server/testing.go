package server

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		Prefix:              DefaultPrefix,
		RewriteContentTypes: DefaultRewriteContentTypes,
	}
}

func mustParseURL(t testing.TB, value string) *url.URL {
	t.Helper()

	u, err := url.Parse(value)
	require.NoError(t, err)
	return u
}

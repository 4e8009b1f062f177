package server

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rewriteBody(t *testing.T, input string, oneByteChunks bool) string {
	t.Helper()

	codec := NewPathCodec("/proxy/")
	origin := mustParseURL(t, "http://example.com/")

	var src io.Reader = strings.NewReader(input)
	if oneByteChunks {
		src = iotest.OneByteReader(src)
	}

	rewriter := NewLinkRewriter(io.NopCloser(src), codec, origin)
	output, err := io.ReadAll(rewriter)
	require.NoError(t, err)
	require.NoError(t, rewriter.Close())

	return string(output)
}

func TestLinkRewriter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "same origin link is untouched",
			input:    `<a href="/proxy/http://example.com/page">page</a>`,
			expected: `<a href="/proxy/http://example.com/page">page</a>`,
		},
		{
			name:     "subdomain change becomes a handoff link",
			input:    `<a href="/proxy/http://app.example.com/login">login</a>`,
			expected: `<a href="/proxy/http://example.com/?__proxy_cookies_to=http%3A%2F%2Fapp.example.com%2Flogin">login</a>`,
		},
		{
			name:     "scheme change becomes a handoff link",
			input:    `<img src='/proxy/https://example.com/img.png'>`,
			expected: `<img src='/proxy/http://example.com/?__proxy_cookies_to=https%3A%2F%2Fexample.com%2Fimg.png'>`,
		},
		{
			name:     "different registrable domain is untouched",
			input:    `<a href="/proxy/http://cdnexample.com/lib.js">x</a>`,
			expected: `<a href="/proxy/http://cdnexample.com/lib.js">x</a>`,
		},
		{
			name:     "window.open literal becomes a handoff link",
			input:    `<script>window.open('/proxy/https://example.com/popup');</script>`,
			expected: `<script>window.open('/proxy/http://example.com/?__proxy_cookies_to=https%3A%2F%2Fexample.com%2Fpopup');</script>`,
		},
		{
			name:     "non-proxied link is untouched",
			input:    `<a href="https://app.example.com/direct">x</a>`,
			expected: `<a href="https://app.example.com/direct">x</a>`,
		},
		{
			name:     "unquoted attribute is untouched",
			input:    `<a href=/proxy/http://app.example.com/bare>x</a>`,
			expected: `<a href=/proxy/http://app.example.com/bare>x</a>`,
		},
		{
			name:     "plain text passes through byte for byte",
			input:    "nothing to see here, not even an href= without a quote",
			expected: "nothing to see here, not even an href= without a quote",
		},
		{
			name: "multiple links in one document",
			input: `<a href="/proxy/http://example.com/ok">` +
				`<a href="/proxy/http://app.example.com/x">` +
				`<a href="/proxy/http://cdnexample.com/y">`,
			expected: `<a href="/proxy/http://example.com/ok">` +
				`<a href="/proxy/http://example.com/?__proxy_cookies_to=http%3A%2F%2Fapp.example.com%2Fx">` +
				`<a href="/proxy/http://cdnexample.com/y">`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rewriteBody(t, tt.input, false))
		})
	}
}

// Feeding the rewriter one byte at a time forces every match to straddle
// chunk boundaries.
func TestLinkRewriter_MatchesAcrossChunkBoundaries(t *testing.T) {
	input := `<p>before</p><a href="/proxy/https://example.com/next">go</a><p>after</p>`
	expected := `<p>before</p><a href="/proxy/http://example.com/?__proxy_cookies_to=https%3A%2F%2Fexample.com%2Fnext">go</a><p>after</p>`

	assert.Equal(t, expected, rewriteBody(t, input, true))
}

func TestLinkRewriter_AlwaysReturnsANewStream(t *testing.T) {
	codec := NewPathCodec("/proxy/")
	origin := mustParseURL(t, "http://example.com/")

	src := io.NopCloser(strings.NewReader("no links at all"))
	rewriter := NewLinkRewriter(src, codec, origin)

	assert.NotSame(t, src, rewriter)

	output, err := io.ReadAll(rewriter)
	require.NoError(t, err)
	assert.Equal(t, "no links at all", string(output))
}

func TestLinkRewriter_PropagatesReadErrorsAfterDrainingOutput(t *testing.T) {
	codec := NewPathCodec("/proxy/")
	origin := mustParseURL(t, "http://example.com/")

	boom := errors.New("boom")
	src := io.NopCloser(io.MultiReader(strings.NewReader("partial content"), iotest.ErrReader(boom)))

	rewriter := NewLinkRewriter(src, codec, origin)
	output, err := io.ReadAll(rewriter)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "partial content", string(output))
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestLinkRewriter_ClosePropagatesToSource(t *testing.T) {
	codec := NewPathCodec("/proxy/")
	origin := mustParseURL(t, "http://example.com/")

	src := &closeRecorder{Reader: strings.NewReader("abandoned body")}
	rewriter := NewLinkRewriter(src, codec, origin)

	require.NoError(t, rewriter.Close())
	assert.True(t, src.closed)
}

func TestLinkRewriter_UnterminatedValueIsPassedThrough(t *testing.T) {
	input := `<a href="/proxy/http://app.example.com/never-closed`
	assert.Equal(t, input, rewriteBody(t, input, false))
	assert.Equal(t, input, rewriteBody(t, input, true))
}

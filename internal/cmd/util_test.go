package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvString(t *testing.T) {
	assert.Equal(t, "fallback", getEnvString("MISSING_VALUE", "fallback"))

	t.Setenv("SOME_VALUE", "direct")
	assert.Equal(t, "direct", getEnvString("SOME_VALUE", "fallback"))

	t.Setenv(ENV_PREFIX+"SOME_VALUE", "prefixed")
	assert.Equal(t, "prefixed", getEnvString("SOME_VALUE", "fallback"))
}

func TestGetEnvStrings(t *testing.T) {
	assert.Equal(t, []string{"text/html"}, getEnvStrings("MISSING_LIST", []string{"text/html"}))

	t.Setenv("SOME_LIST", "text/html, application/xhtml+xml, ")
	assert.Equal(t, []string{"text/html", "application/xhtml+xml"}, getEnvStrings("SOME_LIST", nil))
}

func TestGetEnvInt(t *testing.T) {
	assert.Equal(t, 8080, getEnvInt("MISSING_PORT", 8080))

	t.Setenv("SOME_PORT", "9090")
	assert.Equal(t, 9090, getEnvInt("SOME_PORT", 8080))

	t.Setenv("SOME_PORT", "not-a-number")
	assert.Equal(t, 8080, getEnvInt("SOME_PORT", 8080))
}

func TestGetEnvBool(t *testing.T) {
	assert.False(t, getEnvBool("MISSING_FLAG", false))

	t.Setenv("SOME_FLAG", "true")
	assert.True(t, getEnvBool("SOME_FLAG", false))

	t.Setenv("SOME_FLAG", "nope")
	assert.False(t, getEnvBool("SOME_FLAG", false))
}

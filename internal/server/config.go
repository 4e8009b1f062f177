package server

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHttpPort = 80
	DefaultPrefix   = "/proxy/"
)

var (
	DefaultRewriteContentTypes = []string{"text/html", "application/xhtml+xml"}

	ErrInvalidPrefix = errors.New("prefix must begin and end with a slash")
)

type Config struct {
	Bind        string `yaml:"bind"`
	HttpPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`

	Prefix              string   `yaml:"prefix"`
	RewriteContentTypes []string `yaml:"rewrite_content_types"`
}

func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &Config{}
	err = yaml.Unmarshal(buf, config)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return config, nil
}

func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Prefix, "/") || !strings.HasSuffix(c.Prefix, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, c.Prefix)
	}

	if len(c.RewriteContentTypes) == 0 {
		c.RewriteContentTypes = DefaultRewriteContentTypes
	}

	return nil
}

// ShouldRewriteBody reports whether a response with the given Content-Type
// header is eligible for link rewriting.
func (c *Config) ShouldRewriteBody(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	return slices.Contains(c.RewriteContentTypes, mediaType)
}

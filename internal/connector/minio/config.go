package minio

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const defaultBucket = "cardsync-staging"

// Config captures object-storage connection settings. All fields are
// explicit; nothing is read from ambient process state.
type Config struct {
	// EndpointURL is the store address. http(s):// selects the S3 client,
	// file:// selects the local filesystem store.
	EndpointURL     string
	Region          string
	UseSSL          bool
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Validate enforces required fields before a client is built.
func (c *Config) Validate() error {
	if c.EndpointURL == "" {
		return wrapError(CodeEndpointUnreachable, true, fmt.Errorf("endpoint URL is required"))
	}
	u, err := url.Parse(c.EndpointURL)
	if err != nil {
		return wrapError(CodeEndpointUnreachable, true, err)
	}
	if c.Bucket == "" {
		c.Bucket = defaultBucket
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		if c.AccessKeyID == "" || c.SecretAccessKey == "" {
			return wrapError(CodeAuthInvalid, false, fmt.Errorf("access key and secret are required"))
		}
	}
	return nil
}

// objectRoot resolves the filesystem root for file:// endpoints.
func (c *Config) objectRoot() string {
	trimmed := strings.TrimPrefix(c.EndpointURL, "file://")
	if trimmed == "" {
		return filepath.Join(os.TempDir(), "cardsync-store")
	}
	return filepath.FromSlash(trimmed)
}

func sanitizePath(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, raw)
	return strings.Trim(cleaned, "-")
}

package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/stagebox/service/internal/logging"
)

type commandContext struct {
	server   string
	token    string
	logLevel string
}

func (c *commandContext) logger(w io.Writer) *log.Logger {
	return logging.New(w, "", c.logLevel)
}

// uploadEndpoint resolves the relay's upload URL from the server flag.
func (c *commandContext) uploadEndpoint() (string, error) {
	base := strings.TrimRight(strings.TrimSpace(c.server), "/")
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", fmt.Errorf("server URL %q must be an absolute http(s) URL", c.server)
	}
	return base + "/api/upload", nil
}

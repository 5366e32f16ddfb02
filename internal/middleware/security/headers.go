// Package security sets defensive response headers on the JSON API.
package security

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// HeadersConfig holds security headers configuration
type HeadersConfig struct {
	// Content Security Policy
	CSP string

	// HSTS settings
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	// Additional security headers
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	CrossOriginResource string
}

// DefaultHeadersConfig returns defaults for an API that serves no HTML.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		CrossOriginResource:   "same-site",
	}
}

// Headers returns a gin middleware applying config to every response.
func Headers(config HeadersConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		if config.XContentTypeOptions != "" {
			h.Set("X-Content-Type-Options", config.XContentTypeOptions)
		}
		if config.XFrameOptions != "" {
			h.Set("X-Frame-Options", config.XFrameOptions)
		}
		if config.CSP != "" {
			h.Set("Content-Security-Policy", config.CSP)
		}
		if config.ReferrerPolicy != "" {
			h.Set("Referrer-Policy", config.ReferrerPolicy)
		}
		if config.CrossOriginResource != "" {
			h.Set("Cross-Origin-Resource-Policy", config.CrossOriginResource)
		}

		// HSTS header (only for HTTPS)
		if c.Request.TLS != nil && config.HSTSMaxAge > 0 {
			hsts := fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
			if config.HSTSIncludeSubdomains {
				hsts += "; includeSubDomains"
			}
			h.Set("Strict-Transport-Security", hsts)
		}

		c.Next()
	}
}

// Package security holds the response hardening and scanner detection
// middleware of the API.
package security

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
)

type HeadersConfig struct {
	CSP string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	CrossOriginResource string
	// CacheControl applies to every response. The API serves per-owner
	// financial data, so the default forbids storing it.
	CacheControl string
}

// DefaultHeadersConfig returns the headers for a JSON-only API.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		CrossOriginResource:   "same-origin",
		CacheControl:          "no-store",
	}
}

// Headers sets the configured headers on every response. HSTS is only sent
// over HTTPS.
func Headers(config HeadersConfig) fiber.Handler {
	hsts := ""
	if config.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(c fiber.Ctx) error {
		setIf(c, "X-Content-Type-Options", config.XContentTypeOptions)
		setIf(c, "X-Frame-Options", config.XFrameOptions)
		setIf(c, "Content-Security-Policy", config.CSP)
		setIf(c, "Referrer-Policy", config.ReferrerPolicy)
		setIf(c, "Cross-Origin-Resource-Policy", config.CrossOriginResource)
		setIf(c, fiber.HeaderCacheControl, config.CacheControl)
		if hsts != "" && c.Scheme() == "https" {
			c.Set("Strict-Transport-Security", hsts)
		}
		return c.Next()
	}
}

func setIf(c fiber.Ctx, key, value string) {
	if value != "" {
		c.Set(key, value)
	}
}

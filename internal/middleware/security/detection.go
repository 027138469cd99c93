package security

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/gofiber/fiber/v3"
)

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	scannerAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab",
	}
	unusualMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

const maxURLLength = 2048

// Detector flags requests that look like vulnerability scans.
type Detector struct {
	suspicious int64
}

func NewDetector() *Detector {
	return &Detector{}
}

// Suspicious reports whether a request matches a known scanner pattern.
func (d *Detector) Suspicious(method, path, rawQuery, userAgent string) bool {
	if len(path)+len(rawQuery) > maxURLLength {
		return true
	}
	for _, m := range unusualMethods {
		if method == m {
			return true
		}
	}

	path = strings.ToLower(path)
	rawQuery = strings.ToLower(rawQuery)
	for _, p := range suspiciousPatterns {
		if strings.Contains(path, p) || strings.Contains(rawQuery, p) {
			return true
		}
	}

	userAgent = strings.ToLower(userAgent)
	for _, a := range scannerAgents {
		if strings.Contains(userAgent, a) {
			return true
		}
	}
	return false
}

// Middleware answers suspicious requests with 404 without reaching the
// routes.
func (d *Detector) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		if d.Suspicious(c.Method(), c.Path(), string(c.Request().URI().QueryString()), c.Get(fiber.HeaderUserAgent)) {
			atomic.AddInt64(&d.suspicious, 1)
			slog.WarnContext(c.Context(), "Suspicious request blocked",
				"method", c.Method(),
				"path", c.Path(),
				"client_ip", c.IP())
			return fiber.ErrNotFound
		}
		return c.Next()
	}
}

// Blocked returns how many requests the middleware rejected.
func (d *Detector) Blocked() int64 {
	return atomic.LoadInt64(&d.suspicious)
}

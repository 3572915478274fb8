package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// Web cookie transport: the refresh token rides an HttpOnly cookie whose
	// path is restricted to the /auth routes, paired with a CSRF
	// double-submit cookie readable by the page.
	WebRefreshCookieEnabled bool
	RefreshCookieName       string
	CSRFCookieName          string
	CSRFHeaderName          string
	CookiePath              string
	CookieDomain            string
	CookieSecure            bool
	CookieSameSite          http.SameSite
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:              envBool("GATEHOUSE_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:            envInt64("GATEHOUSE_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		WebRefreshCookieEnabled: envBool("GATEHOUSE_AUTH_WEB_COOKIES", true),
		RefreshCookieName:       envString("GATEHOUSE_AUTH_REFRESH_COOKIE_NAME", "gatehouse_refresh"),
		CSRFCookieName:          envString("GATEHOUSE_AUTH_CSRF_COOKIE_NAME", "gatehouse_csrf"),
		CSRFHeaderName:          envString("GATEHOUSE_AUTH_CSRF_HEADER_NAME", "X-CSRF-Token"),
		CookiePath:              envString("GATEHOUSE_AUTH_COOKIE_PATH", "/auth"),
		CookieDomain:            strings.TrimSpace(os.Getenv("GATEHOUSE_AUTH_COOKIE_DOMAIN")),
		CookieSecure:            envBool("GATEHOUSE_AUTH_COOKIE_SECURE", true),
		CookieSameSite:          http.SameSiteStrictMode,
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

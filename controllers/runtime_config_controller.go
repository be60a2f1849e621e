package controllers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// runtimeConfigAllowList is the complete set of keys the endpoint may ever
// expose. Each key maps to an ordered list of environment variable spellings;
// the first non-empty one wins. Anything not listed here is excluded by
// construction - there is no blocklist to forget to update, and secret names
// like service-role keys simply have no entry.
var runtimeConfigAllowList = []struct {
	Key      string
	EnvNames []string
}{
	{"API_URL", []string{"API_URL", "VITE_API_URL"}},
	{"AUTH_DOMAIN", []string{"AUTH0_DOMAIN", "VITE_AUTH0_DOMAIN"}},
	{"AUTH_CLIENT_ID", []string{"AUTH0_CLIENT_ID", "VITE_AUTH0_CLIENT_ID"}},
	{"AUTH_AUDIENCE", []string{"AUTH0_AUDIENCE", "VITE_AUTH0_AUDIENCE"}},
	{"FIPE_API_URL", []string{"FIPE_API_URL", "VITE_FIPE_API_URL"}},
	{"EMAILJS_PUBLIC_KEY", []string{"EMAILJS_PUBLIC_KEY", "VITE_EMAILJS_PUBLIC_KEY"}},
}

// RuntimeConfig handles GET /api/runtime-config - returns the whitelisted
// public configuration the frontend needs at boot. Computed fresh from the
// process environment on every request and never cached.
func RuntimeConfig(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	// Audit mode: return only the allowed key names, gated by a shared
	// token so anonymous visitors cannot enumerate them.
	if keysOnly := c.Query("keysOnly"); keysOnly == "1" || keysOnly == "true" {
		auditToken := os.Getenv("RUNTIME_CONFIG_AUDIT_TOKEN")
		if auditToken == "" {
			auditToken = os.Getenv("AUDIT_TOKEN")
		}
		if auditToken == "" || c.GetHeader("X-Audit-Token") != auditToken {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}

		keys := make([]string, 0, len(runtimeConfigAllowList))
		for _, entry := range runtimeConfigAllowList {
			keys = append(keys, entry.Key)
		}
		c.JSON(http.StatusOK, gin.H{"keys": keys})
		return
	}

	cfg := make(map[string]string, len(runtimeConfigAllowList))
	for _, entry := range runtimeConfigAllowList {
		value := ""
		for _, envName := range entry.EnvNames {
			if v := os.Getenv(envName); v != "" {
				value = v
				break
			}
		}
		cfg[entry.Key] = value
	}

	c.JSON(http.StatusOK, cfg)
}

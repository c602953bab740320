package instance

import (
	"os"
	"strings"
)

// GetID names this process in logs and relay lock diagnostics. Explicit
// configuration wins, then the platform dyno name, then the hostname.
func GetID() string {
	for _, env := range []string{"FRANCHISEPOS_INSTANCE_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(env)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AgentConfig configures the register-side agent that owns the offline queue.
type AgentConfig struct {
	LogLevel          string        `envconfig:"FRANCHISEPOS_LOG_LEVEL" default:"info"`
	APIBaseURL        string        `envconfig:"FRANCHISEPOS_AGENT_API_BASE_URL" required:"true"`
	Token             string        `envconfig:"FRANCHISEPOS_AGENT_TOKEN" required:"true"`
	DeviceID          string        `envconfig:"FRANCHISEPOS_AGENT_DEVICE_ID" required:"true"`
	QueuePath         string        `envconfig:"FRANCHISEPOS_AGENT_QUEUE_PATH" default:"offline-queue.db"`
	ReconnectInterval time.Duration `envconfig:"FRANCHISEPOS_AGENT_RECONNECT_INTERVAL" default:"15s"`
	RequestTimeout    time.Duration `envconfig:"FRANCHISEPOS_AGENT_REQUEST_TIMEOUT" default:"10s"`
	MetricsAddr       string        `envconfig:"FRANCHISEPOS_AGENT_METRICS_ADDR"`
	// CaptureAddr is where the terminal UI hands over sales and refunds. Loopback only; empty disables it.
	CaptureAddr string `envconfig:"FRANCHISEPOS_AGENT_CAPTURE_ADDR" default:"127.0.0.1:8790"`

	// StationID enables the customer display mirror when set.
	StationID           string        `envconfig:"FRANCHISEPOS_AGENT_STATION_ID"`
	DisplayPollInterval time.Duration `envconfig:"FRANCHISEPOS_AGENT_DISPLAY_POLL_INTERVAL" default:"500ms"`
	DisplayWait         time.Duration `envconfig:"FRANCHISEPOS_AGENT_DISPLAY_WAIT" default:"20s"`
}

// LoadAgent reads the agent configuration from the environment.
func LoadAgent() (*AgentConfig, error) {
	var cfg AgentConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing agent config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("agent api base url is required")
	}
	if cfg.CaptureAddr != "" && !isLoopback(cfg.CaptureAddr) {
		return nil, fmt.Errorf("agent capture address %q must be a loopback address", cfg.CaptureAddr)
	}
	return &cfg, nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

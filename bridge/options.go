package bridge

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by OptionsFromEnv.
//
//	NEXUS_LIVE              - must be "true" to enable live calls
//	NEXUS_MCP_TRANSPORT     - http, sse or stdio (default: "http")
//	NEXUS_MCP_ENDPOINT      - JSON-RPC URL for the http and sse transports
//	NEXUS_MCP_COMMAND       - server executable for the stdio transport
//	NEXUS_MCP_ARGS          - space separated server arguments
//	NEXUS_MCP_INIT_TIMEOUT  - initialize handshake timeout (default: "10s")
//	NEXUS_MCP_RATE          - maximum calls per second (default: unlimited)
const (
	EnvLive        = "NEXUS_LIVE"
	EnvTransport   = "NEXUS_MCP_TRANSPORT"
	EnvEndpoint    = "NEXUS_MCP_ENDPOINT"
	EnvCommand     = "NEXUS_MCP_COMMAND"
	EnvArgs        = "NEXUS_MCP_ARGS"
	EnvInitTimeout = "NEXUS_MCP_INIT_TIMEOUT"
	EnvRate        = "NEXUS_MCP_RATE"
)

// Transport names the MCP transport used to reach the service.
type Transport string

const (
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
	TransportStdio Transport = "stdio"
)

// DefaultInitTimeout bounds the MCP initialize handshake.
const DefaultInitTimeout = 10 * time.Second

// Options configures Open.
type Options struct {
	Transport   Transport
	Endpoint    string
	Command     string
	Args        []string
	InitTimeout time.Duration
	// Rate is the maximum number of tool calls per second. Zero disables
	// limiting.
	Rate float64
}

// LiveEnabled reports whether NEXUS_LIVE is set to "true".
func LiveEnabled() bool {
	return os.Getenv(EnvLive) == "true"
}

// OptionsFromEnv reads Options from the NEXUS_* environment variables.
func OptionsFromEnv() (Options, error) {
	opts := Options{
		Transport: Transport(strings.ToLower(envOr(EnvTransport, string(TransportHTTP)))),
		Endpoint:  os.Getenv(EnvEndpoint),
		Command:   os.Getenv(EnvCommand),
		Args:      strings.Fields(os.Getenv(EnvArgs)),
	}
	timeout, err := envDurationOr(EnvInitTimeout, DefaultInitTimeout)
	if err != nil {
		return Options{}, err
	}
	opts.InitTimeout = timeout
	if opts.Rate, err = envFloatOr(EnvRate, 0); err != nil {
		return Options{}, err
	}
	return opts, opts.Validate()
}

// Validate checks that the options name a usable transport.
func (o Options) Validate() error {
	switch o.Transport {
	case TransportHTTP, TransportSSE:
		if o.Endpoint == "" {
			return fmt.Errorf("%s is required for the %s transport", EnvEndpoint, o.Transport)
		}
	case TransportStdio:
		if o.Command == "" {
			return fmt.Errorf("%s is required for the stdio transport", EnvCommand)
		}
	default:
		return fmt.Errorf("unsupported transport %q (want http, sse or stdio)", o.Transport)
	}
	if o.Rate < 0 {
		return fmt.Errorf("%s must not be negative", EnvRate)
	}
	return nil
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDurationOr(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envFloatOr(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

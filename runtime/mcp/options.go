package mcp

import "time"

const (
	defaultClientName    = "spec-factory"
	defaultClientVersion = "dev"
)

// HandshakeOptions configures the MCP initialize exchange shared by all
// transports.
type HandshakeOptions struct {
	// ProtocolVersion defaults to DefaultProtocolVersion.
	ProtocolVersion string
	// ClientName defaults to "spec-factory".
	ClientName    string
	ClientVersion string
	// InitTimeout bounds the initialize call when positive.
	InitTimeout time.Duration
}

func (o HandshakeOptions) initializeParams() map[string]any {
	protocol := o.ProtocolVersion
	if protocol == "" {
		protocol = DefaultProtocolVersion
	}
	name := o.ClientName
	if name == "" {
		name = defaultClientName
	}
	version := o.ClientVersion
	if version == "" {
		version = defaultClientVersion
	}
	return map[string]any{
		"protocolVersion": protocol,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    name,
			"version": version,
		},
	}
}

package proxy

import "time"

// UpstreamConfig represents a single forwarding target
type UpstreamConfig struct {
	URL          string `yaml:"url" json:"url"`                     // Target origin (required)
	ChangeOrigin bool   `yaml:"change_origin" json:"change_origin"` // Rewrite Host to the target host
}

// DefaultTimeout bounds how long a backend may take to send response headers.
const DefaultTimeout = 30 * time.Second

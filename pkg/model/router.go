package model

// Router describes one fleet member from the governing configuration.
type Router struct {
	Name             string `json:"name"` // short name, e.g. "dc5-1"
	FQDN             string `json:"fqdn"`
	Vendor           string `json:"vendor"`
	IPv4             string `json:"ipv4"`
	IPv6             string `json:"ipv6"`
	GracefulShutdown bool   `json:"gracefulShutdown,omitempty"`
	Maintenance      bool   `json:"maintenance,omitempty"`
}

// RouterConfig is the full artifact tree for one router, regenerated from
// scratch every run.
type RouterConfig struct {
	RouterID        string            `json:"routerId"`
	FQDN            string            `json:"fqdn"`
	Vendor          string            `json:"vendor"`
	Files           map[string]string `json:"files"` // relative path -> content
	ValidationState string            `json:"validationState"`
}

// Validation states for a RouterConfig.
const (
	ValidationPending = "pending"
	ValidationPassed  = "passed"
	ValidationFailed  = "failed"
)

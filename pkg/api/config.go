package api

import "time"

// Config configures the status HTTP server.
type Config struct {
	// Addr is the listen address (host:port).
	// Default: "127.0.0.1:9090"
	Addr string

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 10s
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration
}

// applyDefaults fills in zero values, so a Server built directly (e.g. in
// tests) behaves like one built from a loaded configuration.
func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:9090"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

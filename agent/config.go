// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package agent assembles a running daemon from its configuration:
// ledger database, domain services, orchestrator, hub and workers.
package agent

import (
	"net"
	"os"
	"strconv"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/schema"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v2"

	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/internal/database"
)

const (
	// DefaultAPIPort is the port the API server listens on unless
	// configured otherwise.
	DefaultAPIPort = 17170

	// DefaultBindAddress keeps the API private to the host unless
	// configured otherwise.
	DefaultBindAddress = "localhost"
)

var configChecker = schema.FieldMap(schema.Fields{
	"api-port":             schema.ForceInt(),
	"bind-address":         schema.String(),
	"db-path":              schema.String(),
	"logging-config":       schema.String(),
	"orchestrator-address": schema.String(),
	"wrapper-address":      schema.String(),
}, schema.Defaults{
	"api-port":        DefaultAPIPort,
	"bind-address":    DefaultBindAddress,
	"db-path":         database.Memory,
	"logging-config":  "<root>=INFO",
	"wrapper-address": schema.Omit,
})

// Config holds the daemon configuration.
type Config struct {
	apiPort       int
	bindAddress   string
	dbPath        string
	loggingConfig string
	orchestrator  asset.Address
	wrapper       asset.Address
}

// ReadConfig loads the daemon configuration from the YAML file at
// path.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "reading config")
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing config %q", path)
	}
	return cfg, nil
}

// ParseConfig builds a Config from YAML content.
func ParseConfig(data []byte) (*Config, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Annotate(err, "parsing YAML")
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	conformed, err := utils.ConformYAML(raw)
	if err != nil {
		return nil, errors.Trace(err)
	}
	coerced, err := configChecker.Coerce(conformed, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	attrs := coerced.(map[string]interface{})

	cfg := &Config{
		apiPort:       attrs["api-port"].(int),
		bindAddress:   attrs["bind-address"].(string),
		dbPath:        attrs["db-path"].(string),
		loggingConfig: attrs["logging-config"].(string),
	}
	if cfg.orchestrator, err = asset.ParseAddress(attrs["orchestrator-address"].(string)); err != nil {
		return nil, errors.Annotate(err, "orchestrator-address")
	}
	if wrapper, found := attrs["wrapper-address"]; found {
		if cfg.wrapper, err = asset.ParseAddress(wrapper.(string)); err != nil {
			return nil, errors.Annotate(err, "wrapper-address")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

// Validate returns an error if the configuration is incomplete or
// inconsistent.
func (c *Config) Validate() error {
	if c.apiPort < 0 || c.apiPort > 65535 {
		return errors.NotValidf("api-port %d", c.apiPort)
	}
	if c.dbPath == "" {
		return errors.NotValidf("empty db-path")
	}
	if c.orchestrator.IsZero() {
		return errors.NotValidf("zero orchestrator-address")
	}
	if _, err := loggo.ParseConfigString(c.loggingConfig); err != nil {
		return errors.Annotate(err, "logging-config")
	}
	return nil
}

// APIPort returns the port the API server listens on. Zero asks the
// kernel for an ephemeral port; APIURL on the running agent reports
// the address actually bound.
func (c *Config) APIPort() int {
	return c.apiPort
}

// BindAddress returns the address the API server binds to. Empty
// means all interfaces.
func (c *Config) BindAddress() string {
	return c.bindAddress
}

// APIAddress returns the listen address in host:port form.
func (c *Config) APIAddress() string {
	return net.JoinHostPort(c.bindAddress, strconv.Itoa(c.apiPort))
}

// DBPath returns the path of the SQLite database backing the ledger,
// or database.Memory for a throwaway ledger.
func (c *Config) DBPath() string {
	return c.dbPath
}

// LoggingConfig returns the loggo specification applied at startup.
func (c *Config) LoggingConfig() string {
	return c.loggingConfig
}

// OrchestratorAddress returns the address the migration orchestrator
// acts as on the ledger.
func (c *Config) OrchestratorAddress() asset.Address {
	return c.orchestrator
}

// WrapperAddress returns the configured wrapped native token address,
// or the zero address when it is to be resolved from the registry.
func (c *Config) WrapperAddress() asset.Address {
	return c.wrapper
}

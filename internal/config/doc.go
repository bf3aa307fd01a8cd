// Package config handles YAML configuration loading with environment variable
// expansion, defaults, and validation.
//
// The config file is optional. The PORT environment variable always overrides
// server.port so the relay can be deployed on platforms that assign the port.
package config

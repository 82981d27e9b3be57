// Package config defines the configuration for edlscan.
//
// Configuration flows from three sources, in increasing precedence:
// built-in defaults, the optional .edlscan YAML file, and CLI flags.
// The resulting Config struct is passed through the application via
// dependency injection rather than global state.
package config

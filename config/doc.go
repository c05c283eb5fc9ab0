// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, the backend cascade order, circuit breaker and
// retry tuning, session eviction, and persona file locations.
package config

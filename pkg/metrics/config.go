package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "taskchain"

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace overrides the default "taskchain" namespace for metrics.
	Namespace string

	// Labels are constant labels added to all metrics.
	Labels prometheus.Labels
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
		Labels:    nil,
	}
}

// Resolve returns the registry config describes: nil when metrics are
// disabled, DefaultRegistry for the default registerer and namespace, and a
// fresh Registry otherwise.
func Resolve(config Config) *Registry {
	if !config.Enabled {
		return nil
	}
	if (config.Registry == nil || config.Registry == prometheus.DefaultRegisterer) &&
		(config.Namespace == "" || config.Namespace == DefaultNamespace) &&
		len(config.Labels) == 0 {
		return DefaultRegistry
	}
	return NewRegistryWithConfig(config)
}

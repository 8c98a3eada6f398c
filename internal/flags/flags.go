// Package flags holds feature flags loaded from configuration and the
// capability context keys published after the codeql version is resolved.
// Feature flags are read-only after initialization; context keys are
// updated concurrently and observed through a broker.
package flags

import (
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/zjrosen/qlcli/internal/log"
	"github.com/zjrosen/qlcli/internal/pubsub"
)

// Flag name constants for type-safe flag access.
const (
	// FlagWatchConfig restarts the cli-server when the config file changes
	// during long-running commands.
	FlagWatchConfig = "watch-config"

	// FlagStreamStderr echoes stderr of streaming commands to the terminal.
	FlagStreamStderr = "stream-stderr"
)

// Capability context keys.
const (
	ContextSupportsQuickEvalCount = "codeql.supportsQuickEvalCount"
	ContextSupportsTrimCache      = "codeql.supportsTrimCache"
)

// ContextChange is published whenever a context key is set.
type ContextChange struct {
	Key   string
	Value bool
}

// Registry holds feature flag state and the capability context.
type Registry struct {
	flags map[string]bool

	mu      sync.RWMutex
	context map[string]bool
	broker  *pubsub.Broker[ContextChange]
}

// New creates a Registry from a config map.
// If flags is nil, an empty registry is created (all flags disabled).
func New(flags map[string]bool) *Registry {
	if flags == nil {
		flags = make(map[string]bool)
	}
	r := &Registry{
		flags:   flags,
		context: make(map[string]bool),
		broker:  pubsub.NewBroker[ContextChange](),
	}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(flags), "flags", r.All())
	return r
}

// Enabled returns true if the named flag is enabled.
// Returns false for unknown flags and on a nil registry.
func (r *Registry) Enabled(name string) bool {
	if r == nil || r.flags == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name, "result", false)
		return false
	}
	return value
}

// All returns a copy of all feature flags.
// Returns an empty map if the registry is nil.
func (r *Registry) All() map[string]bool {
	if r == nil || r.flags == nil {
		return make(map[string]bool)
	}
	result := make(map[string]bool, len(r.flags))
	maps.Copy(result, r.flags)
	return result
}

// SetContext records a capability context key and notifies subscribers.
func (r *Registry) SetContext(key string, value bool) error {
	if r == nil {
		return fmt.Errorf("set context %q: nil registry", key)
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("set context: empty key")
	}

	r.mu.Lock()
	r.context[key] = value
	r.mu.Unlock()

	log.Debug(log.CatVersion, "Context key set", "key", key, "value", value)
	r.broker.Publish(pubsub.UpdatedEvent, ContextChange{Key: key, Value: value})
	return nil
}

// Context returns the value of a context key and whether it has been set.
func (r *Registry) Context(key string) (value bool, ok bool) {
	if r == nil {
		return false, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok = r.context[key]
	return value, ok
}

// Broker exposes context changes to subscribers.
func (r *Registry) Broker() *pubsub.Broker[ContextChange] {
	return r.broker
}

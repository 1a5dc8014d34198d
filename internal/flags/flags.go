// Package flags provides feature flags read from the config file.
// Flags are read-only after initialization and default to off when unknown.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/pipewatch/internal/log"
)

const (
	// FlagResetRequiresAck makes reset keep local state when the server
	// rejects or never receives the reset request.
	FlagResetRequiresAck = "reset-requires-ack"

	// FlagMessageCache serves the per-lead messages view from a TTL cache.
	FlagMessageCache = "message-cache"
)

// Defaults apply to known flags the config does not mention.
var Defaults = map[string]bool{
	FlagResetRequiresAck: false,
	FlagMessageCache:     true,
}

// Registry holds feature flag state.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from the config map layered over Defaults.
func New(flags map[string]bool) *Registry {
	merged := maps.Clone(Defaults)
	maps.Copy(merged, flags)
	r := &Registry{flags: merged}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(merged), "flags", r.All())
	for name := range flags {
		if _, known := Defaults[name]; !known {
			log.Warn(log.CatConfig, "Unknown feature flag in config", "flag", name)
		}
	}
	return r
}

// Enabled returns true if the named flag is on. Unknown flags and a nil
// registry report false.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	return r.flags[name]
}

// All returns a copy of every flag value.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return map[string]bool{}
	}
	return maps.Clone(r.flags)
}

// Names returns the known flag names, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(Defaults))
}

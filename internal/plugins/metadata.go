package plugins

import (
	"strings"
	"sync"
)

// Metadata is a plugin's operator-supplied configuration record. Disable
// lists are consulted both at registration (filtering the declared
// grammar) and on every compilation, since metadata can be hot-reloaded.
type Metadata struct {
	// DisabledCommands lists command names that must not run.
	DisabledCommands []string `yaml:"disabled_commands" env:"DISABLED_COMMANDS"`

	// DisabledParameters lists "command.parameter" pairs that must not
	// be accepted.
	DisabledParameters []string `yaml:"disabled_parameters" env:"DISABLED_PARAMETERS"`

	// DefaultPermissionGroups seed the permission groups granted to the
	// plugin's commands when they are first persisted.
	DefaultPermissionGroups []string `yaml:"default_permission_groups" env:"DEFAULT_PERMISSION_GROUPS"`
}

// CommandDisabled reports whether the named command is disabled.
func (m Metadata) CommandDisabled(command string) bool {
	for _, c := range m.DisabledCommands {
		if strings.EqualFold(c, command) {
			return true
		}
	}
	return false
}

// ParameterDisabled reports whether command.param is disabled.
func (m Metadata) ParameterDisabled(command, param string) bool {
	want := strings.ToLower(command + "." + param)
	for _, p := range m.DisabledParameters {
		if strings.ToLower(p) == want {
			return true
		}
	}
	return false
}

// MetadataSource supplies per-plugin metadata.
type MetadataSource interface {
	Metadata(plugin string) Metadata
}

// MetadataStore is a hot-reloadable in-memory MetadataSource.
type MetadataStore struct {
	mu sync.RWMutex
	m  map[string]Metadata
}

// NewMetadataStore creates a store seeded with the given records.
func NewMetadataStore(m map[string]Metadata) *MetadataStore {
	s := &MetadataStore{m: make(map[string]Metadata)}
	s.Replace(m)
	return s
}

// Metadata returns the record for a plugin (zero value when absent).
func (s *MetadataStore) Metadata(plugin string) Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[strings.ToLower(plugin)]
}

// Replace swaps in a full new metadata set, used by config hot reload.
func (s *MetadataStore) Replace(m map[string]Metadata) {
	fresh := make(map[string]Metadata, len(m))
	for name, md := range m {
		fresh[strings.ToLower(name)] = md
	}
	s.mu.Lock()
	s.m = fresh
	s.mu.Unlock()
}

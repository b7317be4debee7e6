package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// State is a plugin's lifecycle state.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

type handle struct {
	plugin Plugin
	state  State
	ctx    context.Context
	cancel context.CancelFunc
}

// Registry maps plugin names to loaded handler units and command names to
// their registered descriptors.
type Registry struct {
	mu       sync.RWMutex
	plugins  map[string]*handle
	commands map[string]*Descriptor
	meta     MetadataSource
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(meta MetadataSource, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if meta == nil {
		meta = NewMetadataStore(nil)
	}
	return &Registry{
		plugins:  make(map[string]*handle),
		commands: make(map[string]*Descriptor),
		meta:     meta,
		logger:   logger.With("component", "plugins"),
	}
}

// Load registers a plugin's commands and starts it. Commands and
// parameters disabled by the plugin's metadata are excluded from the
// declared grammar at load time.
func (r *Registry) Load(p Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin is nil")
	}
	name := strings.ToLower(strings.TrimSpace(p.Name()))
	if name == "" {
		return fmt.Errorf("plugin name is required")
	}

	r.mu.Lock()
	if _, exists := r.plugins[name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("plugin %q already loaded", name)
	}

	md := r.meta.Metadata(name)
	var loaded []string
	for _, spec := range p.Commands() {
		cmdName := strings.ToLower(strings.TrimSpace(spec.Name))
		if cmdName == "" || spec.Handler == nil {
			r.mu.Unlock()
			return fmt.Errorf("plugin %q: command name and handler are required", name)
		}
		if _, exists := r.commands[cmdName]; exists {
			r.mu.Unlock()
			return fmt.Errorf("command %q already registered", cmdName)
		}
		if md.CommandDisabled(cmdName) {
			r.logger.Info("skipping disabled command", "plugin", name, "command", cmdName)
			continue
		}
		r.commands[cmdName] = buildDescriptor(name, cmdName, spec, md)
		loaded = append(loaded, cmdName)
	}
	r.plugins[name] = &handle{plugin: p, state: StateStopped}
	r.mu.Unlock()

	r.logger.Debug("loaded plugin", "plugin", name, "commands", loaded)
	return r.Start(name)
}

func buildDescriptor(plugin, cmdName string, spec Spec, md Metadata) *Descriptor {
	d := &Descriptor{
		Command:        cmdName,
		Plugin:         plugin,
		Handler:        spec.Handler,
		Parameters:     make(map[string]struct{}, len(spec.Parameters)),
		Exclusive:      make(map[string]struct{}, len(spec.Exclusive)),
		RequiresParams: spec.RequiresParams,
		resolvers:      make(map[string]Resolver, len(spec.Resolvers)),
	}
	for _, p := range spec.Parameters {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || md.ParameterDisabled(cmdName, p) {
			continue
		}
		d.Parameters[p] = struct{}{}
	}
	for _, p := range spec.Exclusive {
		p = strings.ToLower(strings.TrimSpace(p))
		if _, declared := d.Parameters[p]; declared {
			d.Exclusive[p] = struct{}{}
		}
	}
	for p, res := range spec.Resolvers {
		p = strings.ToLower(strings.TrimSpace(p))
		if _, declared := d.Parameters[p]; declared {
			d.resolvers[p] = res
		}
	}
	return d
}

// Lookup resolves a command name to its descriptor.
func (r *Registry) Lookup(command string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.commands[strings.ToLower(strings.TrimSpace(command))]
	return d, ok
}

// PluginState reports a plugin's lifecycle state.
func (r *Registry) PluginState(name string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.plugins[strings.ToLower(name)]
	if !ok {
		return StateStopped, false
	}
	return h.state, true
}

// Context returns the plugin's lifecycle context. Handlers receive it so
// they can observe cancellation when the plugin stops.
func (r *Registry) Context(name string) context.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.plugins[strings.ToLower(name)]
	if !ok || h.ctx == nil {
		return context.Background()
	}
	return h.ctx
}

// Start transitions a plugin to Running. Starting a running plugin is a
// warned no-op. A fresh lifecycle context clears any prior cancellation.
func (r *Registry) Start(name string) error {
	r.mu.Lock()
	h, ok := r.plugins[strings.ToLower(name)]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("plugin %q not loaded", name)
	}
	if h.state == StateRunning {
		r.mu.Unlock()
		r.logger.Warn("plugin already running", "plugin", name)
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.ctx, h.cancel = ctx, cancel
	h.state = StateRunning
	plugin := h.plugin
	r.mu.Unlock()

	if starter, ok := plugin.(Starter); ok {
		if err := starter.Start(ctx); err != nil {
			r.mu.Lock()
			h.state = StateStopped
			h.cancel()
			r.mu.Unlock()
			return fmt.Errorf("plugin %q failed to start: %w", name, err)
		}
	}
	r.logger.Info("plugin started", "plugin", name)
	return nil
}

// Stop transitions a plugin to Stopped and cancels its lifecycle context.
// Stopping a stopped plugin is a warned no-op.
func (r *Registry) Stop(name string) error {
	r.mu.Lock()
	h, ok := r.plugins[strings.ToLower(name)]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("plugin %q not loaded", name)
	}
	if h.state == StateStopped {
		r.mu.Unlock()
		r.logger.Warn("plugin already stopped", "plugin", name)
		return nil
	}
	h.state = StateStopped
	if h.cancel != nil {
		h.cancel()
	}
	plugin := h.plugin
	r.mu.Unlock()

	if stopper, ok := plugin.(Stopper); ok {
		if err := stopper.Stop(); err != nil {
			return fmt.Errorf("plugin %q failed to stop: %w", name, err)
		}
	}
	r.logger.Info("plugin stopped", "plugin", name)
	return nil
}

// Restart stops then starts a plugin. A stop that succeeded followed by a
// failed start is reported distinctly from a failed stop.
func (r *Registry) Restart(name string) error {
	if err := r.Stop(name); err != nil {
		return fmt.Errorf("restart %q: stop failed: %w", name, err)
	}
	if err := r.Start(name); err != nil {
		return fmt.Errorf("restart %q: stopped but start failed: %w", name, err)
	}
	return nil
}

// Plugins lists loaded plugin names with their states.
func (r *Registry) Plugins() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.plugins))
	for name, h := range r.plugins {
		out[name] = h.state
	}
	return out
}

// Commands lists registered command names, sorted.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.commands))
	for name := range r.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

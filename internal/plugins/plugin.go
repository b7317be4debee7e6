// Package plugins manages handler units: their command registrations,
// declared parameter grammars, and running/stopped lifecycle.
package plugins

import (
	"context"

	"github.com/voxbotio/voxbot/internal/commands"
	"github.com/voxbotio/voxbot/internal/routing"
)

// Handler executes one command invocation. The context is the owning
// plugin's lifecycle context; it is cancelled when the plugin stops, and
// long-running handlers are expected to poll it.
type Handler func(ctx context.Context, inv *Invocation)

// Resolver converts one raw parameter token into a typed value. Failures
// are reported to the issuer by queueing a message on out and returning
// nil; they are not compile errors.
type Resolver func(out *routing.Output, cmd *commands.Command, raw string) any

// Invocation carries everything a handler needs for one execution.
type Invocation struct {
	// Command is the invocation being executed.
	Command *commands.Command

	// Resolved maps parameter names to resolver-produced values.
	// Routing keywords are never present.
	Resolved map[string]any

	// Out is the per-invocation output queue. Messages queued here are
	// drained to the invocation's routing destinations after the handler
	// returns.
	Out *routing.Output
}

// Spec declares one command at plugin load time. Specs are read once
// during registration; the registry's descriptors are immutable afterward.
type Spec struct {
	// Name is the command name.
	Name string

	// Handler executes the command.
	Handler Handler

	// Parameters are the declared business parameter names.
	Parameters []string

	// Exclusive is the subset of Parameters of which at most one may be
	// supplied per invocation.
	Exclusive []string

	// RequiresParams rejects invocations that supply no parameters.
	RequiresParams bool

	// Resolvers maps parameter names to their resolver functions. A
	// declared parameter without a resolver keeps its raw token value.
	Resolvers map[string]Resolver
}

// Plugin is a loadable handler unit.
type Plugin interface {
	// Name identifies the plugin.
	Name() string

	// Commands returns the plugin's command specs. Called once at load.
	Commands() []Spec
}

// Starter is implemented by plugins with startup work. Start receives the
// plugin's lifecycle context.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by plugins with shutdown work.
type Stopper interface {
	Stop() error
}

// Descriptor is the immutable registered grammar for one command.
type Descriptor struct {
	Command        string
	Plugin         string
	Handler        Handler
	Parameters     map[string]struct{}
	Exclusive      map[string]struct{}
	RequiresParams bool

	resolvers map[string]Resolver
}

// Declared reports whether name is a declared business parameter.
func (d *Descriptor) Declared(name string) bool {
	_, ok := d.Parameters[name]
	return ok
}

// Resolver returns the resolver registered for a parameter, if any.
func (d *Descriptor) Resolver(param string) (Resolver, bool) {
	r, ok := d.resolvers[param]
	return r, ok
}

// Package params validates and extracts command parameters against a
// registered grammar before a handler runs.
package params

import (
	"log/slog"
	"strings"

	"github.com/voxbotio/voxbot/internal/commands"
	"github.com/voxbotio/voxbot/internal/plugins"
	"github.com/voxbotio/voxbot/internal/routing"
)

// Status is the outcome of a compilation.
type Status int

const (
	StatusOK Status = iota
	StatusFailed
)

// Reason explains a failed compilation.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonCommandExclusive
	ReasonCommandDisabled
	ReasonParameterDisabled
	ReasonParameterInvalid
)

func (r Reason) String() string {
	switch r {
	case ReasonCommandExclusive:
		return "command_exclusive"
	case ReasonCommandDisabled:
		return "command_disabled"
	case ReasonParameterDisabled:
		return "parameter_disabled"
	case ReasonParameterInvalid:
		return "parameter_invalid"
	default:
		return "none"
	}
}

// Result is the transient outcome of one compilation call.
type Result struct {
	Status    Status
	Reason    Reason
	Offending []string

	// Resolved maps parameter names to resolver values. Routing keywords
	// are excluded. Valueless parameters resolve to true.
	Resolved map[string]any

	// Directives are the routing destinations extracted from the
	// invocation, reused to drain handler output after execution.
	Directives routing.Directives
}

// Compiler runs the per-command parameter validation state machine and
// flushes queued output to its routing destinations.
type Compiler struct {
	meta   plugins.MetadataSource
	router *routing.Router
	logger *slog.Logger
}

// NewCompiler creates a compiler over the given metadata source and router.
func NewCompiler(meta plugins.MetadataSource, router *routing.Router, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		meta:   meta,
		router: router,
		logger: logger.With("component", "params"),
	}
}

// Compile validates cmd against desc in strict order: disabled command,
// exclusivity conflict, then per-parameter disabled/undeclared checks and
// resolver execution, and finally the routing drain of out. The first
// failing check short-circuits; output queued so far (resolver warnings)
// still drains back to the issuer.
func (c *Compiler) Compile(desc *plugins.Descriptor, cmd *commands.Command, out *routing.Output) Result {
	// Metadata is consulted again here even though registration already
	// filtered: it can be hot-reloaded between invocations.
	md := c.meta.Metadata(desc.Plugin)
	if md.CommandDisabled(desc.Command) {
		return c.fail(cmd, out, ReasonCommandDisabled, []string{desc.Command})
	}

	if offending := exclusiveConflicts(desc, cmd.Parameters); len(offending) > 1 {
		return c.fail(cmd, out, ReasonCommandExclusive, offending)
	}

	resolved := make(map[string]any)
	for _, tok := range cmd.Parameters {
		name, value, hasValue := strings.Cut(tok, "=")
		name = strings.ToLower(name)
		if routing.IsReserved(name) {
			continue
		}
		if md.ParameterDisabled(desc.Command, name) {
			return c.fail(cmd, out, ReasonParameterDisabled, []string{name})
		}
		if !desc.Declared(name) {
			return c.fail(cmd, out, ReasonParameterInvalid, []string{name})
		}
		if resolver, ok := desc.Resolver(name); ok {
			resolved[name] = resolver(out, cmd, tok)
			continue
		}
		if hasValue {
			resolved[name] = value
		} else {
			resolved[name] = true
		}
	}

	directives := routing.ParseDirectives(cmd.Parameters, cmd, out)
	c.router.Drain(out, directives)

	return Result{
		Status:     StatusOK,
		Reason:     ReasonNone,
		Resolved:   resolved,
		Directives: directives,
	}
}

// fail drains any queued resolver output back to the issuer before
// reporting the failure.
func (c *Compiler) fail(cmd *commands.Command, out *routing.Output, reason Reason, offending []string) Result {
	if out.Len() > 0 {
		c.router.Drain(out, routing.Directives{Me: true})
	}
	c.logger.Debug("parameter compilation failed",
		"command", cmd.Name, "reason", reason.String(), "offending", offending)
	return Result{Status: StatusFailed, Reason: reason, Offending: offending}
}

// exclusiveConflicts returns the distinct supplied parameter names that
// belong to the descriptor's exclusive set, ignoring routing keywords.
// A repeated token counts once; exclusivity is between different
// parameters, not duplicates of one.
func exclusiveConflicts(desc *plugins.Descriptor, tokens []string) []string {
	var offending []string
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		name, _, _ := strings.Cut(tok, "=")
		name = strings.ToLower(name)
		if routing.IsReserved(name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := desc.Exclusive[name]; ok {
			offending = append(offending, name)
		}
	}
	return offending
}

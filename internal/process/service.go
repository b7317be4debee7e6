// Package process orchestrates the command pipeline: parse, alias
// resolution, queueing, authorization, parameter compilation, redacted
// logging, history, and handler dispatch.
package process

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voxbotio/voxbot/internal/commands"
	"github.com/voxbotio/voxbot/internal/gate"
	"github.com/voxbotio/voxbot/internal/history"
	"github.com/voxbotio/voxbot/internal/observability"
	"github.com/voxbotio/voxbot/internal/params"
	"github.com/voxbotio/voxbot/internal/plugins"
	"github.com/voxbotio/voxbot/internal/queue"
	"github.com/voxbotio/voxbot/internal/routing"
	"github.com/voxbotio/voxbot/internal/storage"
	"github.com/voxbotio/voxbot/internal/transport"
)

// Deps are the explicitly constructed collaborators of the Service. No
// global singletons; everything is injected.
type Deps struct {
	Parser   *commands.Parser
	Store    storage.Store
	Registry *plugins.Registry
	Meta     plugins.MetadataSource
	Conn     transport.Connection
	Sinks    *observability.Sinks
	Metrics  *observability.Metrics

	// QueueCapacity bounds the pending-command queue.
	QueueCapacity int

	// HistoryLimit bounds the executed-command history.
	HistoryLimit int
}

// Service is the command processing orchestrator.
//
// The pending queue and history are mutated only by the goroutine calling
// ProcessText; concurrent transport events must be serialized externally,
// which Serve provides.
type Service struct {
	parser   *commands.Parser
	store    storage.Store
	registry *plugins.Registry
	conn     transport.Connection
	perm     *gate.PermissionGate
	alias    *gate.AliasGate
	compiler *params.Compiler
	router   *routing.Router
	pending  *queue.Bounded[*commands.Command]
	hist     *history.History
	sinks    *observability.Sinks
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewService wires the pipeline. All Deps fields except Metrics are
// required.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.Parser == nil:
		return nil, fmt.Errorf("parser is required")
	case d.Store == nil:
		return nil, fmt.Errorf("store is required")
	case d.Registry == nil:
		return nil, fmt.Errorf("registry is required")
	case d.Conn == nil:
		return nil, fmt.Errorf("connection is required")
	case d.Sinks == nil:
		return nil, fmt.Errorf("log sinks are required")
	}
	if d.Meta == nil {
		d.Meta = plugins.NewMetadataStore(nil)
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewMetrics(nil)
	}
	if d.QueueCapacity < 1 {
		d.QueueCapacity = 32
	}
	if d.HistoryLimit < 1 {
		d.HistoryLimit = 100
	}

	logger := d.Sinks.Console.With("component", "process")
	router := routing.NewRouter(d.Conn, d.Sinks.Console)
	s := &Service{
		parser:   d.Parser,
		store:    d.Store,
		registry: d.Registry,
		conn:     d.Conn,
		perm:     gate.NewPermissionGate(d.Store, d.Sinks.Console),
		compiler: params.NewCompiler(d.Meta, router, d.Sinks.Console),
		router:   router,
		pending:  queue.NewBounded[*commands.Command](d.QueueCapacity),
		hist:     history.New(d.HistoryLimit),
		sinks:    d.Sinks,
		metrics:  d.Metrics,
		logger:   logger,
	}
	s.alias = gate.NewAliasGate(
		d.Store,
		d.Parser,
		func(name string) bool {
			_, ok := d.Registry.Lookup(name)
			return ok
		},
		s.enqueue,
		func(ctx context.Context) error {
			s.metrics.AliasExpansions.Inc()
			return s.drainQueue(ctx)
		},
		d.Sinks.Console,
	)
	return s, nil
}

// History exposes the executed-command history (read by the core plugin).
func (s *Service) History() *history.History {
	return s.hist
}

// Serve consumes text events from a single channel until it closes or ctx
// is cancelled, providing the required external serialization of
// ProcessText calls. Processing errors are logged and do not stop the loop.
func (s *Service) Serve(ctx context.Context, events <-chan commands.TextEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := s.ProcessText(ctx, &evt); err != nil {
				s.logger.Error("event processing failed", "error", err)
			}
		}
	}
}

// ProcessText runs one raw text event through the pipeline. A nil event is
// a processing error; a plain chat line (no command) is not.
func (s *Service) ProcessText(ctx context.Context, evt *commands.TextEvent) error {
	if evt == nil {
		return procErrf("input", "nil text event")
	}

	cmd := s.parser.Parse(*evt)
	if cmd == nil || cmd.Name == "" {
		return nil
	}

	if err := s.alias.Resolve(ctx, cmd, *evt); err != nil {
		return procErr("alias", err)
	}
	return s.drainQueue(ctx)
}

func (s *Service) enqueue(cmd *commands.Command) bool {
	if !s.pending.Enqueue(cmd) {
		s.metrics.QueueDropped.Inc()
		return false
	}
	return true
}

// drainQueue processes exactly as many items as were pending at entry.
// Generic alias expansion triggers a nested drain that completes before
// the outer iteration advances; the snapshot length keeps items enqueued
// mid-drain by other events from extending this pass. An aborting error
// discards the rest of the snapshot so a later event does not silently
// pick up stale siblings.
func (s *Service) drainQueue(ctx context.Context) error {
	n := s.pending.Len()
	for i := 0; i < n; i++ {
		cmd, ok := s.pending.Dequeue()
		if !ok {
			return nil
		}
		if err := s.dispatch(ctx, cmd); err != nil {
			if dropped := s.discardPending(n - i - 1); dropped > 0 {
				s.logger.Warn("discarding queued commands after processing error",
					"dropped", dropped, "error", err)
			}
			return err
		}
	}
	return nil
}

func (s *Service) discardPending(limit int) int {
	dropped := 0
	for ; dropped < limit; dropped++ {
		if _, ok := s.pending.Dequeue(); !ok {
			break
		}
	}
	return dropped
}

// dispatch runs one queued command through authorization, compilation,
// logging, history, and handler execution.
func (s *Service) dispatch(ctx context.Context, cmd *commands.Command) error {
	id := uuid.NewString()

	actor, ok := s.conn.UserBySession(cmd.Actor)
	if !ok {
		s.metrics.CommandsProcessed.WithLabelValues("error").Inc()
		return procErrf("actor", "no connected user for session %d", cmd.Actor)
	}

	allowed, rec, err := s.perm.Authorize(ctx, actor.Name(), cmd.Name)
	if err != nil {
		s.metrics.CommandsProcessed.WithLabelValues("error").Inc()
		return procErr("authorize", err)
	}
	if !allowed {
		s.router.WarnIssuer(cmd, fmt.Sprintf("you are not permitted to use '%s'", cmd.Name))
		s.metrics.CommandsProcessed.WithLabelValues("denied").Inc()
		return nil
	}

	desc, ok := s.registry.Lookup(cmd.Name)
	if !ok {
		s.metrics.CommandsProcessed.WithLabelValues("error").Inc()
		return procErrf("registry", "command %q persisted as %q but not registered", cmd.Name, rec.Plugin)
	}

	if state, _ := s.registry.PluginState(desc.Plugin); state != plugins.StateRunning {
		s.router.WarnIssuer(cmd, fmt.Sprintf("plugin '%s' is not running", desc.Plugin))
		s.metrics.CommandsProcessed.WithLabelValues("plugin_stopped").Inc()
		return nil
	}

	if usage := s.fastReject(desc, cmd); usage != "" {
		s.router.WarnIssuer(cmd, usage)
		s.metrics.CommandsProcessed.WithLabelValues("usage").Inc()
		return nil
	}

	out := routing.NewOutput()
	res := s.compiler.Compile(desc, cmd, out)
	if res.Status == params.StatusFailed {
		s.router.WarnIssuer(cmd, failureMessage(res))
		s.metrics.CompileFailures.WithLabelValues(res.Reason.String()).Inc()
		s.metrics.CommandsProcessed.WithLabelValues("compile_failed").Inc()
		return nil
	}

	s.logExecution(id, cmd, actor.Name())

	if !s.hist.Add(cmd) {
		s.metrics.HistoryDropped.Inc()
		s.logger.Warn("command history full", "command", cmd.Name)
	}

	s.invoke(desc, cmd, res, out)
	s.metrics.CommandsProcessed.WithLabelValues("ok").Inc()
	return nil
}

// fastReject returns a usage message when required parameters are absent
// or a supplied parameter (routing keywords aside) is undeclared.
func (s *Service) fastReject(desc *plugins.Descriptor, cmd *commands.Command) string {
	business := 0
	for _, tok := range cmd.Parameters {
		name, _, _ := strings.Cut(tok, "=")
		name = strings.ToLower(name)
		if routing.IsReserved(name) {
			continue
		}
		business++
		if !desc.Declared(name) {
			return fmt.Sprintf("usage: '%s' does not accept parameter '%s'", cmd.Name, name)
		}
	}
	if desc.RequiresParams && business == 0 {
		return fmt.Sprintf("usage: '%s' requires parameters", cmd.Name)
	}
	return ""
}

// invoke runs the handler on its own goroutine and joins it before
// returning, so queued commands execute one at a time. A panicking
// handler is recovered there; it costs the invocation, never the loop.
// Handler output queued during execution drains to the invocation's
// routing destinations.
func (s *Service) invoke(desc *plugins.Descriptor, cmd *commands.Command, res params.Result, out *routing.Output) {
	inv := &plugins.Invocation{
		Command:  cmd,
		Resolved: res.Resolved,
		Out:      out,
	}
	pluginCtx := s.registry.Context(desc.Plugin)

	start := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("handler panicked",
					"plugin", desc.Plugin, "command", desc.Command, "panic", r)
				s.router.WarnIssuer(cmd, fmt.Sprintf("command '%s' failed unexpectedly", cmd.Name))
			}
		}()
		desc.Handler(pluginCtx, inv)
	}()
	<-done
	s.metrics.HandlerDuration.WithLabelValues(desc.Plugin, desc.Command).
		Observe(time.Since(start).Seconds())

	s.router.Drain(out, res.Directives)
}

// logExecution writes independently redacted projections of the command
// to the console and file sinks.
func (s *Service) logExecution(id string, cmd *commands.Command, actorName string) {
	channelName := ""
	if ch, ok := s.conn.ChannelByID(cmd.ChannelID); ok {
		channelName = ch.Name()
	}
	entry := observability.CommandLog{
		Command:    cmd.Name,
		Parameters: append([]string(nil), cmd.Parameters...),
		Actor:      actorName,
		Channel:    channelName,
		Message:    observability.Sanitize(cmd.Message),
	}

	console := entry.Redact(s.sinks.ConsoleRedact)
	s.sinks.Console.Info("command executed",
		append([]any{"invocation", id}, console.Attrs()...)...)

	if s.sinks.File != nil {
		file := entry.Redact(s.sinks.FileRedact)
		s.sinks.File.Info("command executed",
			append([]any{"invocation", id}, file.Attrs()...)...)
	}
}

func failureMessage(res params.Result) string {
	offending := strings.Join(res.Offending, ", ")
	switch res.Reason {
	case params.ReasonCommandDisabled:
		return fmt.Sprintf("command '%s' is disabled", offending)
	case params.ReasonCommandExclusive:
		return fmt.Sprintf("parameters are mutually exclusive: %s", offending)
	case params.ReasonParameterDisabled:
		return fmt.Sprintf("parameter is disabled: %s", offending)
	case params.ReasonParameterInvalid:
		return fmt.Sprintf("unknown parameter: %s", offending)
	default:
		return "command rejected"
	}
}

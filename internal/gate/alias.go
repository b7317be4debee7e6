package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxbotio/voxbot/internal/commands"
	"github.com/voxbotio/voxbot/internal/storage"
)

// AliasGate rewrites incoming command names through persisted alias
// records before they are queued for processing.
//
// Resolution is deliberately single-level: a non-generic alias target must
// be a concrete registered command, never another alias. An alias chaining
// to another alias fails the registered-command check and is dropped with
// a warning.
type AliasGate struct {
	store      storage.Store
	parser     *commands.Parser
	registered func(name string) bool
	enqueue    func(cmd *commands.Command) bool
	drain      func(ctx context.Context) error
	logger     *slog.Logger
}

// NewAliasGate creates the gate. registered reports whether a command name
// exists in the runtime registry; enqueue adds a ready command to the
// shared pending queue; drain triggers an immediate nested processing pass
// (used by generic alias expansion).
func NewAliasGate(
	store storage.Store,
	parser *commands.Parser,
	registered func(name string) bool,
	enqueue func(cmd *commands.Command) bool,
	drain func(ctx context.Context) error,
	logger *slog.Logger,
) *AliasGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &AliasGate{
		store:      store,
		parser:     parser,
		registered: registered,
		enqueue:    enqueue,
		drain:      drain,
		logger:     logger.With("component", "alias"),
	}
}

// Resolve routes a parsed command through alias resolution, enqueueing
// zero or more ready commands. evt is the original transport event, reused
// by generic expansion to re-parse sub-command lines.
func (g *AliasGate) Resolve(ctx context.Context, cmd *commands.Command, evt commands.TextEvent) error {
	alias, err := g.store.AliasByName(ctx, cmd.Name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Not an alias; assume a directly-registered command.
			g.enqueueOrWarn(cmd)
			return nil
		}
		return fmt.Errorf("alias lookup %q: %w", cmd.Name, err)
	}

	if alias.IsGeneric {
		return g.expandGeneric(ctx, alias, evt)
	}

	if !g.registered(alias.Command) {
		g.logger.Warn("alias target not registered",
			"alias", alias.Name, "target", alias.Command)
		return nil
	}
	rewritten := cmd.Clone()
	rewritten.Name = strings.ToLower(alias.Command)
	g.enqueueOrWarn(rewritten)
	return nil
}

// expandGeneric splits the alias's stored command string into literal
// sub-command lines, re-parses each against a copy of the original event,
// and drains the queue immediately rather than waiting for the outer loop.
func (g *AliasGate) expandGeneric(ctx context.Context, alias *storage.Alias, evt commands.TextEvent) error {
	for _, line := range strings.Split(alias.Command, "|") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, g.parser.Prefix()) {
			line = g.parser.Prefix() + line
		}
		sub := g.parser.Parse(evt.WithMessage(line))
		if sub == nil || sub.Name == "" {
			g.logger.Warn("skipping unparseable alias line",
				"alias", alias.Name, "line", line)
			continue
		}
		g.enqueueOrWarn(sub)
	}
	return g.drain(ctx)
}

func (g *AliasGate) enqueueOrWarn(cmd *commands.Command) {
	if !g.enqueue(cmd) {
		g.logger.Warn("command queue full, dropping command", "command", cmd.Name)
	}
}

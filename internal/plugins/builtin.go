package plugins

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/voxbotio/voxbot/internal/commands"
	"github.com/voxbotio/voxbot/internal/history"
	"github.com/voxbotio/voxbot/internal/routing"
	"github.com/voxbotio/voxbot/internal/storage"
	"github.com/voxbotio/voxbot/internal/transport"
)

// CorePlugin provides the bot's baseline commands: echo, history, status,
// and version.
type CorePlugin struct {
	hist    *history.History
	version string
	states  func() map[string]State
}

// NewCorePlugin wires the core plugin. The states callback reports plugin
// lifecycle states for the status command.
func NewCorePlugin(hist *history.History, version string, states func() map[string]State) *CorePlugin {
	return &CorePlugin{hist: hist, version: version, states: states}
}

func (p *CorePlugin) Name() string { return "core" }

const defaultHistoryCount = 5

func (p *CorePlugin) Commands() []Spec {
	return []Spec{
		{
			Name:    "echo",
			Handler: p.echo,
		},
		{
			Name:           "history",
			Handler:        p.history,
			Parameters:     []string{"count", "clear"},
			Exclusive:      []string{"count", "clear"},
			RequiresParams: false,
			Resolvers: map[string]Resolver{
				"count": resolveCount,
			},
		},
		{
			Name:    "status",
			Handler: p.status,
		},
		{
			Name:    "version",
			Handler: p.versionCmd,
		},
	}
}

func (p *CorePlugin) echo(ctx context.Context, inv *Invocation) {
	msg := strings.TrimSpace(inv.Command.Message)
	if msg == "" {
		msg = "nothing to echo"
	}
	inv.Out.Queue(msg, inv.Command)
}

func (p *CorePlugin) history(ctx context.Context, inv *Invocation) {
	if _, clear := inv.Resolved["clear"]; clear {
		p.hist.Clear()
		inv.Out.Queue("command history cleared", inv.Command)
		return
	}
	n := defaultHistoryCount
	if v, ok := inv.Resolved["count"].(int); ok {
		n = v
	}
	entries := p.hist.LastN(n)
	if len(entries) == 0 {
		inv.Out.Queue("command history is empty", inv.Command)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "last %d command(s):", len(entries))
	for i, e := range entries {
		fmt.Fprintf(&b, " [%d] %s", i+1, e.Name)
	}
	inv.Out.Queue(b.String(), inv.Command)
}

func (p *CorePlugin) status(ctx context.Context, inv *Invocation) {
	states := p.states()
	if len(states) == 0 {
		inv.Out.Queue("no plugins loaded", inv.Command)
		return
	}
	parts := make([]string, 0, len(states))
	for name, state := range states {
		parts = append(parts, fmt.Sprintf("%s:%s", name, state))
	}
	inv.Out.Queue("plugins: "+strings.Join(parts, " "), inv.Command)
}

func (p *CorePlugin) versionCmd(ctx context.Context, inv *Invocation) {
	inv.Out.Queue("voxbot "+p.version, inv.Command)
}

// resolveCount parses a strictly positive entry count. Failures are
// reported to the issuer, not to the compiler.
func resolveCount(out *routing.Output, cmd *commands.Command, raw string) any {
	_, value, _ := strings.Cut(raw, "=")
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 {
		out.Queue("invalid count value: "+value, cmd)
		return nil
	}
	return n
}

// AccessPlugin exposes permission-model introspection.
type AccessPlugin struct {
	store storage.Store
	conn  transport.Connection
}

// NewAccessPlugin wires the access plugin.
func NewAccessPlugin(store storage.Store, conn transport.Connection) *AccessPlugin {
	return &AccessPlugin{store: store, conn: conn}
}

func (p *AccessPlugin) Name() string { return "access" }

func (p *AccessPlugin) Commands() []Spec {
	return []Spec{
		{
			Name:    "whoami",
			Handler: p.whoami,
		},
	}
}

func (p *AccessPlugin) whoami(ctx context.Context, inv *Invocation) {
	u, ok := p.conn.UserBySession(inv.Command.Actor)
	if !ok {
		inv.Out.Queue("could not resolve your user handle", inv.Command)
		return
	}
	rec, err := p.store.UserByName(ctx, u.Name())
	if err != nil {
		inv.Out.Queue("no stored permission record for "+u.Name(), inv.Command)
		return
	}
	if len(rec.Groups) == 0 {
		inv.Out.Queue(u.Name()+" belongs to no permission groups", inv.Command)
		return
	}
	inv.Out.Queue(u.Name()+" belongs to: "+strings.Join(rec.Groups, ", "), inv.Command)
}

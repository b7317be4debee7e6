// Package gate decides whether a parsed command may run: alias rewriting
// first, then permission-group authorization.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxbotio/voxbot/internal/storage"
)

// PermissionGate authorizes command execution by intersecting the actor's
// permission groups with the registered command's groups. Records are
// fetched fresh on every check; group membership can change between
// commands, so nothing is cached.
type PermissionGate struct {
	store  storage.Store
	logger *slog.Logger
}

// NewPermissionGate creates a gate over the given store.
func NewPermissionGate(store storage.Store, logger *slog.Logger) *PermissionGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionGate{
		store:  store,
		logger: logger.With("component", "gate"),
	}
}

// Authorize reports whether userName may invoke commandName, returning the
// fetched command record for downstream use. A missing user or command
// record is an error (a hard processing failure), distinct from an
// authorization denial.
func (g *PermissionGate) Authorize(ctx context.Context, userName, commandName string) (bool, *storage.CommandRecord, error) {
	user, err := g.store.UserByName(ctx, userName)
	if err != nil {
		return false, nil, fmt.Errorf("user record %q: %w", userName, err)
	}
	rec, err := g.store.CommandByName(ctx, commandName)
	if err != nil {
		return false, nil, fmt.Errorf("command record %q: %w", commandName, err)
	}

	if !intersects(user.Groups, rec.Groups) {
		g.logger.Warn("authorization denied",
			"user", userName, "command", commandName,
			"user_groups", user.Groups, "command_groups", rec.Groups)
		return false, rec, nil
	}
	return true, rec, nil
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, g := range a {
		set[strings.ToLower(g)] = struct{}{}
	}
	for _, g := range b {
		if _, ok := set[strings.ToLower(g)]; ok {
			return true
		}
	}
	return false
}

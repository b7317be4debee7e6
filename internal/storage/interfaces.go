// Package storage persists the permission model: users, permission groups,
// registered commands, aliases, and plugins. All lookups are by natural key
// (name); callers see only the query/upsert contracts defined here.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
)

// User is a known voice-server user and its permission-group memberships.
type User struct {
	Name   string
	Groups []string
}

// CommandRecord is a registered command, the plugin that owns it, and the
// permission groups allowed to invoke it.
type CommandRecord struct {
	Name   string
	Plugin string
	Groups []string
}

// Alias rewrites an invoked name. A generic alias's Command field is a
// `|`-delimited sequence of literal command lines to re-parse; a
// non-generic alias's Command field names a single registered command.
type Alias struct {
	Name      string
	Command   string
	IsGeneric bool
	Groups    []string
}

// PluginRecord tracks a loaded plugin and the commands it registered.
type PluginRecord struct {
	Name     string
	Commands []string
}

// Store is the persistence contract consumed by the command pipeline.
// Reads are performed fresh per permission check; implementations run each
// call in a short-lived request-scoped transaction and roll back on error.
type Store interface {
	UserByName(ctx context.Context, name string) (*User, error)
	UpsertUser(ctx context.Context, u *User) error

	CommandByName(ctx context.Context, name string) (*CommandRecord, error)
	UpsertCommand(ctx context.Context, c *CommandRecord) error

	AliasByName(ctx context.Context, name string) (*Alias, error)
	UpsertAlias(ctx context.Context, a *Alias) error
	DeleteAlias(ctx context.Context, name string) error

	PluginByName(ctx context.Context, name string) (*PluginRecord, error)
	UpsertPlugin(ctx context.Context, p *PluginRecord) error

	EnsureGroup(ctx context.Context, name string) error
	Groups(ctx context.Context) ([]string, error)

	Close() error
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and initializes
// the schema. An empty path opens an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreFromDB wraps an existing database handle. Used by tests
// that substitute a mock driver.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (name TEXT PRIMARY KEY)`,
		`CREATE TABLE IF NOT EXISTS permission_groups (name TEXT PRIMARY KEY)`,
		`CREATE TABLE IF NOT EXISTS user_groups (
			user_name TEXT NOT NULL,
			group_name TEXT NOT NULL,
			PRIMARY KEY (user_name, group_name)
		)`,
		`CREATE TABLE IF NOT EXISTS plugins (name TEXT PRIMARY KEY)`,
		`CREATE TABLE IF NOT EXISTS commands (
			name TEXT PRIMARY KEY,
			plugin_name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS command_groups (
			command_name TEXT NOT NULL,
			group_name TEXT NOT NULL,
			PRIMARY KEY (command_name, group_name)
		)`,
		`CREATE TABLE IF NOT EXISTS aliases (
			name TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			is_generic INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS alias_groups (
			alias_name TEXT NOT NULL,
			group_name TEXT NOT NULL,
			PRIMARY KEY (alias_name, group_name)
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// withTx runs fn in a request-scoped transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func queryGroups(ctx context.Context, tx *sql.Tx, table, column, name string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf("SELECT group_name FROM %s WHERE %s = ? ORDER BY group_name", table, column), name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func replaceGroups(ctx context.Context, tx *sql.Tx, table, column, name string, groups []string) error {
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, column), name); err != nil {
		return err
	}
	for _, g := range groups {
		g = key(g)
		if g == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO permission_groups (name) VALUES (?)", g); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT OR IGNORE INTO %s (%s, group_name) VALUES (?, ?)", table, column), name, g); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) UserByName(ctx context.Context, name string) (*User, error) {
	var u *User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT name FROM users WHERE name = ?", key(name))
		var n string
		if err := row.Scan(&n); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		groups, err := queryGroups(ctx, tx, "user_groups", "user_name", n)
		if err != nil {
			return err
		}
		u = &User{Name: n, Groups: groups}
		return nil
	})
	return u, err
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, u *User) error {
	if u == nil || key(u.Name) == "" {
		return fmt.Errorf("user name is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		name := key(u.Name)
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO users (name) VALUES (?)", name); err != nil {
			return err
		}
		return replaceGroups(ctx, tx, "user_groups", "user_name", name, u.Groups)
	})
}

func (s *SQLiteStore) CommandByName(ctx context.Context, name string) (*CommandRecord, error) {
	var c *CommandRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT name, plugin_name FROM commands WHERE name = ?", key(name))
		var n, plugin string
		if err := row.Scan(&n, &plugin); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		groups, err := queryGroups(ctx, tx, "command_groups", "command_name", n)
		if err != nil {
			return err
		}
		c = &CommandRecord{Name: n, Plugin: plugin, Groups: groups}
		return nil
	})
	return c, err
}

func (s *SQLiteStore) UpsertCommand(ctx context.Context, c *CommandRecord) error {
	if c == nil || key(c.Name) == "" {
		return fmt.Errorf("command name is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		name := key(c.Name)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO commands (name, plugin_name) VALUES (?, ?) "+
				"ON CONFLICT(name) DO UPDATE SET plugin_name = excluded.plugin_name",
			name, key(c.Plugin)); err != nil {
			return err
		}
		return replaceGroups(ctx, tx, "command_groups", "command_name", name, c.Groups)
	})
}

func (s *SQLiteStore) AliasByName(ctx context.Context, name string) (*Alias, error) {
	var a *Alias
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT name, command, is_generic FROM aliases WHERE name = ?", key(name))
		var n, target string
		var generic int
		if err := row.Scan(&n, &target, &generic); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		groups, err := queryGroups(ctx, tx, "alias_groups", "alias_name", n)
		if err != nil {
			return err
		}
		a = &Alias{Name: n, Command: target, IsGeneric: generic != 0, Groups: groups}
		return nil
	})
	return a, err
}

func (s *SQLiteStore) UpsertAlias(ctx context.Context, a *Alias) error {
	if a == nil || key(a.Name) == "" {
		return fmt.Errorf("alias name is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		name := key(a.Name)
		generic := 0
		if a.IsGeneric {
			generic = 1
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO aliases (name, command, is_generic) VALUES (?, ?, ?) "+
				"ON CONFLICT(name) DO UPDATE SET command = excluded.command, is_generic = excluded.is_generic",
			name, a.Command, generic); err != nil {
			return err
		}
		return replaceGroups(ctx, tx, "alias_groups", "alias_name", name, a.Groups)
	})
}

func (s *SQLiteStore) DeleteAlias(ctx context.Context, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM aliases WHERE name = ?", key(name))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM alias_groups WHERE alias_name = ?", key(name))
		return err
	})
}

func (s *SQLiteStore) PluginByName(ctx context.Context, name string) (*PluginRecord, error) {
	var p *PluginRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT name FROM plugins WHERE name = ?", key(name))
		var n string
		if err := row.Scan(&n); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		rows, err := tx.QueryContext(ctx,
			"SELECT name FROM commands WHERE plugin_name = ? ORDER BY name", n)
		if err != nil {
			return err
		}
		defer rows.Close()
		var cmds []string
		for rows.Next() {
			var c string
			if err := rows.Scan(&c); err != nil {
				return err
			}
			cmds = append(cmds, c)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		p = &PluginRecord{Name: n, Commands: cmds}
		return nil
	})
	return p, err
}

func (s *SQLiteStore) UpsertPlugin(ctx context.Context, p *PluginRecord) error {
	if p == nil || key(p.Name) == "" {
		return fmt.Errorf("plugin name is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO plugins (name) VALUES (?)", key(p.Name))
		return err
	})
}

func (s *SQLiteStore) EnsureGroup(ctx context.Context, name string) error {
	if key(name) == "" {
		return fmt.Errorf("group name is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO permission_groups (name) VALUES (?)", key(name))
		return err
	})
}

func (s *SQLiteStore) Groups(ctx context.Context) ([]string, error) {
	var groups []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT name FROM permission_groups ORDER BY name")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var g string
			if err := rows.Scan(&g); err != nil {
				return err
			}
			groups = append(groups, g)
		}
		return rows.Err()
	})
	return groups, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

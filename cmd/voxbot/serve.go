package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/voxbotio/voxbot/internal/commands"
	"github.com/voxbotio/voxbot/internal/config"
	"github.com/voxbotio/voxbot/internal/observability"
	"github.com/voxbotio/voxbot/internal/plugins"
	"github.com/voxbotio/voxbot/internal/process"
	"github.com/voxbotio/voxbot/internal/storage"
	"github.com/voxbotio/voxbot/internal/transport"
)

// buildServeCmd creates the "serve" command that runs the bot.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		operator   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot against the console transport",
		Long: `Run the bot: load configuration, open storage, register the built-in
plugins, seed their commands into the permission store, and process
command lines from standard input until EOF or SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, operator)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")
	cmd.Flags().StringVar(&operator, "operator", "operator",
		"User name assigned to the console session")
	return cmd
}

func runServe(parent context.Context, configPath, operator string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	sinks, err := observability.NewSinks(observability.SinkConfig{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		ConsoleRedact: cfg.Logging.ConsoleRedact,
		FileRedact:    cfg.Logging.FileRedact,
	})
	if err != nil {
		return err
	}
	defer sinks.Close()
	logger := sinks.Console.With("component", "serve")

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	meta, err := buildMetadata(cfg)
	if err != nil {
		return err
	}
	if cfg.Plugins.MetadataPath != "" {
		go func() {
			err := config.WatchMetadata(ctx, cfg.Plugins.MetadataPath,
				cfg.Plugins.ReloadDebounce, meta, sinks.Console)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("metadata watcher stopped", "error", err)
			}
		}()
	}

	parser, err := commands.NewParser(cfg.Bot.Prefix)
	if err != nil {
		return err
	}

	registry := plugins.NewRegistry(meta, sinks.Console)
	console := transport.NewConsole(os.Stdin, os.Stdout, operator, sinks.Console)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	if cfg.Metrics.Enabled {
		startMetricsServer(ctx, cfg.Metrics.Addr, reg, logger)
	}

	svc, err := process.NewService(process.Deps{
		Parser:        parser,
		Store:         store,
		Registry:      registry,
		Meta:          meta,
		Conn:          console,
		Sinks:         sinks,
		Metrics:       metrics,
		QueueCapacity: cfg.Bot.QueueCapacity,
		HistoryLimit:  cfg.Bot.HistoryLimit,
	})
	if err != nil {
		return err
	}

	for _, p := range []plugins.Plugin{
		plugins.NewCorePlugin(svc.History(), version, registry.Plugins),
		plugins.NewAccessPlugin(store, console),
	} {
		if err := registry.Load(p); err != nil {
			return fmt.Errorf("failed to load plugin %q: %w", p.Name(), err)
		}
	}

	if err := seedStore(ctx, store, registry, meta, operator); err != nil {
		return err
	}

	logger.Info("voxbot ready",
		"prefix", cfg.Bot.Prefix,
		"commands", registry.Commands(),
		"version", version)

	svc.Serve(ctx, console.Events(ctx))
	logger.Info("shutting down")
	return nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.Database.Path == "" {
		logger.Info("using in-memory store; state is lost on exit")
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("opened database", "path", cfg.Database.Path)
	return store, nil
}

// buildMetadata merges inline config metadata with the metadata file, the
// file winning per plugin.
func buildMetadata(cfg *config.Config) (*plugins.MetadataStore, error) {
	merged := make(map[string]plugins.Metadata, len(cfg.Metadata))
	for name, md := range cfg.Metadata {
		merged[name] = md
	}
	if cfg.Plugins.MetadataPath != "" {
		fromFile, err := config.LoadMetadata(cfg.Plugins.MetadataPath)
		if err != nil {
			return nil, err
		}
		for name, md := range fromFile {
			merged[name] = md
		}
	}
	return plugins.NewMetadataStore(merged), nil
}

// seedStore persists registered commands, plugin records, and the console
// operator so the permission gate can authorize them. Existing command
// records keep their groups; only missing ones are created with the
// plugin's default groups.
func seedStore(ctx context.Context, store storage.Store, registry *plugins.Registry, meta plugins.MetadataSource, operator string) error {
	if err := store.EnsureGroup(ctx, "default"); err != nil {
		return fmt.Errorf("failed to seed default group: %w", err)
	}

	for _, name := range registry.Commands() {
		if _, err := store.CommandByName(ctx, name); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to check command %q: %w", name, err)
		}
		desc, ok := registry.Lookup(name)
		if !ok {
			continue
		}
		groups := meta.Metadata(desc.Plugin).DefaultPermissionGroups
		if len(groups) == 0 {
			groups = []string{"default"}
		}
		for _, g := range groups {
			if err := store.EnsureGroup(ctx, g); err != nil {
				return fmt.Errorf("failed to seed group %q: %w", g, err)
			}
		}
		err := store.UpsertCommand(ctx, &storage.CommandRecord{
			Name:   name,
			Plugin: desc.Plugin,
			Groups: groups,
		})
		if err != nil {
			return fmt.Errorf("failed to seed command %q: %w", name, err)
		}
	}

	byPlugin := make(map[string][]string)
	for _, name := range registry.Commands() {
		if desc, ok := registry.Lookup(name); ok {
			byPlugin[desc.Plugin] = append(byPlugin[desc.Plugin], name)
		}
	}
	for name, cmds := range byPlugin {
		err := store.UpsertPlugin(ctx, &storage.PluginRecord{Name: name, Commands: cmds})
		if err != nil {
			return fmt.Errorf("failed to record plugin %q: %w", name, err)
		}
	}

	if _, err := store.UserByName(ctx, operator); errors.Is(err, storage.ErrNotFound) {
		err := store.UpsertUser(ctx, &storage.User{
			Name:   operator,
			Groups: []string{"default"},
		})
		if err != nil {
			return fmt.Errorf("failed to seed operator: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check operator: %w", err)
	}
	return nil
}

func startMetricsServer(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	serveradapter "github.com/hylla/lanes/internal/adapters/server"
	servercommon "github.com/hylla/lanes/internal/adapters/server/common"
	"github.com/hylla/lanes/internal/adapters/storage/sqlite"
	"github.com/hylla/lanes/internal/app"
	"github.com/hylla/lanes/internal/config"
	"github.com/hylla/lanes/internal/domain"
	"github.com/hylla/lanes/internal/fixtures"
	"github.com/hylla/lanes/internal/kanban"
	"github.com/hylla/lanes/internal/platform"
	"github.com/hylla/lanes/internal/tui"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(ctx context.Context, m tea.Model) program {
	return tea.NewProgram(m, tea.WithContext(ctx))
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		// fang already rendered the error.
		os.Exit(1)
	}
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// run builds the command tree and executes args against it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if cwd, err := os.Getwd(); err == nil {
		if _, err := config.LoadEnvFiles(cwd); err != nil {
			return fmt.Errorf("load env files: %w", err)
		}
	}

	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
}

// newRootCommand wires the lanes command tree. The bare command starts the board TUI.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{appName: "lanes"}
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("LANES_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("LANES_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	root := &cobra.Command{
		Use:   "lanes",
		Short: "Drag-and-drop kanban boards for CRM tasks, improvements and roadmap items",
		Long: `lanes renders CRM records as kanban boards whose columns are derived from
each record's status, completion flag and due date. Moving a card rewrites
the fields that put it in the destination column.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "tui", stderr, true, func(ctx context.Context, rt *runtimeEnv) error {
				return runTUI(ctx, rt)
			})
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newInitCommand(opts, stdout),
		newPathsCommand(opts, stdout),
		newServeCommand(opts, stderr),
		newItemsCommand(opts, stdout, stderr),
		newSeedCommand(opts, stdout, stderr),
		newExportCommand(opts, stdout, stderr),
		newImportCommand(opts, stderr),
	)
	return root
}

// runtimeEnv holds the resolved state one command flow runs against.
type runtimeEnv struct {
	appName string
	paths   platform.Paths
	cfg     config.Config
	logger  *runtimeLogger
	svc     *app.Service
}

// withRuntime resolves paths, config, logging and storage, runs fn, and tears everything down.
func withRuntime(ctx context.Context, opts *globalOptions, command string, stderr io.Writer, quietConsole bool, fn func(context.Context, *runtimeEnv) error) error {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
	if err != nil {
		return err
	}
	configPath, dbPath, dbOverridden := resolveConfigPaths(opts, paths)

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return fmt.Errorf("configure runtime logger: %w", err)
	}
	if quietConsole {
		// Runtime logs go to the dev file only while the board owns the terminal.
		logger.SetConsoleEnabled(false)
	}
	defer func() {
		if closeErr := logger.Close(); closeErr != nil && logger.shouldLogToSink(logger.consoleSink) {
			_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", closeErr)
		}
	}()

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		return fmt.Errorf("open sqlite repository: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Warn("sqlite close failed", "db_path", cfg.Database.Path, "err", closeErr)
		}
	}()

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		DefaultDeleteMode: app.DeleteMode(cfg.Delete.DefaultMode),
	})
	logger.Debug("application service initialized", "default_delete_mode", cfg.Delete.DefaultMode)

	rt := &runtimeEnv{
		appName: opts.appName,
		paths:   paths,
		cfg:     cfg,
		logger:  logger,
		svc:     svc,
	}
	logger.Info("command flow start", "command", command)
	if err := fn(ctx, rt); err != nil {
		logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	logger.Info("command flow complete", "command", command)
	return nil
}

// resolveConfigPaths applies flag, then env, then platform defaults.
func resolveConfigPaths(opts *globalOptions, paths platform.Paths) (configPath, dbPath string, dbOverridden bool) {
	configPath = opts.configPath
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("LANES_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath = strings.TrimSpace(opts.dbPath)
	dbOverridden = dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("LANES_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}
	return configPath, dbPath, dbOverridden
}

// runTUI starts the interactive board.
func runTUI(ctx context.Context, rt *runtimeEnv) error {
	board, err := domain.ParseBoardKind(rt.cfg.Board.Default)
	if err != nil {
		return fmt.Errorf("board.default %q: %w", rt.cfg.Board.Default, err)
	}
	resolver, err := kanban.ParseResolver(rt.cfg.Board.Collision)
	if err != nil {
		return err
	}
	m, err := tui.NewModel(rt.svc,
		tui.WithBoard(board),
		tui.WithAssignee(rt.cfg.Board.Assignee),
		tui.WithResolver(resolver),
		tui.WithActivationDistance(rt.cfg.Board.ActivationDistance),
		tui.WithToastDuration(rt.cfg.ToastDuration()),
		tui.WithLogger(rt.logger),
	)
	if err != nil {
		return fmt.Errorf("build board model: %w", err)
	}
	rt.logger.Info("starting tui program loop", "board", board, "collision", rt.cfg.Board.Collision)
	if _, err := programFactory(ctx, m).Run(); err != nil {
		rt.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

// newPathsCommand prints the resolved on-disk locations.
func newPathsCommand(opts *globalOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{
				AppName: opts.appName,
				DevMode: opts.devMode,
			})
			if err != nil {
				return err
			}
			configPath, dbPath, _ := resolveConfigPaths(opts, paths)
			_, _ = fmt.Fprintf(stdout, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", configPath)
			_, _ = fmt.Fprintf(stdout, "seed: %s\n", paths.SeedPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s\n", dbPath)
			_, _ = fmt.Fprintf(stdout, "export_dir: %s\n", paths.ExportDir)
			return nil
		},
	}
}

// newInitCommand writes a default config file.
func newInitCommand(opts *globalOptions, stdout io.Writer) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{
				AppName: opts.appName,
				DevMode: opts.devMode,
			})
			if err != nil {
				return err
			}
			configPath, dbPath, _ := resolveConfigPaths(opts, paths)
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config %s already exists (use --force to overwrite)", configPath)
			}
			if err := config.WriteFile(configPath, config.Default(dbPath)); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "wrote %s\n", configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

// newServeCommand starts the HTTP API and MCP endpoints.
func newServeCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the boards over HTTP and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "serve", stderr, false, func(ctx context.Context, rt *runtimeEnv) error {
				cfg := serveradapter.Config{
					HTTPBind:      firstNonEmpty(httpBind, rt.cfg.Server.Bind),
					APIEndpoint:   firstNonEmpty(apiEndpoint, rt.cfg.Server.APIEndpoint),
					MCPEndpoint:   firstNonEmpty(mcpEndpoint, rt.cfg.Server.MCPEndpoint),
					ServerName:    rt.appName,
					ServerVersion: version,
				}
				return serveCommandRunner(ctx, cfg, serveradapter.Dependencies{
					Boards: servercommon.NewAppServiceAdapter(rt.svc),
					Logger: rt.logger.ConsoleLogger(),
				})
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (defaults to server.bind)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint")
	return cmd
}

// newSeedCommand loads demo or file-backed fixtures into the database.
func newSeedCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create sample items from the built-in demo set or a YAML seed file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "seed", stderr, false, func(ctx context.Context, rt *runtimeEnv) error {
				now := rt.svc.Now()
				var (
					inputs []app.CreateItemInput
					err    error
				)
				if file == "" {
					if _, statErr := os.Stat(rt.paths.SeedPath); statErr == nil {
						file = rt.paths.SeedPath
					}
				}
				if file != "" {
					rt.logger.Info("loading seed file", "path", file)
					inputs, err = fixtures.LoadFile(file, now)
				} else {
					inputs, err = fixtures.Demo(now)
				}
				if err != nil {
					return err
				}
				items, err := rt.svc.SeedItems(cliContext(ctx), inputs)
				if err != nil {
					return fmt.Errorf("seed items: %w", err)
				}
				_, _ = fmt.Fprintf(stdout, "seeded %d items\n", len(items))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML seed file (defaults to seed.yaml in the config dir, then the built-in demo set)")
	return cmd
}

// newExportCommand writes a JSON snapshot of every board.
func newExportCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		outPath         string
		includeArchived bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every board as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "export", stderr, false, func(ctx context.Context, rt *runtimeEnv) error {
				return runExport(ctx, rt.svc, outPath, includeArchived, stdout)
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().BoolVar(&includeArchived, "include-archived", true, "include archived items")
	return cmd
}

// newImportCommand restores a JSON snapshot.
func newImportCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON snapshot written by export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" {
				return errors.New("--in is required")
			}
			return withRuntime(cmd.Context(), opts, "import", stderr, false, func(ctx context.Context, rt *runtimeEnv) error {
				return runImport(cliContext(ctx), rt.svc, inPath)
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// runExport encodes the snapshot to stdout or a file.
func runExport(ctx context.Context, svc *app.Service, outPath string, includeArchived bool, stdout io.Writer) error {
	snap, err := svc.ExportSnapshot(ctx, includeArchived)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// runImport decodes and restores one snapshot file.
func runImport(ctx context.Context, svc *app.Service, inPath string) error {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return fmt.Errorf("decode snapshot json: %w", err)
	}
	if err := svc.ImportSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}

// cliContext attributes CLI writes to the local operator.
func cliContext(ctx context.Context) context.Context {
	return servercommon.WithActor(ctx, "lanes-cli", domain.ActorTypeUser)
}

// firstNonEmpty returns the first non-blank value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

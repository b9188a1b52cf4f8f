package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alc6/pgtemplate/config"
)

const version = "1.0.0"

var logLevel = new(slog.LevelVar)

type cliOptions struct {
	configPath string
	repoPath   string
	verbose    bool
	mcpMode    bool
}

func main() {
	if err := run(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		logLevel.Set(slog.LevelDebug)
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:   "pgtemplate",
		Short: "Build PostgreSQL template databases from SQL files and clone them",
		Long: `pgtemplate builds a PostgreSQL template database once from a directory of SQL
files and clones it with CREATE DATABASE ... WITH TEMPLATE, which is much faster
than replaying every SQL file for each test database.

Templates are only rebuilt when a SQL file was added, removed or changed since
the last successful build. Build records are kept in <repository>/.pgtemplate.

Modes:
  command mode (default): run one of the subcommands below
  mcp mode (--mcp): Run as Model Context Protocol server`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.mcpMode {
				return nil
			}
			return cobra.NoArgs(cmd, args)
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				logLevel.Set(slog.LevelDebug)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.mcpMode {
				return cmd.Help()
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			slog.Info("starting mcp server")
			return StartMCPServer(cfg)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Path to the config file")
	rootCmd.PersistentFlags().StringVarP(&opts.repoPath, "repo", "r", "", "SQL repository directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&opts.mcpMode, "mcp", false, "Run as Model Context Protocol server")

	rootCmd.AddCommand(
		newCloneCmd(opts),
		newTemplateCmd(opts),
		newDropCmd(opts),
		newWatchCmd(opts),
	)
	return rootCmd
}

func (o *cliOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.repoPath != "" {
		cfg.Repository.Path = o.repoPath
	}
	return cfg, nil
}

// withWorkspace loads the config, opens a workspace for fn and closes it
// afterwards.
func (o *cliOptions) withWorkspace(ctx context.Context, fn func(*Workspace) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	ws, err := OpenWorkspace(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := ws.Close(); err != nil {
			slog.Error("failed to close workspace", "error", err)
		}
	}()
	return fn(ws)
}

func newCloneCmd(opts *cliOptions) *cobra.Command {
	var env string
	var force bool

	cmd := &cobra.Command{
		Use:   "clone <template> [output]",
		Short: "Rebuild the template if needed and clone it",
		Long: `clone brings the template up to date with the SQL repository, rebuilding it
only when files changed, then creates a new database from it. The name of the
new database is printed on stdout; it is generated when output is omitted.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cloneOpts := cloneOptions{
				buildOptions: buildOptions{Template: args[0], Env: env, Force: force},
			}
			if len(args) == 2 {
				cloneOpts.Output = args[1]
			}

			return opts.withWorkspace(cmd.Context(), func(ws *Workspace) error {
				output, err := cloneDatabase(cmd.Context(), ws.Discoverer, ws.Templates, ws.Clones, cloneOpts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&env, "env", "e", "", "Environment whose seed directories are included")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Rebuild the template even when it is current")
	return cmd
}

func newTemplateCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage template databases",
	}

	var env string
	var force bool
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Build a template database if its SQL files changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd.Context(), func(ws *Workspace) error {
				built, err := buildTemplate(cmd.Context(), ws.Discoverer, ws.Templates,
					buildOptions{Template: args[0], Env: env, Force: force})
				if err != nil {
					return err
				}
				if built {
					fmt.Fprintf(cmd.OutOrStdout(), "template %s built\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "template %s is current\n", args[0])
				}
				return nil
			})
		},
	}
	createCmd.Flags().StringVarP(&env, "env", "e", "", "Environment whose seed directories are included")
	createCmd.Flags().BoolVarP(&force, "force", "f", false, "Rebuild even when the template is current")

	var asJSON bool
	statusCmd := &cobra.Command{
		Use:   "status <name>",
		Short: "Show whether a template is current with its SQL files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd.Context(), func(ws *Workspace) error {
				status, err := templateStatus(cmd.Context(), ws.Templates, args[0])
				if err != nil {
					return err
				}
				if !asJSON {
					fmt.Fprint(cmd.OutOrStdout(), FormatStatus(status))
					return nil
				}
				out, err := FormatStatusJSON(status)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	statusCmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List built templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd.Context(), func(ws *Workspace) error {
				out, err := listTemplates(cmd.Context(), ws.Templates, ws.Server)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	dropCmd := &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a template database and its build record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd.Context(), func(ws *Workspace) error {
				return ws.Templates.Drop(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(createCmd, statusCmd, listCmd, dropCmd)
	return cmd
}

func newDropCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <database>",
		Short: "Drop a cloned database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd.Context(), func(ws *Workspace) error {
				return dropDatabase(cmd.Context(), ws.Templates, ws.Clones, args[0])
			})
		},
	}
}

func newWatchCmd(opts *cliOptions) *cobra.Command {
	var env string

	cmd := &cobra.Command{
		Use:   "watch <template>",
		Short: "Rebuild a template whenever its SQL files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			build := buildOptions{Template: args[0], Env: env}

			return opts.withWorkspace(cmd.Context(), func(ws *Workspace) error {
				rebuild := func(ctx context.Context) error {
					built, err := buildTemplate(ctx, ws.Discoverer, ws.Templates, build)
					if err != nil {
						return err
					}
					if built {
						fmt.Fprintf(cmd.OutOrStdout(), "template %s rebuilt\n", build.Template)
					}
					return nil
				}
				if err := rebuild(cmd.Context()); err != nil {
					return err
				}

				watcher, err := NewRepositoryWatcher(ws.Discoverer.Root(), ws.Debounce)
				if err != nil {
					return err
				}
				defer watcher.Close()

				slog.Info("watching repository", "repository", ws.Discoverer.Root(), "template", build.Template)
				return watcher.Run(cmd.Context(), rebuild)
			})
		},
	}
	cmd.Flags().StringVarP(&env, "env", "e", "", "Environment whose seed directories are included")
	return cmd
}

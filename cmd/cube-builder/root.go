package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/cube-builder/internal/config"
	"github.com/ramonehamilton/cube-builder/internal/version"
)

// cli holds the flags and the application wired for one invocation.
type cli struct {
	debug      bool
	configPath string
	dbPath     string

	stderr io.Writer
	cfg    *config.Config
	logger *slog.Logger
	app    *app
}

// run executes one command line and closes whatever it opened.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	c := &cli{stderr: stderr}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, c.teardown())
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cube-builder",
		Short: "Build a personal Magic: The Gathering cube from Scryfall",
		Long: `cube-builder keeps a list of cards backed by a local SQLite file.

Card names are looked up on Scryfall in English first, then in Italian;
Italian matches are mapped to their English printing. Every change is saved,
and a rotating set of backup slots keeps recent versions of the list.

Run without arguments to start the interactive prompt.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		RunE: c.runInteractive,
	}

	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default $CUBE_BUILDER_HOME/config.toml or ~/.cube-builder/config.toml)")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database file (overrides [storage] path)")

	root.AddCommand(
		c.searchCmd(),
		c.addCmd(),
		c.suggestCmd(),
		c.listCmd(),
		c.qtyCmd(),
		c.rmCmd(),
		c.clearCmd(),
		c.exportCmd(),
		c.importCmd(),
		c.backupCmd(),
		c.dbBackupCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	if c.configPath == "" {
		path, err := config.Path()
		if err != nil {
			return err
		}
		c.configPath = path
	}

	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return err
	}
	if c.dbPath != "" {
		cfg.Storage.Path = c.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", c.configPath, err)
	}
	c.cfg = cfg

	level := slog.LevelInfo
	if c.debug || cfg.App.DebugMode {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(c.logger)

	c.app, err = openApp(cmd.Context(), cfg, c.logger)
	return err
}

func (c *cli) teardown() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

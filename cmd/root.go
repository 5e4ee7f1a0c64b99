package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/diagramdesk/internal/app"
	"github.com/zjrosen/diagramdesk/internal/config"
	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/log"
	"github.com/zjrosen/diagramdesk/internal/presentation"
	"github.com/zjrosen/diagramdesk/internal/workspace"
)

const localConfigPath = ".diagramdesk/config.yaml"

var (
	version   = "dev"
	cfgFile   string
	cfg       config.Config
	debugFlag bool
	jsonFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "diagramdesk",
	Short: "A local workspace for diagram projects",
	Long: `diagramdesk keeps a diagram editing workspace: open tabs, unsaved drafts,
the loaded project and its settings. The workspace is persisted locally and
synchronised with a project service.

Running diagramdesk without a subcommand prints the current workspace.`,
	Version:       version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initLogging(cmd.Name())
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logCleanup != nil {
			logCleanup()
		}
	},
	RunE: runShow,
}

var logCleanup func()

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .diagramdesk/config.yaml or ~/.config/diagramdesk/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs (DIAGRAMDESK_LOG sets the file, - for stderr)")
	rootCmd.PersistentFlags().String("backend", "",
		"storage backend: sqlite, redis or memory")
	rootCmd.PersistentFlags().String("remote", "",
		"project service base URL")
	rootCmd.Flags().BoolVar(&jsonFlag, "json", false, "print the workspace as JSON")

	_ = viper.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("remote.base_url", rootCmd.PersistentFlags().Lookup("remote"))
}

func initConfig() {
	config.SetDefaults(viper.SetDefault)
	viper.SetEnvPrefix("DIAGRAMDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .diagramdesk/config.yaml (current directory)
		// 2. ~/.config/diagramdesk/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "diagramdesk"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .diagramdesk/config.yaml
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if writeErr := config.WriteDefaultConfig(localConfigPath); writeErr == nil {
				viper.SetConfigFile(localConfigPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// initLogging enables the logger when --debug or DIAGRAMDESK_DEBUG is set.
// DIAGRAMDESK_LOG selects the file ("-" for stderr) and DIAGRAMDESK_LOG_LEVEL
// the minimum level.
func initLogging(component string) error {
	if !debugFlag && os.Getenv("DIAGRAMDESK_DEBUG") == "" {
		return nil
	}
	logPath := os.Getenv("DIAGRAMDESK_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}
	level := log.LevelDebug
	if s := os.Getenv("DIAGRAMDESK_LOG_LEVEL"); s != "" {
		level = log.ParseLevel(s)
	}

	if logPath == "-" {
		logCleanup = log.InitWriter(os.Stderr, level)
	} else {
		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		log.SetMinLevel(level)
		logCleanup = cleanup
	}
	log.Info(log.CatConfig, "diagramdesk starting",
		"command", component,
		"config", viper.ConfigFileUsed(),
		"logPath", logPath,
		"level", level)
	return nil
}

// configFilePath is where setting changes are written back.
func configFilePath() string {
	if p := viper.ConfigFileUsed(); p != "" {
		return p
	}
	return localConfigPath
}

// withWorkspace builds and starts an App, runs fn and closes the App. Every
// notification raised while fn runs is printed to stderr.
func withWorkspace(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, app.WithNotifier(printNotifier(cmd.ErrOrStderr())))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if err := a.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}

func printNotifier(w io.Writer) workspace.NotificationCenter {
	return workspace.NotifierFunc(func(n domain.Notification) {
		if n.Message != "" {
			fmt.Fprintf(w, "%s: %s: %s\n", n.Type, n.Title, n.Message)
			return
		}
		fmt.Fprintf(w, "%s: %s\n", n.Type, n.Title)
	})
}

func printWorkspace(w io.Writer, state domain.WorkspaceState, asJSON bool) error {
	formatter := presentation.NewFormatter(w)
	dto := presentation.FromDomainWorkspace(state)
	if asJSON {
		return formatter.FormatJSON(dto)
	}
	return formatter.FormatWorkspace(dto)
}

func runShow(cmd *cobra.Command, _ []string) error {
	return withWorkspace(cmd, func(_ context.Context, a *app.App) error {
		return printWorkspace(cmd.OutOrStdout(), a.Session().State(), jsonFlag)
	})
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/diagramdesk/internal/app"
	"github.com/zjrosen/diagramdesk/internal/config"
	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/log"
	"github.com/zjrosen/diagramdesk/internal/workspace"
)

var themeCmd = &cobra.Command{
	Use:       "theme <light|dark|system>",
	Short:     "Change the workspace theme",
	Long:      `Change the theme of the workspace and record it as the default in the config file.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(domain.ThemeLight), string(domain.ThemeDark), string(domain.ThemeSystem)},
	RunE: func(cmd *cobra.Command, args []string) error {
		theme := domain.Theme(args[0])
		if !theme.Valid() {
			return fmt.Errorf("unknown theme %q", args[0])
		}
		err := withWorkspace(cmd, func(_ context.Context, a *app.App) error {
			return a.Session().Dispatch(workspace.NewThemeChanged(theme)).Err
		})
		if err != nil {
			return err
		}
		path := configFilePath()
		if err := config.SaveTheme(path, string(theme)); err != nil {
			log.Warn(log.CatConfig, "theme not saved to config", "path", path, "error", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not update %s: %v\n", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", theme)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)
}

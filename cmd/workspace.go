package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/diagramdesk/internal/app"
	"github.com/zjrosen/diagramdesk/internal/contenthash"
	"github.com/zjrosen/diagramdesk/internal/persistence"
	"github.com/zjrosen/diagramdesk/internal/presentation"
)

var (
	purgeDrafts bool
	projectDesc string
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Inspect and manage the local workspace",
}

var workspaceShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted workspace",
	Long: `Print the persisted workspace: loaded project, open tabs, settings and
notifications.

Tabs are listed in tab order. The first column marks the active tab (>),
pinned tabs (p) and tabs with unsaved edits (*).

Examples:
  diagramdesk workspace show
  diagramdesk workspace show --json | jq '.tabs[].title'`,
	RunE: runShow,
}

var workspaceResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Return the workspace to defaults",
	Long: `Close every tab, unload the current project and restore default settings.

Drafts of unsaved diagrams are kept unless --purge is given.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withWorkspace(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Session().Reset(ctx); err != nil {
				return err
			}
			if purgeDrafts {
				n, err := purge(ctx, a.Gateway())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d drafts\n", n)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Workspace reset")
			return nil
		})
	},
}

var workspaceSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the project list and save modified diagrams",
	Long: `Fetch the project list from the project service, then save every diagram
of the current project that has unsaved edits, including diagrams whose
tab was closed. The current project itself is not reloaded; use "open" for
that. Without a current project only the list is refreshed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withWorkspace(cmd, func(ctx context.Context, a *app.App) error {
			s := a.Session()
			if err := s.LoadProjects(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			state := s.State()
			fmt.Fprintf(out, "%d projects\n", len(state.ProjectList))
			if state.CurrentProject == nil {
				fmt.Fprintln(out, "No current project, nothing to save")
				return nil
			}
			if err := s.SaveCurrentProject(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s\n", state.CurrentProject.Name)
			return nil
		})
	},
}

var workspaceDraftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "List the isolation keys of stored drafts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withWorkspace(cmd, func(ctx context.Context, a *app.App) error {
			out := map[string][]string{}
			for _, kind := range []contenthash.Kind{contenthash.KindAutosave, contenthash.KindManual} {
				ids, err := a.Gateway().ListDrafts(ctx, kind)
				if err != nil {
					return err
				}
				out[string(kind)] = ids
			}
			return presentation.NewFormatter(cmd.OutOrStdout()).FormatJSON(out)
		})
	},
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects on the project service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withWorkspace(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Session().LoadProjects(ctx); err != nil {
				return err
			}
			list := a.Session().State().ProjectList
			dtos := make([]presentation.ProjectDTO, len(list))
			for i, p := range list {
				dtos[i] = presentation.FromDomainProject(p)
			}
			return presentation.NewFormatter(cmd.OutOrStdout()).FormatJSON(dtos)
		})
	},
}

var createProjectCmd = &cobra.Command{
	Use:   "create-project <name>",
	Short: "Create a project and make it current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(cmd, func(ctx context.Context, a *app.App) error {
			p, err := a.Session().CreateProject(ctx, args[0], projectDesc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		})
	},
}

func init() {
	workspaceShowCmd.Flags().BoolVar(&jsonFlag, "json", false, "print the workspace as JSON")
	workspaceResetCmd.Flags().BoolVar(&purgeDrafts, "purge", false, "also delete stored drafts")
	createProjectCmd.Flags().StringVar(&projectDesc, "description", "", "project description")

	workspaceCmd.AddCommand(workspaceShowCmd, workspaceResetCmd, workspaceSyncCmd, workspaceDraftsCmd)
	rootCmd.AddCommand(workspaceCmd, projectsCmd, createProjectCmd)
}

func purge(ctx context.Context, g *persistence.Gateway) (int, error) {
	n := 0
	for _, kind := range []contenthash.Kind{contenthash.KindAutosave, contenthash.KindManual} {
		ids, err := g.ListDrafts(ctx, kind)
		if errors.Is(err, persistence.ErrKeysUnsupported) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		for _, id := range ids {
			if err := g.DeleteDraft(ctx, id, kind); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/diagramdesk/internal/app"
	"github.com/zjrosen/diagramdesk/internal/domain"
)

var (
	newDiagramType string
	newDiagramFile string
	saveNewDiagram bool
)

var openCmd = &cobra.Command{
	Use:   "open <project-id> [diagram-id...]",
	Short: "Load a project and open diagrams in tabs",
	Long: `Load a project from the project service, make it the current project and
open the given diagrams in tabs. A diagram that was never saved is opened
by its local key (see "workspace show --json"). Local drafts that differ
from the stored diagram are restored into their tab.

Examples:
  diagramdesk open 3f2a...            # load the project only
  diagramdesk open 3f2a... d-1 d-2    # and open two diagrams`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(cmd, func(ctx context.Context, a *app.App) error {
			s := a.Session()
			if err := s.OpenProject(ctx, args[0]); err != nil {
				return err
			}
			for _, id := range args[1:] {
				if _, err := s.OpenDiagram(ctx, domain.DiagramID(id)); err != nil {
					return err
				}
			}
			return printWorkspace(cmd.OutOrStdout(), s.State(), false)
		})
	},
}

var newDiagramCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a diagram in the current project",
	Long: `Create a diagram in the current project and open it in a new tab. Content
is read from --file, or stdin when --file is "-".

The diagram stays local until it is saved. Pass --save to save it right away.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ := domain.DiagramType(newDiagramType)
		if !typ.Valid() {
			return fmt.Errorf("unknown diagram type %q", newDiagramType)
		}
		content, err := readContent(cmd.InOrStdin(), newDiagramFile)
		if err != nil {
			return err
		}
		return withWorkspace(cmd, func(ctx context.Context, a *app.App) error {
			s := a.Session()
			tabID, err := s.CreateDiagram(args[0], typ, content)
			if err != nil {
				return err
			}
			if saveNewDiagram {
				if err := s.SaveTab(ctx, tabID); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), tabID)
			return nil
		})
	},
}

func init() {
	newDiagramCmd.Flags().StringVarP(&newDiagramType, "type", "t", string(domain.DiagramTypeFlowchart), "diagram type")
	newDiagramCmd.Flags().StringVarP(&newDiagramFile, "file", "f", "", `read content from a file ("-" for stdin)`)
	newDiagramCmd.Flags().BoolVar(&saveNewDiagram, "save", false, "save to the project service")
	rootCmd.AddCommand(openCmd, newDiagramCmd)
}

func readContent(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
		src  = path
	)
	switch path {
	case "":
		return "", nil
	case "-":
		src = "stdin"
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(path) //nolint:gosec // G304: path is the user's own input file
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", src, err)
	}
	if !domain.ValidText(string(data)) {
		return "", fmt.Errorf("%s is not valid UTF-8 text", src)
	}
	return string(data), nil
}

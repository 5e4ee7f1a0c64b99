package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/diagramdesk/internal/contenthash"
	"github.com/zjrosen/diagramdesk/internal/presentation"
)

var (
	hashName     string
	hashChecksum bool
)

var hashCmd = &cobra.Command{
	Use:   "hash [file]",
	Short: "Print the isolation key and draft keys for diagram content",
	Long: `Print the content isolation key of a diagram and the storage keys of its
autosave and manual draft slots. Content is read from the file, or stdin
when no file or "-" is given.

Examples:
  diagramdesk hash flow.mmd --name "Checkout flow"
  cat flow.mmd | diagramdesk hash --name "Checkout flow" | jq -r .isolation_key`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		content, err := readContent(cmd.InOrStdin(), path)
		if err != nil {
			return err
		}
		opts := []contenthash.Option{contenthash.WithPrefix(cfg.Storage.KeyPrefix)}
		if hashChecksum {
			opts = append(opts, contenthash.WithDigest(nil))
		}
		index := contenthash.New(opts...)
		id := index.Hash(content, hashName)
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatJSON(presentation.HashDTO{
			IsolationKey: id,
			AutosaveKey:  index.StorageKey(id, contenthash.KindAutosave),
			ManualKey:    index.StorageKey(id, contenthash.KindManual),
		})
	},
}

func init() {
	hashCmd.Flags().StringVarP(&hashName, "name", "n", "", "diagram title")
	hashCmd.Flags().BoolVar(&hashChecksum, "checksum", false, "use the rolling checksum instead of BLAKE3")
	rootCmd.AddCommand(hashCmd)
}

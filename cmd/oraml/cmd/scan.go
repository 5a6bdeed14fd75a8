package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oraide/oraml/internal/querydb"
	"github.com/oraide/oraml/internal/workspace"
)

var scanCmd = &cobra.Command{
	Use:   "scan [root]",
	Short: "Analyze every MiniYaml file under a directory",
	Long: `Discover MiniYaml files under root (default ".") using the
configured include globs, analyze each one, and print diagnostics.

Example:
  oraml scan mods/ra`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		db := querydb.NewDatabase()
		ids, err := workspace.Scan(db, root, cfg.Workspace.Include)
		if err != nil {
			return err
		}

		filesWithErrors := 0
		total := 0
		for _, id := range ids {
			diags, ok := db.FileDiagnostics(id)
			if !ok || len(diags) == 0 {
				continue
			}
			name, _ := db.FileName(id)
			src, _ := db.FileText(id)
			fmt.Printf("-- %s\n", name)
			if renderDiagnostics(diags, src) {
				filesWithErrors++
			}
			total += len(diags)
		}

		fmt.Printf("%d files scanned, %d diagnostics, %d files with errors\n", len(ids), total, filesWithErrors)
		if filesWithErrors > 0 {
			return fmt.Errorf("scan found errors in %d files", filesWithErrors)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

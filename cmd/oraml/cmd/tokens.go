package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens <file>",
	Short: "Dump the token stream of a file",
	Long: `Dump the token stream of a MiniYaml file, one token per line:
kind, byte span, and the exact source slice.

Example:
  oraml tokens rules/infantry.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, id, src, err := loadFile(args[0])
		if err != nil {
			return err
		}

		toks, _ := db.FileTokens(id)
		for _, t := range toks {
			fmt.Printf("%-12s [%4d, %4d) %q\n", t.Kind, t.Span.Start, t.Span.End, t.Slice(src))
		}

		diags, _ := db.FileDiagnostics(id)
		if renderDiagnostics(diags, src) {
			return fmt.Errorf("%s: has errors", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}

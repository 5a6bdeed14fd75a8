package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oraide/oraml/internal/querydb"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "Print the symbol outline of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, id, _, err := loadFile(args[0])
		if err != nil {
			return err
		}

		syms, ok := db.SymbolsIn(id)
		if !ok {
			return fmt.Errorf("%s: no symbols", args[0])
		}
		printSymbols(syms, 0)
		return nil
	},
}

func printSymbols(syms []querydb.Symbol, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, s := range syms {
		line := fmt.Sprintf("%s%s", indent, s.Name)
		if s.Detail != "" {
			line += " = " + s.Detail
		}
		fmt.Printf("%s  (line %d)\n", line, s.Range.Start.Line+1)
		printSymbols(s.Children, depth+1)
	}
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
}

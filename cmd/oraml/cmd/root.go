package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oraide/oraml/internal/config"
	"github.com/oraide/oraml/internal/miniyaml"
	"github.com/oraide/oraml/internal/querydb"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "oraml",
	Short: "Inspect MiniYaml files",
	Long: `oraml is a command-line inspector for MiniYaml documents.

It exposes each stage of the analysis pipeline: tokens, the indentation
tree, the symbol outline, and the diagnostics a whole workspace raises.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(configPath)
		return err
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}

// loadFile reads one file into a fresh database and returns its handle.
func loadFile(path string) (*querydb.Database, miniyaml.FileId, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, "", err
	}
	db := querydb.NewDatabase()
	id := db.AddFile(path, string(raw))
	return db, id, string(raw), nil
}

// renderDiagnostics prints caret snippets for every diagnostic and
// reports whether any of them were error severity or worse.
func renderDiagnostics(diags []miniyaml.Diagnostic, src string) bool {
	hadErr := false
	for _, d := range diags {
		fmt.Fprint(os.Stderr, miniyaml.RenderDiagnostic(d, src))
		if d.Severity == miniyaml.SeverityError || d.Severity == miniyaml.SeverityBug {
			hadErr = true
		}
	}
	return hadErr
}

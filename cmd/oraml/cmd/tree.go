package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oraide/oraml/internal/miniyaml"
)

var treeCmd = &cobra.Command{
	Use:   "tree <file>",
	Short: "Display the indentation tree of a file",
	Long: `Display the parent/child structure derived from indentation.

Example:
  oraml tree rules/infantry.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, id, src, err := loadFile(args[0])
		if err != nil {
			return err
		}

		tree, ok := db.FileTree(id)
		if !ok {
			return fmt.Errorf("%s: no tree", args[0])
		}
		printTree(tree, miniyaml.SentinelId, src, 0)

		diags, _ := db.FileDiagnostics(id)
		if renderDiagnostics(diags, src) {
			return fmt.Errorf("%s: has errors", args[0])
		}
		return nil
	},
}

func printTree(tree *miniyaml.Tree, id miniyaml.NodeId, src string, depth int) {
	for _, child := range tree.Children(id) {
		n, ok := tree.Node(child)
		if !ok {
			continue
		}
		key := n.KeyText(src)
		if key == "" {
			continue
		}
		indent := strings.Repeat("  ", depth)
		if val := n.ValueText(src); val != "" {
			fmt.Printf("%s%s: %s\n", indent, key, val)
		} else {
			fmt.Printf("%s%s\n", indent, key)
		}
		printTree(tree, child, src, depth+1)
	}
}

func init() {
	rootCmd.AddCommand(treeCmd)
}

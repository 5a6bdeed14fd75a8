package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/oraide/oraml/internal/miniyaml"
	"github.com/oraide/oraml/internal/querydb"
)

const (
	historyFile = ".oraml_history"
	promptMain  = "==> "
)

const banner = `oraml REPL
Each line is appended to an in-memory document and tokenized.
Ctrl+C cancels input, Ctrl+D exits. Type :help for commands.`

const replHelp = `
REPL commands:
  :tree      Print the document's indentation tree
  :symbols   Print the symbol outline
  :diags     Print all diagnostics for the document
  :show      Print the raw document text
  :reset     Start over with an empty document
  :quit      Exit the REPL
`

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }
func blue(s string) string  { return "\x1b[94m" + s + "\x1b[0m" }

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive MiniYaml inspector",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepl()
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// colorizeToken picks a color per token class: comments green,
// literals and keywords blue, errors red.
func colorizeToken(t miniyaml.Token, src string) string {
	slice := t.Slice(src)
	switch t.Kind {
	case miniyaml.Comment:
		return green(slice)
	case miniyaml.Error:
		return red(slice)
	case miniyaml.IntLiteral, miniyaml.FloatLiteral,
		miniyaml.True, miniyaml.Yes, miniyaml.False, miniyaml.No:
		return blue(slice)
	default:
		return slice
	}
}

func runRepl() error {
	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	db := querydb.NewDatabase()
	id := db.AddFile("repl", "")
	var doc strings.Builder
	seen := 0 // diagnostics already printed

	for {
		line, err := ln.Prompt(promptMain)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		if err != nil {
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(line), ":") {
			switch strings.TrimSpace(strings.ToLower(line)) {
			case ":quit":
				return nil
			case ":help":
				fmt.Print(replHelp)
			case ":tree":
				if tree, ok := db.FileTree(id); ok {
					printTree(tree, miniyaml.SentinelId, doc.String(), 0)
				}
			case ":symbols":
				if syms, ok := db.SymbolsIn(id); ok {
					printSymbols(syms, 0)
				}
			case ":diags":
				if diags, ok := db.FileDiagnostics(id); ok {
					for _, d := range diags {
						fmt.Print(miniyaml.RenderDiagnostic(d, doc.String()))
					}
				}
			case ":show":
				fmt.Print(doc.String())
			case ":reset":
				doc.Reset()
				db.SetFileText(id, "")
				seen = 0
			default:
				fmt.Printf("unknown command. Type :help for commands.\n")
			}
			continue
		}

		lineStart := miniyaml.ByteIndex(doc.Len())
		doc.WriteString(line)
		doc.WriteByte('\n')
		db.SetFileText(id, doc.String())
		ln.AppendHistory(line)

		// Echo the line's tokens, colorized, then any new diagnostics.
		src := doc.String()
		if toks, ok := db.FileTokens(id); ok {
			var b strings.Builder
			for _, t := range toks {
				if t.Span.Start < lineStart || t.Kind == miniyaml.EndOfLine {
					continue
				}
				fmt.Fprintf(&b, "%s(%s) ", colorizeToken(t, src), t.Kind)
			}
			if b.Len() > 0 {
				fmt.Println(b.String())
			}
		}
		if diags, ok := db.FileDiagnostics(id); ok {
			// A new line can also retract earlier tree diagnostics.
			if seen > len(diags) {
				seen = len(diags)
			}
			for _, d := range diags[seen:] {
				fmt.Print(red(miniyaml.RenderDiagnostic(d, src)))
			}
			seen = len(diags)
		}
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capsaicin/scanrules/internal/ui"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scanrules",
		Short: "Passive and active web application scan rules",
		Long: `scanrules runs passive rules (cacheability, application errors, username hashes,
CORS) and active rules (CRLF injection, anti-CSRF tokens) against web targets, and
exposes the cache classifier and GraphQL argument injector as standalone tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newScanCmd(),
		newCacheCmd(),
		newGraphQLCmd(),
		newAscifyCmd(),
		newFieldValueCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// readInput returns value when set, otherwise everything on the command's
// standard input.
func readInput(cmd *cobra.Command, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("no input: pass it as a flag or pipe it via STDIN")
	}
	return string(data), nil
}

// stdinPiped reports whether r carries piped data rather than a terminal.
func stdinPiped(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return true
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func printerFor(w io.Writer) *ui.Printer {
	if f, ok := w.(*os.File); ok {
		return ui.NewPrinter(f)
	}
	return ui.NewPlainPrinter(w)
}

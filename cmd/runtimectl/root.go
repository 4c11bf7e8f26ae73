package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "runtimectl",
		Short: "Run and inspect nautilus programs locally",
		Long: `runtimectl - drive the nautilus execution engine from a terminal.

Programs are JavaScript, TypeScript or Python sources that define main(input).
Each run prints the verifiable execution record: program id, code hash,
input hash, output and timestamp.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Log executor activity to stderr")

	root.AddCommand(newRunCmd())
	root.AddCommand(newClassifyCmd())
	root.AddCommand(newHashCmd())
	root.AddCommand(newVerifyCmd())
	return root
}

func cliLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// readSource returns inline code, the contents of the named file, or stdin.
func readSource(cmd *cobra.Command, inline string, args []string) (string, string, error) {
	switch {
	case inline != "":
		return inline, "inline", nil
	case len(args) > 0 && args[0] != "-":
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		return string(data), args[0], nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", "", fmt.Errorf("no source: pass a file, --code or pipe code on stdin")
		}
		return string(data), "stdin", nil
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

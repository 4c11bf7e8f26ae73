package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nereus-labs/nautilus-go/internal/attest"
	"github.com/nereus-labs/nautilus-go/internal/contentstore"
	"github.com/nereus-labs/nautilus-go/internal/domain"
	"github.com/nereus-labs/nautilus-go/internal/registry"
	"github.com/nereus-labs/nautilus-go/internal/runtimeexec"
	"github.com/nereus-labs/nautilus-go/internal/service/execution"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Execute a program and print its execution record",
		Long: `Execute a program once in a fresh interpreter.

Source can be provided via:
  - File argument: runtimectl run program.py
  - Inline flag: runtimectl run -c 'def main(input): return input'
  - Stdin: cat program.js | runtimectl run
  - A Walrus blob: runtimectl run --blob-id <id>`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRun,
	}
	cmd.Flags().StringP("code", "c", "", "Program source")
	cmd.Flags().StringP("lang", "l", "", "Language: js, ts, py (default: auto-detect)")
	cmd.Flags().StringP("payload", "p", "null", "JSON payload passed to main(input)")
	cmd.Flags().String("payload-file", "", "Read the JSON payload from a file")
	cmd.Flags().Bool("unwrap", false, "Treat the source as a blob that may hold {\"code\": ...}")
	cmd.Flags().String("blob-id", "", "Fetch the program from the Walrus aggregator")
	cmd.Flags().String("aggregator", contentstore.DefaultAggregatorURL, "Walrus aggregator URL (env AGGREGATOR)")
	cmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout")
	cmd.Flags().Int64("max-output", 1<<20, "Max bytes captured per output stream")
	cmd.Flags().String("node-bin", "", "Node.js binary")
	cmd.Flags().String("python-bin", "", "Python binary")
	cmd.Flags().String("interpreters", "", "YAML interpreter table")
	cmd.Flags().Bool("sign", false, "Sign the record and print the attested envelope")
	cmd.Flags().String("signing-key", "", "Hex ed25519 seed for --sign (default: ephemeral)")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	code, _ := flags.GetString("code")
	langFlag, _ := flags.GetString("lang")
	payloadFlag, _ := flags.GetString("payload")
	payloadFile, _ := flags.GetString("payload-file")
	unwrap, _ := flags.GetBool("unwrap")
	blobID, _ := flags.GetString("blob-id")
	aggregator, _ := flags.GetString("aggregator")
	timeout, _ := flags.GetDuration("timeout")
	maxOutput, _ := flags.GetInt64("max-output")
	nodeBin, _ := flags.GetString("node-bin")
	pythonBin, _ := flags.GetString("python-bin")
	interpretersFile, _ := flags.GetString("interpreters")
	sign, _ := flags.GetBool("sign")
	signingKey, _ := flags.GetString("signing-key")

	payload := json.RawMessage(payloadFlag)
	if payloadFile != "" {
		data, err := os.ReadFile(payloadFile)
		if err != nil {
			return err
		}
		payload = data
	}

	interps := runtimeexec.DefaultInterpreters()
	if interpretersFile != "" {
		loaded, err := runtimeexec.LoadInterpreters(interpretersFile)
		if err != nil {
			return err
		}
		interps = loaded
	}
	interps = interps.WithCommand(domain.FamilyNode, nodeBin).WithCommand(domain.FamilyPython, pythonBin)

	logger := cliLogger(cmd)
	executor, err := runtimeexec.NewProcessExecutor(runtimeexec.Config{
		Interpreters:   interps,
		Timeout:        timeout,
		MaxOutputBytes: maxOutput,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	opts := execution.Options{Logger: logger}
	if !cmd.Flags().Changed("aggregator") {
		if v := strings.TrimSpace(os.Getenv("AGGREGATOR")); v != "" {
			aggregator = v
		}
	}
	if blobID != "" {
		reader, err := contentstore.NewWalrusReader(contentstore.Config{AggregatorURL: aggregator, MaxBytes: contentstore.DefaultMaxBlobBytes, Timeout: timeout}, nil)
		if err != nil {
			return err
		}
		opts.Blobs = reader
	}
	if sign {
		signer, err := attest.NewEd25519Signer(signingKey)
		if err != nil {
			return err
		}
		opts.Signer = signer
		fmt.Fprintf(cmd.ErrOrStderr(), "public key: %s\n", signer.PublicKeyHex())
	}
	svc, err := execution.New(executor, registry.New(), opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if blobID != "" {
		if sign {
			envelope, err := svc.ExecuteAttested(ctx, blobID, payload)
			if err != nil {
				return err
			}
			return printJSON(cmd, envelope)
		}
		record, err := svc.ExecuteByBlob(ctx, blobID, payload)
		if err != nil {
			return err
		}
		return printJSON(cmd, record)
	}

	source, name, err := readSource(cmd, code, args)
	if err != nil {
		return err
	}
	if unwrap {
		if source, err = execution.ExtractSource([]byte(source)); err != nil {
			return err
		}
	}
	program, err := svc.Register(ctx, execution.RegisterRequest{ID: name, Language: langFlag, Code: source})
	if err != nil {
		return err
	}
	record, err := svc.ExecuteByID(ctx, program.ID, payload)
	if err != nil {
		printDiagnostics(cmd, err)
		return err
	}
	if sign {
		envelope, err := opts.Signer.Sign(record, time.Now().UnixMilli(), attest.IntentProcessData)
		if err != nil {
			return err
		}
		return printJSON(cmd, envelope)
	}
	return printJSON(cmd, record)
}

func printDiagnostics(cmd *cobra.Command, err error) {
	var de *domain.Error
	if !errors.As(err, &de) || de.Diagnostics == "" {
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), de.Diagnostics)
}

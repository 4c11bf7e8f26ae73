package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nereus-labs/nautilus-go/internal/contenthash"
)

func newHashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash [file]",
		Short: "Print the content hash of source text or a JSON value",
		Long: `Print the hex SHA-256 used in execution records.

Without --json the input is hashed as text, which matches code_hash.
With --json the input is canonicalized first, which matches input_hash.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, _ := cmd.Flags().GetString("code")
			asJSON, _ := cmd.Flags().GetBool("json")
			input, _, err := readSource(cmd, code, args)
			if err != nil {
				return err
			}
			sum := contenthash.Text(input)
			if asJSON {
				if sum, err = contenthash.JSON([]byte(input)); err != nil {
					return fmt.Errorf("hash json: %w", err)
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sum)
			return err
		},
	}
	cmd.Flags().StringP("code", "c", "", "Inline input instead of a file")
	cmd.Flags().Bool("json", false, "Canonicalize the input as JSON before hashing")
	return cmd
}

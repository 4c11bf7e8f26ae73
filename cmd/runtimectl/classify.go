package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nereus-labs/nautilus-go/internal/runtimeexec"
)

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [file]",
		Short: "Print the language a program would be run as",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, _ := cmd.Flags().GetString("code")
			source, _, err := readSource(cmd, code, args)
			if err != nil {
				return err
			}
			lang := runtimeexec.Classify(source)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", lang, lang.Family())
			return err
		},
	}
	cmd.Flags().StringP("code", "c", "", "Program source")
	return cmd
}

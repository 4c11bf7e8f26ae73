package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nereus-labs/nautilus-go/internal/attest"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [envelope-file]",
		Short: "Check the signature on an attested execution envelope",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyHex, _ := cmd.Flags().GetString("public-key")
			key, err := hex.DecodeString(strings.TrimSpace(keyHex))
			if err != nil || len(key) != ed25519.PublicKeySize {
				return fmt.Errorf("--public-key must be %d hex-encoded bytes", ed25519.PublicKeySize)
			}
			raw, _, err := readSource(cmd, "", args)
			if err != nil {
				return err
			}
			envelope, err := attest.DecodeEnvelope([]byte(raw))
			if err != nil {
				return err
			}
			if err := attest.Verify(ed25519.PublicKey(key), envelope); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}
	cmd.Flags().String("public-key", "", "Hex ed25519 public key of the runtime")
	_ = cmd.MarkFlagRequired("public-key")
	return cmd
}

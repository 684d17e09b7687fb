package cli

import (
	"fmt"

	"github.com/devblin/infisical/pkg/crypto"

	"github.com/spf13/cobra"
)

func NewKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate key material",
	}

	cmd.AddCommand(NewKeysGenerateCommand())

	return cmd
}

func NewKeysGenerateCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a user key pair and a root encryption key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			publicKey, privateKey, err := crypto.GenerateKeyPair()
			if err != nil {
				return err
			}

			encryptionKey, err := crypto.GenerateSymmetricKey()
			if err != nil {
				return err
			}

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"public_key":     publicKey,
					"private_key":    privateKey,
					"encryption_key": encryptionKey,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Public key:"), publicKey)
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Private key:"), privateKey)
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Encryption key:"), encryptionKey)
			fmt.Fprintln(out, dimStyle.Render("Set INFISICAL_PRIVATE_KEY and INFISICAL_ENCRYPTION_KEY from these values."))

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table, json)")

	return cmd
}

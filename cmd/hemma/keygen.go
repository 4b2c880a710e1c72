package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/hemma-hub/internal/identity"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/config"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate hub key material",
		Long: `Generate a fresh box keypair and signing seed and print them as a
keys section ready to paste into the config file.

The signing seed is used as the facade signing key. Its verify key is
printed as a comment; clients need it to check certificates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return keygen(cmd.OutOrStdout())
		},
	}
}

func keygen(w io.Writer) error {
	gen, err := identity.Generate(nil)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(struct {
		Keys config.KeysConfig `yaml:"keys"`
	}{Keys: config.KeysConfig(gen.Keys())})
	if err != nil {
		return fmt.Errorf("encoding keys: %w", err)
	}
	if _, err := fmt.Fprintf(w, "# facade verify key: %s\n%s", gen.VerifyKey, out); err != nil {
		return fmt.Errorf("writing keys: %w", err)
	}
	return nil
}

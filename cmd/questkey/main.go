// Command questkey mints, verifies and inspects achievement keys from the
// command line.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cvquest/internal/catalog"
	"cvquest/internal/config"
	"cvquest/internal/keys"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	secret      string
	catalogPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "questkey",
		Short: "Mint and verify CV Quest achievement keys",
		Long: `questkey works with the achievement keys games hand back to the hub.

Available subcommands:
  mint    - Mint a signed key for a catalog game
  verify  - Check a key's signature and print its content
  inspect - Decode a key without checking the signature
  hash    - Print the signature hash of a string`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.secret, "secret", "", "signing secret (default: KEY_SECRET or the shared default)")
	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "", "catalog YAML file (default: built-in catalog)")

	root.AddCommand(newMintCmd(opts), newVerifyCmd(opts), newInspectCmd(), newHashCmd())
	return root
}

func (o *options) codec() *keys.Codec {
	secret := o.secret
	if secret == "" {
		secret = config.Load().KeySecret
	}
	return keys.NewCodec(secret)
}

func (o *options) catalog() (*catalog.Catalog, error) {
	if o.catalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(o.catalogPath)
}

func newMintCmd(opts *options) *cobra.Command {
	var (
		student string
		elapsed time.Duration
	)
	cmd := &cobra.Command{
		Use:   "mint <game-id>",
		Short: "Mint a signed key for a catalog game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := opts.catalog()
			if err != nil {
				return err
			}
			def, ok := cat.Game(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", catalog.ErrUnknownGame, args[0])
			}
			key, err := opts.codec().Mint(def.ID, def.Achievements, student, elapsed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().StringVar(&student, "student", "", "student id (default: anonymous)")
	cmd.Flags().DurationVar(&elapsed, "elapsed", 0, "time spent in the game (default: the standard completion time)")
	return cmd
}

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <key>",
		Short: "Check a key's signature and print its content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := opts.codec().Verify(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), key)
		},
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <key>",
		Short: "Decode a key without checking the signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keys.Inspect(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), key)
		},
	}
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <text>",
		Short: "Print the signature hash of a string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), keys.Hash(args[0]))
			return nil
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

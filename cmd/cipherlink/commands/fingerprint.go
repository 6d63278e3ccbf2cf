package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func fingerprintCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadIdentity(); err != nil {
				return err
			}
			fp, err := wire.Identity.Fingerprint()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fingerprint: %s\n", fp)
			if full {
				m, _ := wire.Identity.Current()
				xpub, _ := m.Identity.XPub.MarshalText()
				edpub, _ := m.Identity.EdPub.MarshalText()
				fmt.Fprintf(out, "Identity key: %s\n", xpub)
				fmt.Fprintf(out, "Signing key:  %s\n", edpub)
				if err := printPublished(out); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "keys", false, "also print the public keys in base64")
	return cmd
}

func printPublished(out io.Writer) error {
	b, ok, err := wire.Prekeys.Published()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "Published:    never (run register)")
		return nil
	}
	stale, err := wire.Prekeys.Stale()
	if err != nil {
		return err
	}
	state := "current"
	if stale {
		state = "stale, run register"
	}
	fmt.Fprintf(out, "Published:    %s as %q (%s)\n", b.Timestamp.Local().Format(time.DateTime), b.Username, state)
	return nil
}

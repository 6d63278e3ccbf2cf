package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cipherlink/internal/domain"
)

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your key bundle (and key pool in pool mode) to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRelay(); err != nil {
				return err
			}
			if err := loadIdentity(); err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			if stale, err := wire.Prekeys.Stale(); err != nil {
				return err
			} else if stale {
				fmt.Fprintln(out, "Identity changed since the last publish; peers will set up new sessions")
			}
			if _, err := wire.Prekeys.Publish(ctx, domain.UserID(userID), displayName()); err != nil {
				return err
			}
			fmt.Fprintln(out, "Registered key bundle with relay")

			if wire.Config.Strategy == domain.StrategyPool {
				entries, err := wire.Pools.PublishPool(ctx, domain.UserID(userID), poolSize)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Published key pool of %d keys\n", len(entries))
			}
			return nil
		},
	}
}

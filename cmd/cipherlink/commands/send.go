package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cipherlink/internal/domain"
)

// send <peer> <message>: encrypt and send a message to <peer>.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRelay(); err != nil {
				return err
			}
			if err := loadIdentity(); err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			f, err := wire.Messages.SendMessage(ctx, domain.UserID(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			if f.Strategy == domain.StrategyPool {
				fmt.Fprintf(cmd.OutOrStdout(), "%d pool keys left\n", wire.Pools.Remaining())
			}
			return nil
		},
	}
}

package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"cipherlink/internal/domain"
)

// recv: fetch and decrypt queued messages for --user.
func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRelay(); err != nil {
				return err
			}
			if err := loadIdentity(); err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			msgs, err := wire.Messages.ReceiveMessages(ctx, limit)
			for _, m := range msgs {
				printMessage(cmd.OutOrStdout(), m)
			}
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum messages to fetch (0 means all)")
	return cmd
}

func printMessage(w io.Writer, m domain.DecryptedMessage) {
	ts := time.Unix(m.Timestamp, 0).Format("15:04:05")
	if m.Err != nil {
		fmt.Fprintf(w, "%s [%s] <undecryptable: %v>\n", ts, m.From, m.Err)
		return
	}
	fmt.Fprintf(w, "%s [%s] %s\n", ts, m.From, string(m.Plaintext))
}

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cipherlink/internal/crypto"
)

// sessionsCmd lists the peers with a session made under the current identity.
func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List established sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadIdentity(); err != nil {
				return err
			}
			peers, err := wire.Sessions.Peers()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(peers) == 0 {
				fmt.Fprintln(out, "No sessions.")
				return nil
			}
			for _, p := range peers {
				sess, ok := wire.Sessions.Session(p)
				if !ok {
					continue
				}
				switch {
				case sess.Handshake != nil:
					role := "responder"
					if sess.Handshake.Initiator {
						role = "initiator"
					}
					fmt.Fprintf(out, "%s\thandshake\t%s\tTag=%s\t%s\n", p, role,
						crypto.SessionTag(sess.Handshake.RootKey),
						sess.Handshake.EstablishedAt.Local().Format(time.DateTime))
				case sess.Pool != nil:
					fmt.Fprintf(out, "%s\tpool\t%d keys\t%s\n", p, len(sess.Pool.Entries),
						sess.Pool.DownloadedAt.Local().Format(time.DateTime))
				}
			}
			return nil
		},
	}
}

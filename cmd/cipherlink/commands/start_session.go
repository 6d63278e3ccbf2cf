package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
)

// startSessionCmd runs the handshake against a peer's bundle (or downloads
// the peer's key pool) and stores the session for future messaging.
func startSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-session <peer>",
		Short: "Establish a secure session with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRelay(); err != nil {
				return err
			}
			if err := loadIdentity(); err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			peer := domain.UserID(args[0])
			sess, err := wire.Sessions.EnsureSession(ctx, peer, wire.Config.Strategy)
			if err != nil {
				return fmt.Errorf("starting session with %q: %w", peer, err)
			}

			out := cmd.OutOrStdout()
			switch {
			case sess.Handshake != nil:
				// Both sides print the same tag; compare it out of band.
				fmt.Fprintf(out, "Session created with %s. Tag=%s\n", peer, crypto.SessionTag(sess.Handshake.RootKey))
			case sess.Pool != nil:
				fmt.Fprintf(out, "Downloaded %d pool keys from %s\n", len(sess.Pool.Entries), peer)
			}
			return nil
		},
	}
}

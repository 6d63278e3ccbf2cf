package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cipherlink/internal/domain"
)

// chatCmd is an interactive session with one peer: lines read from stdin are
// sent, frames pushed by the relay are printed as they arrive.
func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <peer>",
		Short: "Chat interactively with a peer",
		Long: "Chat interactively with a peer. Without -p a throwaway identity is " +
			"generated and published for this run only.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRelay(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := &lockedWriter{w: cmd.OutOrStdout()}
			if err := setupChat(ctx, out); err != nil {
				return err
			}

			peer := domain.UserID(args[0])
			fmt.Fprintf(out, "Chatting with %s as %s. Ctrl-D to quit.\n", peer, userID)
			return runChat(ctx, peer, cmd.InOrStdin(), out)
		},
	}
}

// setupChat installs an identity, publishes our keys and prints whatever is
// already queued.
func setupChat(ctx context.Context, out io.Writer) error {
	if passphrase == "" {
		if _, ok := wire.Identity.Current(); !ok {
			_, fp, err := wire.Identity.Generate()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Ephemeral identity %s\n", fp)
		}
	} else if err := loadIdentity(); err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := wire.Prekeys.Publish(reqCtx, domain.UserID(userID), displayName()); err != nil {
		return err
	}
	if wire.Config.Strategy == domain.StrategyPool && wire.Pools.Remaining() == 0 {
		if _, err := wire.Pools.PublishPool(reqCtx, domain.UserID(userID), poolSize); err != nil {
			return err
		}
	}

	msgs, err := wire.Messages.ReceiveMessages(reqCtx, 0)
	for _, m := range msgs {
		printMessage(out, m)
	}
	if err != nil {
		logger().Warn("could not drain queue", zap.Error(err))
	}
	return nil
}

func runChat(ctx context.Context, peer domain.UserID, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Scanner reads block, so they stay outside the group.
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := wire.Messages.Listen(gctx, wire.Relay, func(m domain.DecryptedMessage) {
			printMessage(out, m)
		})
		if gctx.Err() != nil {
			// Shut down by stdin EOF or a signal.
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				if err := sendLine(gctx, peer, line); err != nil {
					fmt.Fprintf(out, "! %v\n", err)
				}
			}
		}
	})
	return g.Wait()
}

func sendLine(ctx context.Context, peer domain.UserID, line string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := wire.Messages.SendMessage(ctx, peer, []byte(line))
	return err
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

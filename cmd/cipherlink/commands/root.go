package commands

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cipherlink/internal/app"
	"cipherlink/internal/domain"
	"cipherlink/internal/logutils"
	"cipherlink/internal/protocol/keypool"
)

var (
	home       string
	passphrase string
	relayURL   string
	userID     string
	username   string
	strategy   string
	poolSize   int
	logLevel   string
	timeout    time.Duration
	ephemeral  bool

	wire *app.Wire
)

// Execute runs the root command.
func Execute() error {
	return newRoot().Execute()
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "cipherlink",
		Short:         "End-to-end encrypted messaging over an untrusted relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutils.New(logLevel)
			if err != nil {
				return err
			}

			dir := home
			if ephemeral {
				dir = ""
			} else if dir == "" {
				h, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				dir = filepath.Join(h, ".cipherlink")
			}

			w, err := app.NewWire(app.Config{
				Home:     dir,
				RelayURL: relayURL,
				UserID:   domain.UserID(userID),
				Username: domain.Username(username),
				Strategy: domain.Strategy(strategy),
				PoolSize: poolSize,
				HTTP:     &http.Client{Timeout: timeout},
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			wire = w
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if wire != nil {
				_ = wire.Logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&home, "home", "", "state dir (default ~/.cipherlink)")
	flags.BoolVar(&ephemeral, "ephemeral", false, "keep identity, pool and sessions in memory only")
	flags.StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the identity keys")
	flags.StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	flags.StringVarP(&userID, "user", "u", "", "your address on the relay")
	flags.StringVar(&username, "name", "", "display name published with your keys (default: --user)")
	flags.StringVar(&strategy, "strategy", string(domain.StrategyHandshake), "session strategy: handshake or pool")
	flags.IntVar(&poolSize, "pool-size", keypool.DefaultSize, "keys per published pool")
	flags.StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")
	flags.DurationVar(&timeout, "timeout", 15*time.Second, "per-request relay timeout")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		registerCmd(),
		startSessionCmd(),
		sendCmd(),
		recvCmd(),
		sessionsCmd(),
		chatCmd(),
	)
	return root
}

// loadIdentity makes sure an identity is installed, unsealing it with the
// passphrase when none is in memory yet.
func loadIdentity() error {
	if _, ok := wire.Identity.Current(); ok {
		return nil
	}
	if passphrase == "" {
		return errors.New("passphrase required (-p)")
	}
	if _, err := wire.Identity.Load(passphrase); err != nil {
		return err
	}
	return nil
}

func requireRelay() error {
	if relayURL == "" {
		return errors.New("no relay configured. use --relay")
	}
	if userID == "" {
		return errors.New("--user required")
	}
	return nil
}

func displayName() domain.Username {
	if username != "" {
		return domain.Username(username)
	}
	return domain.Username(userID)
}

// requestContext bounds a one-shot command by --timeout.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func logger() *zap.Logger { return wire.Logger }

package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/logger"
	"github.com/spf13/cobra"

	"pfskit/internal/app"
)

var (
	home       string
	passphrase string
	serviceURL string
	token      string
	backend    string
	verbose    bool
	cards      int

	cfg     app.Config
	appWire *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:   "pfskit",
		Short: "Forward-secrecy session and key lifecycle CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.Init("pfskit", verbose, false, io.Discard)

			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".pfskit")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			cfg = app.DefaultConfig()
			cfg.Home = home
			cfg.CardServiceURL = serviceURL
			cfg.AccessToken = token
			cfg.Backend = backend
			if cards > 0 {
				cfg.DesiredNumberOfCards = cards
			}

			var err error
			appWire, err = app.NewWire(cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appWire != nil {
				return appWire.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.pfskit)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase to protect keys")
	root.PersistentFlags().StringVar(&serviceURL, "service-url", "", "cards service base URL")
	root.PersistentFlags().StringVar(&token, "token", "", "cards service access token")
	root.PersistentFlags().StringVar(&backend, "backend", app.BackendFile, "storage backend (file or badger)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	root.PersistentFlags().IntVar(&cards, "cards", 0, "desired one-time card pool depth")

	root.AddCommand(initCmd(), fingerprintCmd(), rotateCmd(), statusCmd(), sessionsCmd(), resetCmd())
	return root.Execute()
}

// unlock loads the identity and builds its object graph.
func unlock() (*app.Account, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase required (-p)")
	}
	id, err := appWire.Identity.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	return appWire.ForIdentity(id), nil
}

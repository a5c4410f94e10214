package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"pfskit/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := unlock()
			if err != nil {
				return err
			}
			fmt.Printf("Card id: %s\nFingerprint: %s\n",
				acct.Identity.CardID, crypto.Fingerprint(acct.Identity.PublicKey))
			return nil
		},
	}
}

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pfskit/internal/crypto"
	"pfskit/internal/domain"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <name>",
		Short: "Generate identity keys and store them securely",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if appWire.Identity.HasIdentity() {
				return fmt.Errorf("identity already exists in %s", home)
			}

			pair, err := crypto.GenerateIdentity()
			if err != nil {
				return err
			}
			snapshot, err := json.Marshal(struct {
				Identity     string `json:"identity"`
				IdentityType string `json:"identity_type"`
				PublicKey    []byte `json:"public_key"`
			}{Identity: args[0], IdentityType: "identity", PublicKey: pair.Public})
			if err != nil {
				return err
			}

			id := domain.Identity{
				Name:       args[0],
				CardID:     crypto.SnapshotID(snapshot),
				PublicKey:  pair.Public,
				PrivateKey: pair.Private,
			}
			if err := appWire.Identity.SaveIdentity(id, passphrase); err != nil {
				return err
			}
			fmt.Printf("Identity created.\nCard id: %s\nFingerprint: %s\n",
				id.CardID, crypto.Fingerprint(id.PublicKey))
			return nil
		},
	}
}

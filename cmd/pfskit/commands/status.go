package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local key counts and the remote card pool depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := unlock()
			if err != nil {
				return err
			}

			attrs, err := acct.Keys.GetAllKeysAttrs()
			if err != nil {
				return err
			}
			info, err := acct.Tracker.GetKeysExhaustInfo()
			if err != nil {
				return err
			}
			fmt.Printf("Local keys: %d long-term, %d one-time, %d session\n",
				len(attrs.Lt), len(attrs.Ot), len(attrs.Session))
			fmt.Printf("Marked exhausted: %d one-time, %d long-term, %d sessions\n",
				len(info.Otc), len(info.Ltc), len(info.Sessions))

			status, err := appWire.Cards.GetCardsStatus(cmd.Context(), acct.Identity.CardID)
			if err != nil {
				return err
			}
			fmt.Printf("Remote pool: %d active, %d exhausted\n", status.Active, status.Exhausted)
			return nil
		},
	}
}
